package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/attendly/faceattend/pkg/logging"
	"github.com/attendly/faceattend/pkg/quality"
	"github.com/attendly/faceattend/pkg/recognition"
)

// serviceQuality and faceDetector are the slices of the service and
// encoder the quality pre-check needs, kept narrow for testing.
type serviceQuality interface {
	AssessQuality(crop image.Image, bbox image.Rectangle, frameSize image.Point) quality.Report
}

type faceDetector interface {
	DetectFaces(region []byte) ([]recognition.Face, error)
}

var (
	enrollName       string
	enrollEmployeeID string
	enrollEmail      string
	enrollDepartment string
	enrollSkipQC     bool
)

var enrollCmd = &cobra.Command{
	Use:   "enroll IMAGE...",
	Short: "Register a user from face capture images",
	Long: `Register a new user from several face captures (different angles and
lighting improve later recognition). Each image must contain exactly one
face; captures failing the quality checks are skipped with a warning.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().StringVar(&enrollName, "name", "", "display name (required)")
	enrollCmd.Flags().StringVar(&enrollEmployeeID, "employee-id", "", "unique employee ID (required)")
	enrollCmd.Flags().StringVar(&enrollEmail, "email", "", "email address")
	enrollCmd.Flags().StringVar(&enrollDepartment, "department", "", "department")
	enrollCmd.Flags().BoolVar(&enrollSkipQC, "skip-quality-check", false, "enroll captures even when quality checks fail")
	_ = enrollCmd.MarkFlagRequired("name")
	_ = enrollCmd.MarkFlagRequired("employee-id")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	svc, encoder, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()
	defer encoder.Close()

	exists, err := st.UserExists(enrollEmployeeID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("employee ID %q is already registered", enrollEmployeeID)
	}

	if target := svc.EnrollmentTarget(); len(args) < target {
		fmt.Printf("Note: %d image(s) provided; %d are recommended for reliable recognition.\n",
			len(args), target)
	}

	var regions [][]byte
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if !enrollSkipQC {
			if ok, reason := assessFile(svc, encoder, data); !ok {
				logging.Warnf("Skipping %s: %s", path, reason)
				fmt.Printf("Skipping %s: %s\n", path, reason)
				continue
			}
		}
		regions = append(regions, data)
	}

	userID, err := st.CreateUser(enrollName, enrollEmployeeID, enrollEmail, enrollDepartment)
	if err != nil {
		return err
	}

	aggregate, err := svc.Enroll(userID, regions)
	if err != nil {
		// Roll back the half-registered user so the employee ID stays free.
		if delErr := st.DeleteUser(userID); delErr != nil {
			logging.Warnf("Failed to roll back user %d: %v", userID, delErr)
		}
		return err
	}

	count, _ := st.EncodingCount(userID)
	fmt.Printf("Registered %s (employee %s) with %d face encodings.\n", enrollName, enrollEmployeeID, count)
	fmt.Printf("Aggregate quality: %.2f\n", aggregate.Quality)
	return nil
}

// assessFile runs the capture-quality checks on one image file.
func assessFile(svc serviceQuality, encoder faceDetector, data []byte) (bool, string) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Sprintf("cannot decode image: %v", err)
	}

	faces, err := encoder.DetectFaces(data)
	if err != nil {
		return false, err.Error()
	}
	if len(faces) != 1 {
		return false, fmt.Sprintf("expected one face, found %d", len(faces))
	}

	bounds := img.Bounds()
	bb := faces[0].BoundingBox
	bbox := image.Rect(bb.X, bb.Y, bb.X+bb.Width, bb.Y+bb.Height)
	crop := cropImage(img, bbox)

	report := svc.AssessQuality(crop, bbox, image.Pt(bounds.Dx(), bounds.Dy()))
	if !report.OK {
		return false, report.Failures[0].Feedback()
	}
	return true, ""
}

func cropImage(img image.Image, bbox image.Rectangle) image.Image {
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(bbox.Intersect(img.Bounds()))
	}
	return img
}
