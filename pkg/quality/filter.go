// Package quality scores candidate face crops before they are used for
// enrollment or recognition. A crop passes only when the face is large
// enough, roughly centered, and sharp; every failed check is reported so
// the caller can give targeted feedback.
package quality

import (
	"image"
)

// Reason identifies a failed quality check.
type Reason string

const (
	// ReasonTooSmall means the face covers too little of the frame.
	ReasonTooSmall Reason = "face_too_small"
	// ReasonOffCenter means the face is not centered in the frame.
	ReasonOffCenter Reason = "face_off_center"
	// ReasonBlurry means the crop is out of focus or motion blurred.
	ReasonBlurry Reason = "face_blurry"
)

// Feedback returns the operator prompt for a failed check.
func (r Reason) Feedback() string {
	switch r {
	case ReasonTooSmall:
		return "Please move closer to the camera"
	case ReasonOffCenter:
		return "Please center your face"
	case ReasonBlurry:
		return "Please hold still"
	default:
		return "Please try again"
	}
}

// Report is the outcome of a quality assessment.
type Report struct {
	OK        bool
	Failures  []Reason
	AreaFrac  float64
	Sharpness float64
}

// Config holds the quality thresholds.
type Config struct {
	// MinAreaFraction is the minimum bounding-box area as a fraction of
	// the frame area.
	MinAreaFraction float64
	// CenterTolerance is how far the bbox center may sit from the frame
	// center, as a fraction of each frame dimension.
	CenterTolerance float64
	// MinSharpness is the minimum variance-of-Laplacian score.
	MinSharpness float64
}

// DefaultConfig returns the standard capture thresholds.
func DefaultConfig() Config {
	return Config{
		MinAreaFraction: 0.05,
		CenterTolerance: 0.3,
		MinSharpness:    100.0,
	}
}

// Filter applies the configured checks to face crops.
type Filter struct {
	cfg Config
}

// NewFilter creates a Filter with the given thresholds.
func NewFilter(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Assess runs all checks on a face crop. bbox is the face bounding box in
// frame coordinates and frame is the full frame size. crop may be nil to
// skip the sharpness check (e.g. when only geometry is known).
func (f *Filter) Assess(crop image.Image, bbox image.Rectangle, frame image.Point) Report {
	report := Report{OK: true}

	frameArea := float64(frame.X) * float64(frame.Y)
	if frameArea <= 0 || bbox.Empty() {
		report.OK = false
		report.Failures = append(report.Failures, ReasonTooSmall)
		return report
	}

	report.AreaFrac = float64(bbox.Dx()) * float64(bbox.Dy()) / frameArea
	if report.AreaFrac < f.cfg.MinAreaFraction {
		report.OK = false
		report.Failures = append(report.Failures, ReasonTooSmall)
	}

	cx := float64(bbox.Min.X+bbox.Max.X) / 2.0
	cy := float64(bbox.Min.Y+bbox.Max.Y) / 2.0
	if abs(cx-float64(frame.X)/2.0) > f.cfg.CenterTolerance*float64(frame.X) ||
		abs(cy-float64(frame.Y)/2.0) > f.cfg.CenterTolerance*float64(frame.Y) {
		report.OK = false
		report.Failures = append(report.Failures, ReasonOffCenter)
	}

	if crop != nil {
		report.Sharpness = LaplacianVariance(crop)
		if report.Sharpness < f.cfg.MinSharpness {
			report.OK = false
			report.Failures = append(report.Failures, ReasonBlurry)
		}
	}

	return report
}

// LaplacianVariance measures focus as the variance of the 4-neighbor
// Laplacian over the grayscale image. Sharp images produce strong edge
// responses and a high variance; blurred ones flatten toward zero.
func LaplacianVariance(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray[y*w+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 256.0
		}
	}

	var sum, sumSq float64
	count := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := gray[(y-1)*w+x] + gray[(y+1)*w+x] +
				gray[y*w+x-1] + gray[y*w+x+1] -
				4*gray[y*w+x]
			sum += lap
			sumSq += lap * lap
			count++
		}
	}
	if count == 0 {
		return 0
	}

	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
