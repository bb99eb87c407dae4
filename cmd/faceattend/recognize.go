package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize IMAGE",
	Short: "Recognize the face in an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecognize,
}

var checkinCmd = &cobra.Command{
	Use:   "checkin IMAGE",
	Short: "Recognize the face and record a check-in",
	Args:  cobra.ExactArgs(1),
	RunE:  runMark("check_in"),
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout IMAGE",
	Short: "Recognize the face and record a check-out",
	Args:  cobra.ExactArgs(1),
	RunE:  runMark("check_out"),
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(checkoutCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	svc, encoder, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()
	defer encoder.Close()

	region, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	result, err := svc.Recognize(region)
	if err != nil {
		return err
	}

	if result.Matched {
		fmt.Printf("Matched: %s (distance %.4f, confidence %.2f)\n",
			result.Label(), result.Distance, result.Confidence)
	} else {
		fmt.Printf("No match: tracked as %s\n", result.TrackLabel)
	}
	return nil
}

func runMark(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, encoder, st, err := openService()
		if err != nil {
			return err
		}
		defer st.Close()
		defer encoder.Close()

		region, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		now := time.Now()
		mark := svc.CheckIn
		if action == "check_out" {
			mark = svc.CheckOut
		}

		result, err := mark(region, now)
		if err != nil {
			return err
		}
		if !result.Matched {
			fmt.Printf("Face not recognized (tracked as %s); attendance not recorded.\n", result.TrackLabel)
			return nil
		}
		fmt.Printf("Recorded %s for %s at %s.\n", action, result.Label(), now.Format("15:04:05"))
		return nil
	}
}
