package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reportDate string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show attendance records for a day",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportDate, "date", "", "day to report (YYYY-MM-DD, default today)")
}

func runReport(cmd *cobra.Command, args []string) error {
	day := reportDate
	if day == "" {
		day = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", day)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.AttendanceOn(day)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No attendance records for %s.\n", day)
		return nil
	}

	fmt.Printf("Attendance for %s:\n\n", day)
	fmt.Printf("%-8s %-24s %-10s %s\n", "TIME", "NAME", "ACTION", "CONFIDENCE")
	for _, r := range records {
		fmt.Printf("%-8s %-24s %-10s %.2f\n",
			r.MarkedAt.Format("15:04:05"), r.UserName, r.Action, r.Confidence)
	}
	fmt.Printf("\nTotal: %d record(s)\n", len(records))
	return nil
}
