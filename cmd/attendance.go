package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "List recorded attendance",
	Long:  `Prints the attendance ledger in the order it was recorded, optionally filtered by name and time.`,
	Example: `  face-attendance attendance
  face-attendance attendance --name jane --since 2026-03-01
  face-attendance attendance --summary --json`,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("name", "", "Only identities containing this text")
	attendanceCmd.Flags().String("since", "", "Inclusive lower bound (YYYY-MM-DD, timestamp or RFC 3339)")
	attendanceCmd.Flags().String("until", "", "Exclusive upper bound (YYYY-MM-DD, timestamp or RFC 3339)")
	attendanceCmd.Flags().Bool("summary", false, "Show per-person counts instead of every record")
	attendanceCmd.Flags().Bool("json", false, "Output as JSON")
}

// attendanceQuery builds a ledger query from the command flags.
func attendanceQuery(cmd *cobra.Command) (ledger.Query, error) {
	since, err := ledger.ParseTime(mustGetString(cmd, "since"))
	if err != nil {
		return ledger.Query{}, fmt.Errorf("invalid --since: %w", err)
	}
	until, err := ledger.ParseTime(mustGetString(cmd, "until"))
	if err != nil {
		return ledger.Query{}, fmt.Errorf("invalid --until: %w", err)
	}
	return ledger.Query{Name: mustGetString(cmd, "name"), Since: since, Until: until}, nil
}

func runAttendance(cmd *cobra.Command, args []string) error {
	q, err := attendanceQuery(cmd)
	if err != nil {
		return err
	}
	cfg := config.Load()
	ctx := context.Background()

	a := newApp(cfg)
	defer a.Close()

	l, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	all, err := l.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read attendance: %w", err)
	}
	events := ledger.Filter(all, q)
	summary := mustGetBool(cmd, "summary")

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if summary {
			return enc.Encode(ledger.Summarize(events))
		}
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Println("No attendance records found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if summary {
		fmt.Fprintln(w, "NAME\tCOUNT\tLAST SEEN")
		fmt.Fprintln(w, "----\t-----\t---------")
		for _, c := range ledger.Summarize(events) {
			fmt.Fprintf(w, "%s\t%d\t%s\n", c.Identity, c.Count, c.Last.Format(ledger.TimestampLayout))
		}
	} else {
		fmt.Fprintln(w, "NAME\tTIMESTAMP")
		fmt.Fprintln(w, "----\t---------")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\n", e.Identity, e.Timestamp.Format(ledger.TimestampLayout))
		}
	}
	w.Flush()

	fmt.Printf("\nTotal: %d records\n", len(events))
	return nil
}
