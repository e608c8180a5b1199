package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Mark attendance by recognising enrolled faces on a camera",
	Long: `Face Attendance loads a gallery of enrolled faces, watches a local camera
and appends a timestamped ledger entry the first time each known person is
seen during a live session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		_, err := logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
