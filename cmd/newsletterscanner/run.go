package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"NewsletterScanner/internal/app"
	"NewsletterScanner/internal/logging"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Process new newsletter emails once",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCommand)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

	application, err := app.New(cmd.Context(), cfg, logger, app.Options{Output: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run %s: %w", report.RunID, err)
	}
	return nil
}
