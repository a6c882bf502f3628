package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"NewsletterScanner/internal/app"
	"NewsletterScanner/internal/logging"
)

var categorizeCommand = &cobra.Command{
	Use:   "categorize FILE",
	Short: "Categorize one .eml, .html or text file and print the record as JSON",
	Long: `Runs categorization and structuring on a single file without writing to the sink or
touching the ledger. Useful for tuning keywords and thresholds.`,
	Args: cobra.ExactArgs(1),
	RunE: categorizeFile,
}

func init() {
	rootCmd.AddCommand(categorizeCommand)
}

func categorizeFile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

	rec, err := app.Categorize(cmd.Context(), cfg, logger, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
