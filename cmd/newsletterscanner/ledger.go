package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"NewsletterScanner/internal/app"
	"NewsletterScanner/internal/logging"
)

var ledgerCommand = &cobra.Command{
	Use:   "ledger",
	Short: "Show where the processed-message ledger lives and how many ids it holds",
	Args:  cobra.NoArgs,
	RunE:  showLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCommand)
}

func showLedger(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

	info, err := app.InspectLedger(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "kind: %s\nlocation: %s\nids: %d\n", info.Kind, info.Location, info.IDs)
	return err
}
