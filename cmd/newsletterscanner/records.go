package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"NewsletterScanner/internal/app"
)

var recordsCommand = &cobra.Command{
	Use:   "records CATEGORY",
	Short: "List records the sql sink stored under one category",
	Args:  cobra.ExactArgs(1),
	RunE:  listRecords,
}

func init() {
	rootCmd.AddCommand(recordsCommand)
}

func listRecords(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	records, err := app.ListRecords(cmd.Context(), cfg, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MESSAGE ID\tTITLE\tCONFIDENCE\tSOURCE")
	for _, rec := range records {
		confidence := "-"
		if rec.Confidence.Valid {
			confidence = fmt.Sprintf("%.2f", rec.Confidence.Float64)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.MessageID, rec.Title, confidence, rec.SourceURL)
	}
	return w.Flush()
}
