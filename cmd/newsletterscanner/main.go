// Package main is the newsletterscanner command line entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NewsletterScanner/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "newsletterscanner",
	Short: "Classify newsletter emails and store them as structured records",
	Long: `newsletterscanner reads newsletter emails from a mailbox directory, assigns each one a
category by keywords or an LLM, and writes a bounded record to Notion, a SQL database or stdout.
Messages already written are remembered in a ledger and never written twice.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults to NEWSLETTER_SCANNER_CONFIG)")
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
