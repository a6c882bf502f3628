package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsletterScanner/internal/app"
	"NewsletterScanner/internal/logging"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Process new emails on the configured interval until interrupted",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCommand)
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger, app.Options{Output: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}
