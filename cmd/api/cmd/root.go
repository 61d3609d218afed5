package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"shiptwin/internal/app"
	"shiptwin/internal/buildinfo"
	"shiptwin/internal/logger"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	rootCmd = &cobra.Command{
		Use:   "shiptwin",
		Short: "Run the shipment digital-twin tracking service.",
		Long: `Starts the HTTP API that ingests shipment telemetry, keeps a live digital
twin per shipment, evaluates geofences and alert thresholds, and streams
state changes to WebSocket clients, webhooks and optional brokers.

Settings come from the YAML file given with --config (default shiptwin.yaml,
optional), overridden by environment variables. A .env file in the working
directory is loaded first.`,
		Args: cobra.NoArgs,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env is normal outside development.
			_ = godotenv.Load()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return app.Run(ctx, &app.Options{ConfigPath: configPath})
		},
	}
)

// Execute runs the CLI and exits with non-zero status on error.
func Execute() {
	buildinfo.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf(context.Background(), "shiptwin: %v", err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default shiptwin.yaml)")
}
