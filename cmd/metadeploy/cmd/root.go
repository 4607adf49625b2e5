package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/logger"
	"github.com/oshokin/metadeploy/internal/version"
)

var (
	// configPath to the settings YAML file; empty means the default, which may be absent.
	configPath string
	// envFile is the dotenv file with credentials.
	envFile string
	// logLevel is the minimum level written to stderr.
	logLevel string
	// metricsFile overrides the settings' metrics_file.
	metricsFile string

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "metadeploy",
		Short: "Deploy Apex classes to a Salesforce org",
		Long: "metadeploy authenticates with the JWT bearer flow, packages Apex classes " +
			"with their manifest, submits a deploy request and waits for it to finish.",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return config.LoadEnvFile(envFile)
		},
	}
)

// Execute runs the metadeploy CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "",
		"path to settings file (default "+config.DefaultConfigFilename+", optional)")
	flags.StringVar(&envFile, "env-file", config.DefaultEnvFilename, "dotenv file with SF_* credentials, ignored when absent")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
}
