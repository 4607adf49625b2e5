package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/metadeploy/internal/config"
)

var (
	// initSettings collects the values written by init.
	initSettings config.Config
	// initForce allows overwriting an existing settings file.
	initForce bool

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a settings file",
		Long:  "Write a settings file with the connection details. The private key itself is never stored.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultConfigFilename
			}

			if _, err := os.Stat(path); err == nil && !initForce {
				return fmt.Errorf("%w: %s", errSettingsExist, path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			settings := initSettings
			if err := config.Save(path, &settings); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := initCmd.Flags()
	flags.StringVar(&initSettings.LoginURL, "login-url", config.DefaultLoginURL, "OAuth login host")
	flags.StringVar(&initSettings.Username, "username", "", "user the assertion is issued for")
	flags.StringVar(&initSettings.ClientID, "client-id", "", "connected app consumer key")
	flags.StringVar(&initSettings.PrivateKeyFile, "private-key-file", "", "PEM file with the signing key")
	flags.StringVar(&initSettings.APIVersion, "api-version", config.DefaultAPIVersion, "REST API version")
	flags.DurationVar(&initSettings.Timeout, "timeout", config.DefaultTimeout, "HTTP request timeout")
	flags.IntVar(&initSettings.Poll.Attempts, "poll-attempts", config.DefaultPollAttempts, "status requests before giving up")
	flags.DurationVar(&initSettings.Poll.Interval, "poll-interval", config.DefaultPollInterval, "pause between status requests")
	flags.StringVar(&initSettings.ArtifactPattern, "pattern", config.DefaultArtifactPattern, "file name pattern for deploy")
	flags.BoolVar(&initForce, "force", false, "overwrite an existing settings file")

	rootCmd.AddCommand(initCmd)
}
