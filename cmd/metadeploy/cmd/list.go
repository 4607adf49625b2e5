package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/service/packager"
)

// listCmd prints the artifacts deploy would pick up, without contacting the platform.
var listCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List the classes a deployment of the folder would include",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		artifacts, err := packager.Discover(args[0], cfg.ArtifactPattern)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, a := range artifacts {
			_, _ = fmt.Fprintf(out, "%s\t%s\n", a.LogicalName, packager.EntryPath(a))
		}

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(listCmd)
}
