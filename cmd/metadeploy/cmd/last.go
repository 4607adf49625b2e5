package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/repository/history"
)

// lastCmd prints the record of the last finished deployment.
var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the last finished deployment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		record, err := history.NewFileRepository(cfg.HistoryFile).Load(context.Background())
		if errors.Is(err, history.ErrNotFound) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No deployment recorded yet")
			return nil
		} else if err != nil {
			return err
		}

		printRecord(cmd.OutOrStdout(), record)

		return nil
	},
}

func printRecord(w io.Writer, record *deploy.Record) {
	kind := "deploy"
	if record.CheckOnly {
		kind = "validation"
	}

	_, _ = fmt.Fprintf(w, "Last %s of %s at %s\n", kind, record.Folder, record.FinishedAt.Format(time.RFC3339))

	if record.Actor != nil {
		_, _ = fmt.Fprintf(w, "Run by %s on %s\n", record.Actor.Username, record.Actor.Hostname)
	}

	printJob(w, &deploy.Job{
		ID:       record.JobID,
		Status:   record.Status,
		Success:  record.Success,
		Failures: record.Failures,
	})
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(lastCmd)
}
