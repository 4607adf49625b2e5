package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
)

var (
	// validateOnly asks for a check-only deployment.
	validateOnly bool
	// testLevel overrides the default RunLocalTests.
	testLevel string
	// runTests lists tests for RunSpecifiedTests.
	runTests []string
	// ignoreWarnings lets a deployment with warnings succeed.
	ignoreWarnings bool
	// noRollback keeps whatever succeeded when some components fail.
	noRollback bool

	deployCmd = &cobra.Command{
		Use:   "deploy [folder]",
		Short: "Deploy every matching class in a folder",
		Long: "Deploy every file directly under the folder whose name matches the settings' " +
			"artifact_pattern (*.cls by default). Exits non-zero unless the platform reports success.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			overrides, err := deployOverrides(cmd)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}

			defer a.flushMetrics(ctx)

			job, err := a.pipeline().DeployFolder(ctx, args[0], validateOnly, overrides)
			if err != nil {
				return err
			}

			a.recordJob(ctx, job, args[0], validateOnly)
			printJob(cmd.OutOrStdout(), job)

			if !job.Success {
				return fmt.Errorf("%w: status %s", errDeploymentFailed, job.Status)
			}

			return nil
		},
	}
)

// deployOverrides turns the flags the user actually set into overrides.
// Passing --tests without --test-level implies RunSpecifiedTests.
func deployOverrides(cmd *cobra.Command) (*deploy.OptionOverrides, error) {
	var overrides deploy.OptionOverrides

	flags := cmd.Flags()

	if flags.Changed("test-level") {
		level, err := deploy.ParseTestLevel(testLevel)
		if err != nil {
			return nil, err
		}

		overrides.TestLevel = &level
	}

	if flags.Changed("tests") {
		tests := append([]string(nil), runTests...)
		overrides.RunTests = &tests

		if overrides.TestLevel == nil {
			level := deploy.RunSpecifiedTests
			overrides.TestLevel = &level
		}
	}

	if flags.Changed("ignore-warnings") {
		overrides.IgnoreWarnings = &ignoreWarnings
	}

	if flags.Changed("no-rollback") {
		rollback := !noRollback
		overrides.RollbackOnError = &rollback
	}

	if err := overrides.Merge().Validate(); err != nil {
		return nil, err
	}

	return &overrides, nil
}

// printJob writes the outcome and every component failure.
func printJob(w io.Writer, job *deploy.Job) {
	_, _ = fmt.Fprintf(w, "Deployment %s: %s (success: %t", job.ID, job.Status, job.Success)

	if job.Attempts > 0 {
		_, _ = fmt.Fprintf(w, ", status requests: %d", job.Attempts)
	}

	_, _ = fmt.Fprintln(w, ")")

	if job.ErrorMessage != "" {
		_, _ = fmt.Fprintf(w, "Error: %s\n", job.ErrorMessage)
	}

	for _, f := range job.Failures {
		location := f.UnitName
		if f.LineNumber > 0 {
			location = fmt.Sprintf("%s:%d", f.UnitName, f.LineNumber)
		}

		_, _ = fmt.Fprintf(w, "  %s: %s\n", location, f.Problem)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := deployCmd.Flags()
	flags.BoolVar(&validateOnly, "validate", false, "validate only, do not save changes")
	flags.StringVar(&testLevel, "test-level", string(deploy.RunLocalTests),
		"NoTestRun, RunSpecifiedTests, RunLocalTests or RunAllTestsInOrg")
	flags.StringSliceVar(&runTests, "tests", nil, "test classes to run, comma separated")
	flags.BoolVar(&ignoreWarnings, "ignore-warnings", false, "succeed even if warnings are raised")
	flags.BoolVar(&noRollback, "no-rollback", false, "keep successful components when others fail")

	rootCmd.AddCommand(deployCmd)
}
