package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oshokin/metadeploy/internal/service/notifier"
)

var (
	// emailTo are the recipients.
	emailTo []string
	// emailSubject is the subject line.
	emailSubject string
	// emailBody is the plain-text body.
	emailBody string
	// emailBodyFile reads the body from a file, "-" for stdin.
	emailBodyFile string

	notifyCmd = &cobra.Command{
		Use:   "notify",
		Short: "Send an email through the org",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			body, err := readBody(cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}

			result, err := notifier.New(a.sessions, a.sessions.ClientOptions()...).Send(ctx, notifier.Email{
				To:      emailTo,
				Subject: emailSubject,
				Body:    body,
			})
			if err != nil {
				return err
			}

			if !result.Success {
				return fmt.Errorf("%w: %s", errEmailRefused, strings.Join(result.Errors, "; "))
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Email sent to %s\n", strings.Join(emailTo, ", "))

			return nil
		},
	}
)

func readBody(stdin io.Reader) (string, error) {
	switch emailBodyFile {
	case "":
		return emailBody, nil
	case "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	default:
		data, err := os.ReadFile(filepath.Clean(emailBodyFile))
		return string(data), err
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := notifyCmd.Flags()
	flags.StringSliceVar(&emailTo, "to", nil, "recipient addresses, comma separated")
	flags.StringVar(&emailSubject, "subject", "", "subject line")
	flags.StringVar(&emailBody, "body", "", "plain-text body")
	flags.StringVar(&emailBodyFile, "body-file", "", "read the body from a file, - for stdin")

	_ = notifyCmd.MarkFlagRequired("to")
	_ = notifyCmd.MarkFlagRequired("subject")
	notifyCmd.MarkFlagsMutuallyExclusive("body", "body-file")

	rootCmd.AddCommand(notifyCmd)
}
