package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/obfuscate"
)

var (
	// xorKey masks the private key; falls back to SF_XOR_KEY.
	xorKey string

	encodeKeyCmd = &cobra.Command{
		Use:   "encode-key [pem-file]",
		Short: "Print an obfuscated private key for " + config.EnvPrivateKeyXOR,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := xorKey
			if key == "" {
				key = os.Getenv(config.EnvXORKey)
			}

			if key == "" {
				return errXORKeyRequired
			}

			pem, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return err
			}

			encoded, err := obfuscate.Encode(pem, key)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", config.EnvPrivateKeyXOR, encoded)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	encodeKeyCmd.Flags().StringVar(&xorKey, "xor-key", "", "masking key (default $"+config.EnvXORKey+")")

	rootCmd.AddCommand(encodeKeyCmd)
}
