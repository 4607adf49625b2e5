package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
)

// TestCredentialsValidate reports all missing fields at once.
func TestCredentialsValidate(t *testing.T) {
	t.Parallel()

	err := Credentials{LoginURL: "https://login.salesforce.com"}.Validate()

	var cfgErr *deploy.ConfigError

	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, []string{"username", "client id", "private key"}, cfgErr.Missing)
	require.Len(t, multierr.Errors(cfgErr.Err), 3)
	require.ErrorIs(t, err, errFieldRequired)

	full := Credentials{
		LoginURL:   "https://login.salesforce.com",
		Username:   "u",
		ClientID:   "c",
		PrivateKey: []byte("k"),
	}
	require.NoError(t, full.Validate())
}

// TestConfigCredentials resolves the key from file only when no inline key exists.
func TestConfigCredentials(t *testing.T) {
	t.Parallel()

	keyPath := filepath.Join(t.TempDir(), "server.key")
	require.NoError(t, os.WriteFile(keyPath, []byte("file key"), 0o600))

	cfg := &Config{Username: "u", PrivateKeyFile: keyPath}

	creds, err := cfg.Credentials()
	require.NoError(t, err)
	require.Equal(t, "file key", string(creds.PrivateKey))
	require.Equal(t, "u", creds.Username)

	cfg.PrivateKey = []byte("inline key")

	creds, err = cfg.Credentials()
	require.NoError(t, err)
	require.Equal(t, "inline key", string(creds.PrivateKey))

	cfg = &Config{PrivateKeyFile: filepath.Join(t.TempDir(), "missing.key")}

	var cfgErr *deploy.ConfigError

	_, err = cfg.Credentials()
	require.ErrorAs(t, err, &cfgErr)
}
