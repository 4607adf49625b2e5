package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/obfuscate"
)

// TestValidate checks defaulting and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty config gets every default.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultPollAttempts, cfg.Poll.Attempts)
	require.Equal(t, DefaultPollInterval, cfg.Poll.Interval)
	require.Equal(t, DefaultPollAPIVersion, cfg.Poll.APIVersion)
	require.Equal(t, DefaultArtifactPattern, cfg.ArtifactPattern)
	require.Equal(t, DefaultHistoryFile, cfg.HistoryFile)

	// Bad API version.
	cfg = &Config{APIVersion: "v61"}
	require.ErrorIs(t, Validate(cfg), errBadAPIVersion)

	cfg = &Config{Poll: PollConfig{APIVersion: "latest"}}
	require.ErrorIs(t, Validate(cfg), errBadAPIVersion)

	// Bad login URL.
	cfg = &Config{LoginURL: "login.salesforce.com"}
	require.Error(t, Validate(cfg))

	cfg = &Config{LoginURL: "ftp://login.salesforce.com"}
	require.ErrorIs(t, Validate(cfg), errBadLoginURL)

	// Explicit values are kept.
	cfg = &Config{
		LoginURL: "https://test.salesforce.com",
		Poll:     PollConfig{Attempts: 3, Interval: time.Second},
	}
	require.NoError(t, Validate(cfg))
	require.Equal(t, 3, cfg.Poll.Attempts)
	require.Equal(t, time.Second, cfg.Poll.Interval)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
//
//nolint:paralleltest // Load reads the process environment.
func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		LoginURL:       "https://login.salesforce.com",
		Username:       "deployer@example.com",
		ClientID:       "3MVG9",
		PrivateKeyFile: "server.key",
		Poll:           PollConfig{Attempts: 10, Interval: 2 * time.Second},
		PrivateKey:     []byte("never written"),
	}

	require.NoError(t, Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "never written")
	require.Contains(t, string(raw), "interval: 2s")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Username, loaded.Username)
	require.Equal(t, cfg.ClientID, loaded.ClientID)
	require.Equal(t, cfg.PrivateKeyFile, loaded.PrivateKeyFile)
	require.Equal(t, cfg.Poll, loaded.Poll)
	require.Empty(t, loaded.PrivateKey)

	require.ErrorIs(t, Save(path, nil), errConfigIsNotSet)
}

// TestLoad_MissingExplicitFile fails only when the path was asked for.
//
//nolint:paralleltest // Load reads the process environment.
func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

// TestApplyEnv covers overrides, escaped newlines and the XOR-obfuscated key.
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvLoginURL:   "https://test.salesforce.com",
		EnvUsername:   "ci@example.com",
		EnvClientID:   " 3MVG9 ",
		EnvPrivateKey: `-----BEGIN KEY-----\nabc\n-----END KEY-----`,
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := &Config{Username: "from-file@example.com"}
	require.NoError(t, ApplyEnv(cfg, lookup))
	require.Equal(t, "https://test.salesforce.com", cfg.LoginURL)
	require.Equal(t, "ci@example.com", cfg.Username)
	require.Equal(t, "3MVG9", cfg.ClientID)
	require.Equal(t, "-----BEGIN KEY-----\nabc\n-----END KEY-----", string(cfg.PrivateKey))

	// Obfuscated key is used when no inline key is present.
	masked, err := obfuscate.Encode([]byte("pem bytes"), "secret")
	require.NoError(t, err)

	delete(env, EnvPrivateKey)
	env[EnvPrivateKeyXOR] = masked
	env[EnvXORKey] = "secret"

	cfg = new(Config)
	require.NoError(t, ApplyEnv(cfg, lookup))
	require.Equal(t, "pem bytes", string(cfg.PrivateKey))

	// Missing XOR key is a configuration error.
	delete(env, EnvXORKey)

	var cfgErr *deploy.ConfigError

	require.ErrorAs(t, ApplyEnv(new(Config), lookup), &cfgErr)
}

// TestLoadEnvFile seeds variables from a dotenv file and ignores a missing one.
//
//nolint:paralleltest // Mutates the process environment.
func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SF_TEST_ONLY_VALUE=from-dotenv\n"), 0o600))

	t.Setenv("SF_TEST_ONLY_VALUE", "")
	require.NoError(t, os.Unsetenv("SF_TEST_ONLY_VALUE"))

	require.NoError(t, LoadEnvFile(path))
	require.Equal(t, "from-dotenv", os.Getenv("SF_TEST_ONLY_VALUE"))
}
