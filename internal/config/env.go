package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/obfuscate"
)

// Environment variables read by ApplyEnv.
const (
	EnvLoginURL       = "SF_LOGIN_URL"
	EnvUsername       = "SF_USERNAME"
	EnvClientID       = "SF_CLIENT_ID"
	EnvPrivateKey     = "SF_PRIVATE_KEY"
	EnvPrivateKeyFile = "SF_PRIVATE_KEY_FILE"
	EnvPrivateKeyXOR  = "SF_PRIVATE_KEY_XOR"
	EnvXORKey         = "SF_XOR_KEY"
)

// DefaultEnvFilename is the dotenv file loaded by LoadEnvFile when no name is given.
const DefaultEnvFilename = ".env"

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnvFile seeds the process environment from a dotenv file.
// Variables that are already set win, and a missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFilename
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// ApplyEnv overrides credential settings with non-empty environment values.
// An inline key wins over an obfuscated one, which wins over a key file.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	overrideString(&cfg.LoginURL, lookup, EnvLoginURL)
	overrideString(&cfg.Username, lookup, EnvUsername)
	overrideString(&cfg.ClientID, lookup, EnvClientID)
	overrideString(&cfg.PrivateKeyFile, lookup, EnvPrivateKeyFile)

	if key, ok := nonEmpty(lookup, EnvPrivateKey); ok {
		// Single-line env files usually carry the PEM with literal \n.
		cfg.PrivateKey = []byte(strings.ReplaceAll(key, `\n`, "\n"))

		return nil
	}

	masked, ok := nonEmpty(lookup, EnvPrivateKeyXOR)
	if !ok {
		return nil
	}

	xorKey, _ := nonEmpty(lookup, EnvXORKey)

	key, err := obfuscate.Decode(masked, xorKey)
	if err != nil {
		return &deploy.ConfigError{Reason: "decode " + EnvPrivateKeyXOR, Err: err}
	}

	cfg.PrivateKey = key

	return nil
}

func overrideString(dst *string, lookup LookupFunc, key string) {
	if value, ok := nonEmpty(lookup, key); ok {
		*dst = value
	}
}

func nonEmpty(lookup LookupFunc, key string) (string, bool) {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)

	return value, ok && value != ""
}
