package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
)

// Credentials are what the session manager needs to mint an assertion.
type Credentials struct {
	LoginURL   string
	Username   string
	ClientID   string
	PrivateKey []byte
}

var errFieldRequired = errors.New("field is required")

// Validate reports every missing field in a single ConfigError.
func (c Credentials) Validate() error {
	var (
		errs    error
		missing []string
	)

	check := func(name string, present bool) {
		if present {
			return
		}

		missing = append(missing, name)
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, errFieldRequired))
	}

	check("login url", c.LoginURL != "")
	check("username", c.Username != "")
	check("client id", c.ClientID != "")
	check("private key", len(c.PrivateKey) > 0)

	if errs == nil {
		return nil
	}

	return &deploy.ConfigError{Missing: missing, Err: errs}
}

// Credentials resolves the private key and returns the credential set.
// It does not validate; the session manager does that before any request.
func (c *Config) Credentials() (Credentials, error) {
	if c == nil {
		return Credentials{}, errConfigIsNotSet
	}

	key := c.PrivateKey
	if len(key) == 0 && c.PrivateKeyFile != "" {
		contents, err := os.ReadFile(filepath.Clean(c.PrivateKeyFile))
		if err != nil {
			return Credentials{}, &deploy.ConfigError{Reason: "read private key file", Err: err}
		}

		key = contents
	}

	return Credentials{
		LoginURL:   c.LoginURL,
		Username:   c.Username,
		ClientID:   c.ClientID,
		PrivateKey: key,
	}, nil
}
