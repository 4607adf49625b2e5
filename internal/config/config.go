package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to reach the platform and run a deployment.
type Config struct {
	// LoginURL is the OAuth host, e.g. https://login.salesforce.com.
	LoginURL string `yaml:"login_url"`
	// Username is the identity the assertion is issued for.
	Username string `yaml:"username"`
	// ClientID is the consumer key of the connected app.
	ClientID string `yaml:"client_id"`
	// PrivateKeyFile is a PEM file with the connected app's signing key.
	PrivateKeyFile string `yaml:"private_key_file,omitempty"`
	// APIVersion is used in every REST path, without the leading "v".
	APIVersion string `yaml:"api_version"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// Poll configures how long a deployment is waited for.
	Poll PollConfig `yaml:"poll"`
	// ArtifactPattern selects the files a folder deployment picks up.
	ArtifactPattern string `yaml:"artifact_pattern"`
	// MetricsFile, when set, receives a Prometheus text dump after each run.
	MetricsFile string `yaml:"metrics_file,omitempty"`
	// HistoryFile keeps the record of the last finished deployment.
	HistoryFile string `yaml:"history_file"`

	// PrivateKey is resolved from the environment at load time and never persisted.
	PrivateKey []byte `yaml:"-"`
}

// PollConfig is the bounded wait for a deployment to finish.
type PollConfig struct {
	// Attempts is the number of status requests before giving up.
	Attempts int `yaml:"attempts"`
	// Interval is the fixed pause between two status requests.
	Interval time.Duration `yaml:"interval"`
	// APIVersion is used for status requests only.
	APIVersion string `yaml:"api_version"`
}

const (
	// DefaultConfigFilename is the settings file looked up when none is given.
	DefaultConfigFilename = "metadeploy-settings.yaml"

	// DefaultLoginURL is the production login host.
	DefaultLoginURL = "https://login.salesforce.com"

	// DefaultAPIVersion is the REST API version used for probe, submit and email.
	DefaultAPIVersion = "61.0"

	// DefaultPollAPIVersion is the REST API version used for status requests.
	DefaultPollAPIVersion = "62.0"

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultPollAttempts and DefaultPollInterval bound the wait to 150 seconds.
	DefaultPollAttempts = 30
	DefaultPollInterval = 5 * time.Second

	// DefaultArtifactPattern picks up Apex classes.
	DefaultArtifactPattern = "*.cls"

	// DefaultHistoryFile is where the last deployment is recorded.
	DefaultHistoryFile = ".metadeploy-last.json"

	// DefaultFilePermissions is used for the settings file.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadAPIVersion is returned for versions such as "v61" or "latest".
	errBadAPIVersion = errors.New("api version must look like 61.0")
	// errBadLoginURL is returned for non-HTTP login URLs.
	errBadLoginURL = errors.New("login url must be an absolute http(s) URL")
)

// Load reads the settings file, applies environment overrides and validates the result.
// A missing file at the default location is not an error: everything can come
// from the environment.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Environment only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the settings to the provided path. Secrets are never written.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the formatting of the fields that are set.
// Missing credentials are reported later by Credentials, so that commands that
// never talk to the platform can still run.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	if cfg.Poll.APIVersion == "" {
		cfg.Poll.APIVersion = DefaultPollAPIVersion
	}

	for _, v := range []string{cfg.APIVersion, cfg.Poll.APIVersion} {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("%w: got %q", errBadAPIVersion, v)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Poll.Attempts <= 0 {
		cfg.Poll.Attempts = DefaultPollAttempts
	}

	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}

	if cfg.ArtifactPattern == "" {
		cfg.ArtifactPattern = DefaultArtifactPattern
	}

	if cfg.HistoryFile == "" {
		cfg.HistoryFile = DefaultHistoryFile
	}

	if cfg.LoginURL == "" {
		return nil
	}

	u, err := url.ParseRequestURI(cfg.LoginURL)
	if err != nil {
		return fmt.Errorf("invalid login url: %w", err)
	}

	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: got %q", errBadLoginURL, cfg.LoginURL)
	}

	return nil
}
