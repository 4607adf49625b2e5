package session

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/logger"
	"github.com/oshokin/metadeploy/internal/service/common"
)

const (
	// tokenPath is appended to the login URL for the token exchange.
	tokenPath = "/services/oauth2/token"
	// probePath is a cheap authenticated listing used to test a session.
	probePath = "sobjects/"
	// assertionTTL is the lifetime of the signed assertion, not of the session.
	assertionTTL = 300 * time.Second
)

var errNoPEMBlock = errors.New("no PEM block found")

// CredentialSource supplies the login URL, identity, client id and signing key.
type CredentialSource interface {
	Credentials() (config.Credentials, error)
}

// Manager owns the session of one pipeline. It serialises writes to the
// session pair but does not make EnsureSession atomic: two concurrent callers
// may both authenticate, and the last one wins.
type Manager struct {
	source     CredentialSource
	httpClient *http.Client
	apiVersion string
	timeout    time.Duration

	mu      sync.Mutex
	session deploy.Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient replaces the HTTP client used for token exchange and probes.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(m *Manager) {
		if httpClient != nil {
			m.httpClient = httpClient
		}
	}
}

// WithAPIVersion sets the data API version used by the probe.
func WithAPIVersion(apiVersion string) Option {
	return func(m *Manager) {
		if apiVersion != "" {
			m.apiVersion = apiVersion
		}
	}
}

// WithTimeout bounds each token exchange and probe.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// NewManager returns a Manager without a session.
func NewManager(source CredentialSource, opts ...Option) *Manager {
	m := &Manager{
		source:     source,
		httpClient: http.DefaultClient,
		apiVersion: config.DefaultAPIVersion,
		timeout:    config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Current returns the stored session, which may be empty.
func (m *Manager) Current() deploy.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

// ClientOptions returns the options every REST client built on this
// manager's sessions should use.
func (m *Manager) ClientOptions() []common.Option {
	return []common.Option{
		common.WithHTTPClient(m.httpClient),
		common.WithAPIVersion(m.apiVersion),
		common.WithCallTimeout(m.timeout),
	}
}

// EnsureSession returns the stored session if the platform still accepts it,
// and authenticates otherwise.
func (m *Manager) EnsureSession(ctx context.Context) (deploy.Session, error) {
	current := m.Current()
	if current.Valid() && m.Probe(ctx, current) {
		logger.DebugKV(ctx, "Reusing existing session")
		return current, nil
	}

	return m.Authenticate(ctx)
}

// Authenticate exchanges a freshly signed assertion for a new session and
// stores it. Credentials are checked before any request is made. When the
// exchange fails the previous session is kept as it was.
func (m *Manager) Authenticate(ctx context.Context) (deploy.Session, error) {
	creds, err := m.source.Credentials()
	if err != nil {
		return deploy.Session{}, err
	}

	if err = creds.Validate(); err != nil {
		return deploy.Session{}, err
	}

	if _, err = parsePrivateKey(creds.PrivateKey); err != nil {
		return deploy.Session{}, &deploy.ConfigError{Reason: "parse private key", Err: err}
	}

	loginURL := strings.TrimRight(creds.LoginURL, "/")

	conf := &jwt.Config{
		Email:      creds.ClientID,
		Subject:    creds.Username,
		PrivateKey: creds.PrivateKey,
		Audience:   loginURL,
		TokenURL:   loginURL + tokenPath,
		Expires:    assertionTTL,
	}

	logger.InfoKV(ctx, "Authenticating", "login_url", loginURL, "username", creds.Username)

	// The token source posts without a request context, so the timeout
	// has to live on the client.
	httpClient := *m.httpClient
	httpClient.Timeout = m.timeout

	token, err := conf.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, &httpClient)).Token()
	if err != nil {
		return deploy.Session{}, toAuthError(err)
	}

	instanceURL, _ := token.Extra("instance_url").(string)
	if instanceURL == "" {
		return deploy.Session{}, &deploy.AuthError{Message: "token response has no instance_url"}
	}

	fresh := deploy.Session{
		AccessToken: token.AccessToken,
		InstanceURL: instanceURL,
	}

	m.mu.Lock()
	m.session = fresh
	m.mu.Unlock()

	logger.InfoKV(ctx, "Authenticated", "instance_url", instanceURL)

	return fresh, nil
}

// Probe reports whether the platform accepts the session. Failures of any
// kind, transport included, mean "invalid"; Probe never returns an error.
func (m *Manager) Probe(ctx context.Context, s deploy.Session) bool {
	client, err := common.NewClient(s, m.ClientOptions()...)
	if err != nil {
		return false
	}

	if err = client.Get(ctx, client.DataURL(probePath), nil); err != nil {
		logger.DebugKV(ctx, "Session probe failed", "error", err)
		return false
	}

	return true
}

// tokenError is the OAuth error body of a rejected exchange.
type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// toAuthError keeps the HTTP status and the OAuth error fields when present.
func toAuthError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return &deploy.AuthError{Err: err}
	}

	authErr := &deploy.AuthError{Err: err}
	if retrieveErr.Response != nil {
		authErr.StatusCode = retrieveErr.Response.StatusCode
	}

	var body tokenError
	if jsonErr := json.Unmarshal(retrieveErr.Body, &body); jsonErr == nil && body.Error != "" {
		authErr.Message = body.Error
		if body.Description != "" {
			authErr.Message += " (" + body.Description + ")"
		}
	}

	return authErr
}

// parsePrivateKey checks that the PEM holds an RSA key, PKCS1 or PKCS8.
func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errNoPEMBlock
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if pkcs8Err != nil {
		return nil, fmt.Errorf("%w (also tried PKCS8: %w)", err, pkcs8Err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, not RSA", parsed)
	}

	return rsaKey, nil
}
