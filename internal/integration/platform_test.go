package integration

import (
	"archive/zip"
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/metrics"
	"github.com/oshokin/metadeploy/internal/service/packager"
	"github.com/oshokin/metadeploy/internal/service/pipeline"
	"github.com/oshokin/metadeploy/internal/service/poller"
	"github.com/oshokin/metadeploy/internal/service/session"
	"github.com/oshokin/metadeploy/internal/service/submitter"
)

//nolint:gochecknoglobals // Generated once per test binary.
var keyPEM = func() []byte {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}()

// submission is one deploy request as the platform received it.
type submission struct {
	Options map[string]any
	Entries []string
	Files   map[string]string
}

// platform is an in-memory org: token endpoint, probe, deploy and status.
type platform struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	tokenCalls  int
	submissions []submission
	statusCalls int
	// statuses are served in order for status requests, the last one repeats.
	statuses []string
	emails   []map[string]any
}

func newPlatform(t *testing.T, statuses ...string) *platform {
	t.Helper()

	p := &platform{t: t, statuses: statuses}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /services/oauth2/token", p.token)
	mux.HandleFunc("GET /services/data/v61.0/sobjects/", p.authorized(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"sobjects":[]}`))
	}))
	mux.HandleFunc("POST /services/data/v61.0/metadata/deployRequest", p.authorized(p.deploy))
	mux.HandleFunc("GET /services/data/v62.0/metadata/deployRequest/{id}", p.authorized(p.status))
	mux.HandleFunc("POST /services/data/v61.0/actions/standard/emailSimple", p.authorized(p.email))

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)

	return p
}

func (p *platform) token(w http.ResponseWriter, r *http.Request) {
	assert.NoError(p.t, r.ParseForm())
	assert.Equal(p.t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))
	assert.NotEmpty(p.t, r.PostForm.Get("assertion"))

	p.mu.Lock()
	p.tokenCalls++
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token": "00Dxx!session",
		"instance_url": p.server.URL,
		"token_type":   "Bearer",
	})
}

func (p *platform) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer 00Dxx!session" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`[{"errorCode":"INVALID_SESSION_ID","message":"Session expired or invalid"}]`))

			return
		}

		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

func (p *platform) deploy(w http.ResponseWriter, r *http.Request) {
	var sub submission

	reader, err := r.MultipartReader()
	if !assert.NoError(p.t, err) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for {
		part, partErr := reader.NextPart()
		if partErr == io.EOF {
			break
		}

		if !assert.NoError(p.t, partErr) {
			return
		}

		data, _ := io.ReadAll(part)

		switch part.FormName() {
		case "json":
			var wrapper struct {
				DeployOptions map[string]any `json:"deployOptions"`
			}

			assert.NoError(p.t, json.Unmarshal(data, &wrapper))
			sub.Options = wrapper.DeployOptions
		case "file":
			sub.Entries, sub.Files = unzip(p.t, data)
		}
	}

	p.mu.Lock()
	p.submissions = append(p.submissions, sub)
	p.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"id":"0Af5g00000ABCDE","deployResult":{"status":"Pending"}}`))
}

func (p *platform) status(w http.ResponseWriter, r *http.Request) {
	assert.Equal(p.t, "0Af5g00000ABCDE", r.PathValue("id"))
	assert.Equal(p.t, "true", r.URL.Query().Get("includeDetails"))

	p.mu.Lock()
	i := p.statusCalls
	p.statusCalls++
	p.mu.Unlock()

	if i >= len(p.statuses) {
		i = len(p.statuses) - 1
	}

	_, _ = w.Write([]byte(p.statuses[i]))
}

func (p *platform) email(w http.ResponseWriter, r *http.Request) {
	var body map[string]any

	assert.NoError(p.t, json.NewDecoder(r.Body).Decode(&body))

	p.mu.Lock()
	p.emails = append(p.emails, body)
	p.mu.Unlock()

	_, _ = w.Write([]byte(`[{"actionName":"emailSimple","isSuccess":true}]`))
}

// unzip reads the archive with the standard reader, as the platform would.
func unzip(t *testing.T, data []byte) ([]string, map[string]string) {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	files := make(map[string]string, len(zr.File))

	for _, f := range zr.File {
		rc, openErr := f.Open()
		require.NoError(t, openErr)

		content, readErr := io.ReadAll(rc)
		require.NoError(t, readErr)

		_ = rc.Close()

		names = append(names, f.Name)
		files[f.Name] = string(content)
	}

	return names, files
}

func (p *platform) config() *config.Config {
	return &config.Config{
		LoginURL:   p.server.URL,
		Username:   "deployer@example.com",
		ClientID:   "3MVG9client",
		PrivateKey: keyPEM,
		APIVersion: config.DefaultAPIVersion,
		Timeout:    5 * time.Second,
		Poll: config.PollConfig{
			Attempts:   5,
			Interval:   50 * time.Millisecond,
			APIVersion: config.DefaultPollAPIVersion,
		},
		ArtifactPattern: config.DefaultArtifactPattern,
	}
}

// stack wires the real components against the platform.
type stack struct {
	sessions *session.Manager
	pipeline *pipeline.Pipeline
	recorder *metrics.Recorder
}

func (p *platform) stack(cfg *config.Config) stack {
	sessions := session.NewManager(cfg,
		session.WithHTTPClient(p.server.Client()),
		session.WithAPIVersion(cfg.APIVersion),
		session.WithTimeout(cfg.Timeout))

	clientOptions := sessions.ClientOptions()
	recorder := metrics.NewRecorder(true)

	return stack{
		sessions: sessions,
		recorder: recorder,
		pipeline: pipeline.New(
			sessions,
			packager.NewBuilder(),
			submitter.New(submitter.WithClientOptions(clientOptions...), submitter.WithTempDir(p.t.TempDir())),
			poller.New(
				poller.WithClientOptions(clientOptions...),
				poller.WithBudget(cfg.Poll.Attempts, cfg.Poll.Interval),
				poller.WithAPIVersion(cfg.Poll.APIVersion),
			),
			pipeline.WithRecorder(recorder),
			pipeline.WithArtifactPattern(cfg.ArtifactPattern),
		),
	}
}

func (p *platform) lastSubmission() submission {
	p.mu.Lock()
	defer p.mu.Unlock()

	require.NotEmpty(p.t, p.submissions)

	return p.submissions[len(p.submissions)-1]
}

func (p *platform) counts() (tokens, submissions, statuses int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tokenCalls, len(p.submissions), p.statusCalls
}

// membersOf extracts <members> values from a manifest.
func membersOf(manifest string) []string {
	var members []string

	for _, line := range strings.Split(manifest, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "<members>"); ok {
			members = append(members, strings.TrimSuffix(name, "</members>"))
		}
	}

	return members
}
