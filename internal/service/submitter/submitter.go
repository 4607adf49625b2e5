package submitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/logger"
	"github.com/oshokin/metadeploy/internal/service/common"
)

const (
	// deployRequestPath is the metadata REST resource for deployments.
	deployRequestPath = "metadata/deployRequest"
	// archiveFilename is the file name announced for the archive part.
	archiveFilename = "deploy.zip"
	// tempPattern names the staged archive on disk.
	tempPattern = "metadeploy-*.zip"
)

var errEmptyPackage = errors.New("package has no data")

// Submitter posts deploy requests.
type Submitter struct {
	clientOptions []common.Option
	tempDir       string
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithClientOptions sets the options for the REST client built per request.
func WithClientOptions(opts ...common.Option) Option {
	return func(s *Submitter) {
		s.clientOptions = append(s.clientOptions, opts...)
	}
}

// WithTempDir stages archives in dir instead of os.TempDir.
func WithTempDir(dir string) Option {
	return func(s *Submitter) {
		s.tempDir = dir
	}
}

// New returns a Submitter.
func New(opts ...Option) *Submitter {
	s := new(Submitter)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// response is the body of an accepted deploy request.
type response struct {
	ID string `json:"id"`
}

// Submit uploads pkg with the overrides merged over the default options.
// The archive is staged in a temporary file that is removed on every path.
func (s *Submitter) Submit(
	ctx context.Context,
	session deploy.Session,
	pkg *deploy.Package,
	overrides *deploy.OptionOverrides,
) (string, error) {
	options := overrides.Merge()
	if err := options.Validate(); err != nil {
		return "", &deploy.SubmissionError{Reason: "invalid options", Err: err}
	}

	if pkg == nil || len(pkg.Data) == 0 {
		return "", &deploy.SubmissionError{Err: errEmptyPackage}
	}

	client, err := common.NewClient(session, s.clientOptions...)
	if err != nil {
		return "", &deploy.SubmissionError{Err: err}
	}

	staged, err := s.stage(pkg.Data)
	if err != nil {
		return "", &deploy.SubmissionError{Reason: "stage archive", Err: err}
	}

	defer func() {
		if removeErr := os.Remove(staged); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Failed to remove staged archive", "path", staged, "error", removeErr)
		}
	}()

	body, contentType, err := buildBody(options, staged)
	if err != nil {
		return "", &deploy.SubmissionError{Reason: "build request", Err: err}
	}

	logger.InfoKV(ctx, "Submitting deployment",
		"members", len(pkg.Manifest.Members),
		"check_only", options.CheckOnly,
		"test_level", options.TestLevel)

	var out response

	err = client.Do(ctx, common.Request{
		Method:      http.MethodPost,
		URL:         client.DataURL(deployRequestPath),
		Body:        body,
		ContentType: contentType,
	}, &out)
	if err != nil {
		return "", toSubmissionError(err)
	}

	if out.ID == "" {
		return "", &deploy.SubmissionError{Reason: "response has no job id"}
	}

	logger.InfoKV(ctx, "Deployment accepted", "job_id", out.ID)

	return out.ID, nil
}

// stage writes data to a fresh temporary file and returns its path.
func (s *Submitter) stage(data []byte) (string, error) {
	f, err := os.CreateTemp(s.tempDir, tempPattern)
	if err != nil {
		return "", err
	}

	name := f.Name()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(name)

		return "", err
	}

	if err = f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}

	return name, nil
}

// buildBody renders the two-part form: "json" with the options and "file"
// with the archive read back from disk.
func buildBody(options deploy.Options, archivePath string) (*bytes.Buffer, string, error) {
	payload, err := options.MarshalRequest()
	if err != nil {
		return nil, "", fmt.Errorf("encode options: %w", err)
	}

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	jsonHeader := make(textproto.MIMEHeader)
	jsonHeader.Set("Content-Disposition", `form-data; name="json"`)
	jsonHeader.Set("Content-Type", "application/json")

	part, err := mw.CreatePart(jsonHeader)
	if err != nil {
		return nil, "", err
	}

	if _, err = part.Write(payload); err != nil {
		return nil, "", err
	}

	fileHeader := make(textproto.MIMEHeader)
	fileHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, archiveFilename))
	fileHeader.Set("Content-Type", "application/zip")

	if part, err = mw.CreatePart(fileHeader); err != nil {
		return nil, "", err
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return nil, "", err
	}

	defer func() {
		_ = archive.Close()
	}()

	if _, err = io.Copy(part, archive); err != nil {
		return nil, "", err
	}

	if err = mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}

func toSubmissionError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &deploy.SubmissionError{StatusCode: apiErr.StatusCode, Err: err}
	}

	return &deploy.SubmissionError{Err: err}
}
