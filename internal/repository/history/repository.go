package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/domain/deploy"
)

// Repository defines persistence operations for the deployment record.
type Repository interface {
	Load(ctx context.Context) (*deploy.Record, error)
	Save(ctx context.Context, record *deploy.Record) error
}

// FileRepository persists the record to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the record file.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no deployment has been recorded yet.
	ErrNotFound = errors.New("no deployment recorded")

	errNilRecord = errors.New("record is nil")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*deploy.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read record file: %w", err)
	}

	var record deploy.Record
	if err = json.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode record file: %w", err)
	}

	return &record, nil
}

// Save replaces the record on disk. The file is written next to its final
// location and renamed, so a reader never sees half a record.
func (r *FileRepository) Save(_ context.Context, record *deploy.Record) error {
	if record == nil {
		return errNilRecord
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*")
	if err != nil {
		return fmt.Errorf("create record file: %w", err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write record file: %w", err)
	}

	if err = tmp.Chmod(config.DefaultFilePermissions); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod record file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close record file: %w", err)
	}

	if err = os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace record file: %w", err)
	}

	return nil
}
