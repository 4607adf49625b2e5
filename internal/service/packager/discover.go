package packager

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
)

// Discover returns the files directly inside folder whose base name matches
// pattern, sorted by name. Subfolders are not descended into.
func Discover(folder, pattern string) ([]deploy.ArtifactRef, error) {
	matcher, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, &deploy.ConfigError{Reason: fmt.Sprintf("bad artifact pattern %q", pattern), Err: err}
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, &deploy.IOError{Path: folder, Err: err}
	}

	// os.ReadDir sorts by file name.
	artifacts := make([]deploy.ArtifactRef, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !matcher.Match(entry.Name()) {
			continue
		}

		artifacts = append(artifacts, deploy.NewArtifactRef(filepath.Join(folder, entry.Name())))
	}

	return artifacts, nil
}
