package packager

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/logger"
)

const (
	// ManifestEntry is the archive path of the manifest.
	ManifestEntry = "package.xml"
	// ClassesFolder holds sources and descriptors inside the archive.
	ClassesFolder = "classes"
	// DescriptorSuffix is appended to a source entry to name its descriptor.
	DescriptorSuffix = "-meta.xml"
)

// archiveTime is stamped on every entry so that archives are reproducible.
//
//nolint:gochecknoglobals // Constant value; time.Time cannot be a const.
var archiveTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ReadFileFunc loads the content of one artifact.
type ReadFileFunc func(name string) ([]byte, error)

// Builder assembles deployment archives.
type Builder struct {
	readFile          ReadFileFunc
	descriptorVersion string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithReadFile replaces os.ReadFile, mostly for tests.
func WithReadFile(fn ReadFileFunc) BuilderOption {
	return func(b *Builder) {
		if fn != nil {
			b.readFile = fn
		}
	}
}

// WithDescriptorVersion overrides the apiVersion written into descriptors.
func WithDescriptorVersion(version string) BuilderOption {
	return func(b *Builder) {
		if version != "" {
			b.descriptorVersion = version
		}
	}
}

// NewBuilder returns a Builder reading from the local file system.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		readFile:          os.ReadFile,
		descriptorVersion: deploy.DescriptorAPIVersion,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// slot is one source entry plus its descriptor.
type slot struct {
	name    string
	content []byte
}

// Build reads every artifact and returns the zipped package.
// Artifacts sharing a logical name occupy one slot; the later content wins.
func (b *Builder) Build(ctx context.Context, artifacts []deploy.ArtifactRef) (*deploy.Package, error) {
	manifest, err := BuildManifest(artifacts)
	if err != nil {
		return nil, err
	}

	manifestText, err := RenderManifest(manifest)
	if err != nil {
		return nil, err
	}

	descriptor, err := RenderDescriptor(b.descriptorVersion)
	if err != nil {
		return nil, err
	}

	slots := make([]slot, 0, len(artifacts))
	index := make(map[string]int, len(artifacts))

	for _, a := range artifacts {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		content, readErr := b.readFile(a.SourcePath)
		if readErr != nil {
			return nil, &deploy.IOError{Path: a.SourcePath, Err: readErr}
		}

		name := EntryPath(a)
		if i, ok := index[name]; ok {
			logger.WarnKV(ctx, "Artifact overwrites an earlier one with the same name",
				"entry", name, "source", a.SourcePath)

			slots[i].content = content

			continue
		}

		index[name] = len(slots)
		slots = append(slots, slot{name: name, content: content})
	}

	var (
		buf     bytes.Buffer
		entries = make([]string, 0, 1+2*len(slots))
	)

	zw := zip.NewWriter(&buf)

	write := func(name string, content []byte) error {
		w, createErr := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: archiveTime,
		})
		if createErr != nil {
			return fmt.Errorf("create entry %s: %w", name, createErr)
		}

		if _, createErr = w.Write(content); createErr != nil {
			return fmt.Errorf("write entry %s: %w", name, createErr)
		}

		entries = append(entries, name)

		return nil
	}

	if err = write(ManifestEntry, []byte(manifestText)); err != nil {
		return nil, err
	}

	for _, s := range slots {
		if err = write(s.name, s.content); err != nil {
			return nil, err
		}

		if err = write(s.name+DescriptorSuffix, []byte(descriptor)); err != nil {
			return nil, err
		}
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	logger.DebugKV(ctx, "Package built", "entries", len(entries), "bytes", buf.Len())

	return &deploy.Package{
		Manifest: manifest,
		Entries:  entries,
		Data:     buf.Bytes(),
	}, nil
}

// EntryPath returns the archive path of an artifact's source entry.
func EntryPath(a deploy.ArtifactRef) string {
	return path.Join(ClassesFolder, a.FileName())
}
