package deploy

import (
	"path/filepath"
	"strings"
)

const (
	// ApexClassType is the metadata type name listed in the manifest.
	ApexClassType = "ApexClass"
	// ManifestAPIVersion is the API version written into package.xml.
	ManifestAPIVersion = "63.0"
	// DescriptorAPIVersion is the API version written into every -meta.xml companion.
	DescriptorAPIVersion = "62.0"
)

// ArtifactRef points at one source file to deploy.
type ArtifactRef struct {
	// SourcePath is where the content is read from.
	SourcePath string
	// LogicalName is the base file name without its extension.
	LogicalName string
}

// NewArtifactRef derives the logical name from the path.
func NewArtifactRef(path string) ArtifactRef {
	base := filepath.Base(path)

	return ArtifactRef{
		SourcePath:  path,
		LogicalName: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

// FileName is the base name of the source, extension included.
func (a ArtifactRef) FileName() string {
	return a.LogicalName + filepath.Ext(a.SourcePath)
}

// Manifest lists which members a package deploys.
type Manifest struct {
	// Members are the logical names, in input order.
	Members []string
	// TypeName is the metadata type of every member.
	TypeName string
	// Version is the target API version.
	Version string
}

// Package is a built deployment archive.
type Package struct {
	// Manifest is the manifest written as the first entry.
	Manifest Manifest
	// Entries are the archive paths in write order.
	Entries []string
	// Data is the zip archive.
	Data []byte
}
