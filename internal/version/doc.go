// Package version exposes build metadata for metadeploy.
//
// Version, Commit and BuildTime are injected with -ldflags at build time and
// default to development values. UserAgent is what the platform sees.
package version
