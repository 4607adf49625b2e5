// Package packager turns a list of Apex source files into a deployable
// archive.
//
// The archive holds package.xml followed by a classes/<name>.cls entry and a
// classes/<name>.cls-meta.xml descriptor per artifact. The manifest and the
// descriptors are rendered from fixed templates, and zip timestamps are
// pinned, so building the same input twice yields the same bytes.
package packager
