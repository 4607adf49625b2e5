// Package history persists the record of the last finished deployment.
//
// The FileRepository stores and loads the record as JSON on disk; the CLI
// writes it after every deploy and prints it on demand.
package history
