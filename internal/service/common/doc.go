// Package common holds helpers shared by several services.
//
// Client is a thin authenticated REST client for the platform: it resolves
// versioned data API paths against a session's instance URL, applies a
// per-call timeout, and turns non-2xx responses into *APIError.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
