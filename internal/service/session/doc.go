// Package session obtains and validates an authenticated session against the
// platform.
//
// Authentication uses the OAuth 2.0 JWT bearer flow: a short-lived RS256
// assertion (issuer = client id, subject = username, audience = login URL) is
// exchanged for an access token and the org's instance URL. The Manager keeps
// the resulting pair and reuses it for as long as a cheap probe request
// succeeds.
package session
