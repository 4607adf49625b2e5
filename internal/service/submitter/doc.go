// Package submitter uploads a built package as a deploy request and returns
// the id of the asynchronous job the platform starts for it.
package submitter
