// Package config loads the settings of the deployment tool.
//
// Settings live in an optional YAML file; the credential fields can be
// overridden from the environment, which may itself be seeded from a .env
// file. Validate fills defaults, Credentials resolves the private key and
// reports every missing credential at once.
package config
