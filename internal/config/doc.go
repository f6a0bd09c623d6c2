// Package config loads the resolver daemon configuration from a JSON or
// YAML file, fills defaults and validates the resolver and token setup.
package config
