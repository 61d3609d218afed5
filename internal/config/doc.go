// Package config defines the service settings and loads them from a YAML
// file, environment overrides and built-in defaults, in increasing order of
// precedence: defaults, file, environment.
package config
