// Package config loads application configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML file named
// by CONFIG_FILE (optional), environment variables.
package config
