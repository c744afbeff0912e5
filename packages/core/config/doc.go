// Package config handles configuration loading and management for restexec.
//
// It provides functionality for:
//   - Loading configuration from .restexec.json or restexec.config.json files
//   - Default configuration values
//   - Merging file configuration with command line overrides
package config
