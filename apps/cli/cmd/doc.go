// Package cmd implements the restexec CLI commands using Cobra.
//
// Available commands:
//   - exec: Execute the requests declared in request files
//   - validate: Check request file syntax without executing
//   - history: List or clear recorded exchanges
//   - version: Show restexec version information
//
// Flags default from RESTEXEC_* environment variables and override the
// config file.
package cmd
