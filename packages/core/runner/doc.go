// Package runner executes request files.
//
// It provides functionality for:
//   - Resolving variables, .env values and captured values in requests
//   - Executing each request through a rest.Client, optionally repeated
//   - Evaluating expectations and capturing response values
//   - Recording exchanges in the history database
//
// Requests run sequentially in declaration order so captures flow forward.
package runner
