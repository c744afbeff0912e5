// Package env handles variable resolution for restexec request files.
//
// It provides functionality for:
//   - Loading .env files
//   - Variable interpolation using {{variable}} syntax
//   - Process environment lookups with {{$NAME}}
//   - Generated values: {{uuid()}}, {{timestamp()}}, {{now()}}
//   - Values captured from earlier responses, addressable as {{step.name}}
package env
