// Package assertions checks responses against the expectations declared in a
// request file.
//
// Supported checks:
//   - Status code equality
//   - Header values (case-insensitive names)
//   - Body substring
//   - JSON values at gjson paths, and path existence
//   - JSON Schema validation of the whole body
package assertions
