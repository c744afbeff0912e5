// Package parser reads restexec request files.
//
// A request file is YAML. It may declare a base URL and variables, followed
// by an ordered list of requests. Each request carries:
//   - method and resource (mandatory)
//   - query string and ordered headers
//   - one body source: inline body, raw file, or multipart file
//   - captures (gjson paths stored as variables for later requests)
//   - expectations checked against the response
//
// Attachment and schema paths are resolved relative to the request file and
// may not escape its directory.
package parser
