// Package rest executes declarative REST requests over an injected HTTP transport.
//
// A Request names a method, a resource relative to a base URL, ordered headers
// and one of three body sources:
//   - a plain string body
//   - a file streamed as the raw body
//   - a file uploaded as multipart/form-data, with form fields from the body
//
// Client validates the request, maps its method to a transport request through
// a static MethodTable, configures headers and body, performs the exchange and
// returns a Response. The connection behind each exchange is released before
// Execute returns, whether it succeeded or failed. Failures are classified as
// ErrConfiguration, ErrInvalidRequest, ErrTransportConstruction or ErrExecution.
package rest
