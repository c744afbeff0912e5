package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Method is an HTTP verb supported by the client.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodOptions Method = http.MethodOptions
	MethodHead    Method = http.MethodHead
)

// Methods lists every supported verb in a stable order.
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodOptions, MethodHead}

func (m Method) String() string {
	return string(m)
}

// Valid reports whether m is one of the supported verbs.
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMethod converts a case-insensitive verb name ("get", "Post") to a Method.
func ParseMethod(name string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(name)))
	if !m.Valid() {
		return "", fmt.Errorf("unsupported method %q", name)
	}
	return m, nil
}

// MethodConstructor builds the transport-level request for one verb. The body
// is attached later, when the request is configured.
type MethodConstructor func(ctx context.Context, target string) (*http.Request, error)

// MethodTable maps each verb to its constructor.
type MethodTable map[Method]MethodConstructor

// DefaultMethodTable returns a table covering all supported verbs.
func DefaultMethodTable() MethodTable {
	table := make(MethodTable, len(Methods))
	for _, m := range Methods {
		table[m] = newMethod(m)
	}
	return table
}

func newMethod(m Method) MethodConstructor {
	return func(ctx context.Context, target string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, string(m), target, nil)
	}
}

// construct resolves m through the table. A missing entry, a nil constructor,
// a constructor error and a constructor panic all yield ErrTransportConstruction.
func (t MethodTable) construct(ctx context.Context, m Method, target string) (req *http.Request, err error) {
	const op = "construct"

	ctor, ok := t[m]
	if !ok {
		return nil, newError(op, KindTransportConstruction, "no constructor registered for method %s", m)
	}
	if ctor == nil {
		return nil, newError(op, KindTransportConstruction, "constructor for method %s cannot be instantiated", m)
	}

	defer func() {
		if r := recover(); r != nil {
			req = nil
			err = newError(op, KindTransportConstruction, "constructor for method %s panicked: %v", m, r)
		}
	}()

	req, err = ctor(ctx, target)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransportConstruction, Err: fmt.Errorf("method %s: %w", m, err)}
	}
	if req == nil {
		return nil, newError(op, KindTransportConstruction, "constructor for method %s returned no request", m)
	}
	return req, nil
}
