package rest

import (
	"io"
	"net/http"
	"sync"
)

// BodyKind tells how a handle's request body was produced.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyString
	BodyFile
	BodyMultipart
)

func (k BodyKind) String() string {
	switch k {
	case BodyString:
		return "string"
	case BodyFile:
		return "file"
	case BodyMultipart:
		return "multipart"
	}
	return "none"
}

// Handle owns one in-flight exchange: the built request and, once executed,
// the response whose body holds the connection. A handle belongs to a single
// Execute call and is released before that call returns.
type Handle struct {
	Method   Method
	Request  *http.Request
	Response *http.Response

	bodyKind BodyKind

	mu           sync.Mutex
	released     bool
	releaseCalls int
}

func newHandle(m Method, req *http.Request) *Handle {
	return &Handle{Method: m, Request: req}
}

// Name returns the verb of the underlying request.
func (h *Handle) Name() string {
	if h.Request != nil {
		return h.Request.Method
	}
	return string(h.Method)
}

func (h *Handle) BodyKind() BodyKind {
	return h.bodyKind
}

func (h *Handle) IsMultipartRequest() bool {
	return h.bodyKind == BodyMultipart
}

func (h *Handle) IsFileRequest() bool {
	return h.bodyKind == BodyFile
}

// Release drains and closes the response body, returning the connection to
// the transport pool, and closes a request body the transport never consumed.
// Only the first call has an effect.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseCalls++
	if h.released {
		return
	}
	h.released = true

	if h.Response != nil && h.Response.Body != nil {
		_, _ = io.Copy(io.Discard, h.Response.Body)
		_ = h.Response.Body.Close()
	}
	if h.Request != nil && h.Request.Body != nil {
		_ = h.Request.Body.Close()
	}
}

func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// ReleaseCalls counts calls to Release, including the no-op ones.
func (h *Handle) ReleaseCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releaseCalls
}
