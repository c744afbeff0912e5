package rest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type Response struct {
	StatusCode    int
	Status        string
	Headers       []Header
	Body          []byte
	Duration      time.Duration
	TransactionID string
	Resource      string
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *Response) Header(key string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, key) {
			return h.Value
		}
	}
	return ""
}

// HeaderValues returns every value of the named header in received order.
func (r *Response) HeaderValues(key string) []string {
	var values []string
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, key) {
			values = append(values, h.Value)
		}
	}
	return values
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json") || strings.HasSuffix(strings.SplitN(ct, ";", 2)[0], "+json")
}

// JSONPath evaluates a gjson path against the body.
func (r *Response) JSONPath(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// HTTPMessage renders the response the way it appeared on the wire: status
// line, headers, blank line, body.
func (r *Response) HTTPMessage() string {
	var b strings.Builder
	status := r.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode))
	}
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", status)
	for _, h := range r.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.String()
}

// headersFrom flattens an http.Header into a slice sorted by name. Values of
// one header keep their received order.
func headersFrom(h http.Header) []Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	headers := make([]Header, 0, len(names))
	for _, name := range names {
		for _, v := range h[name] {
			headers = append(headers, Header{Name: name, Value: v})
		}
	}
	return headers
}
