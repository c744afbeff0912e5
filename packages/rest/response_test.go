package rest

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{300, false},
		{400, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_IsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"text/html", false},
		{"", false},
	}

	for _, tt := range tests {
		resp := &Response{Headers: []Header{{Name: "Content-Type", Value: tt.contentType}}}
		assert.Equal(t, tt.expected, resp.IsJSON(), "Content-Type: %s", tt.contentType)
	}
}

func TestResponse_HTTPMessage(t *testing.T) {
	resp := &Response{
		StatusCode: 404,
		Headers: []Header{
			{Name: "Content-Type", Value: "text/plain"},
			{Name: "Set-Cookie", Value: "a=1"},
			{Name: "Set-Cookie", Value: "b=2"},
		},
		Body: []byte("missing"),
	}

	expected := "HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/plain\r\n" +
		"Set-Cookie: a=1\r\n" +
		"Set-Cookie: b=2\r\n" +
		"\r\n" +
		"missing"
	assert.Equal(t, expected, resp.HTTPMessage())
	assert.Equal(t, []string{"a=1", "b=2"}, resp.HeaderValues("set-cookie"))
	assert.True(t, resp.IsClientError())
}

func TestHeadersFrom_SortedAndOrdered(t *testing.T) {
	h := http.Header{
		"X-B":    {"2", "1"},
		"Accept": {"*/*"},
	}

	assert.Equal(t, []Header{
		{Name: "Accept", Value: "*/*"},
		{Name: "X-B", Value: "2"},
		{Name: "X-B", Value: "1"},
	}, headersFrom(h))
}
