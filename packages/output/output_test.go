package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/restexec/packages/assertions"
	"github.com/abdul-hamid-achik/restexec/packages/core/runner"
	"github.com/abdul-hamid-achik/restexec/packages/history"
	"github.com/abdul-hamid-achik/restexec/packages/rest"
	"github.com/abdul-hamid-achik/restexec/packages/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *runner.RunResult {
	return &runner.RunResult{
		File:     "users.yaml",
		Duration: 120 * time.Millisecond,
		Passed:   1,
		Failed:   2,
		Skipped:  1,
		Results: []*runner.RequestResult{
			{
				Name:     "list",
				Passed:   true,
				Duration: 15 * time.Millisecond,
				Request:  rest.NewRequest(rest.MethodGet, "/users").AddHeader("Accept", "application/json"),
				Response: &rest.Response{
					StatusCode:    200,
					Status:        "200 OK",
					Headers:       []rest.Header{{Name: "Content-Type", Value: "application/json"}},
					Body:          []byte(`[{"id":1}]`),
					Duration:      15 * time.Millisecond,
					TransactionID: "tx-1",
				},
				Captures: map[string]any{"first": float64(1)},
				Stats: &stats.Summary{
					Count: 3, Min: time.Millisecond, Max: 3 * time.Millisecond, Mean: 2 * time.Millisecond,
					P50: 2 * time.Millisecond, P95: 3 * time.Millisecond, P99: 3 * time.Millisecond,
				},
			},
			{
				Name:     "create",
				Duration: 20 * time.Millisecond,
				Response: &rest.Response{StatusCode: 400, Status: "400 Bad Request"},
				Assertions: []*assertions.Result{
					{Subject: "status", Operator: "equals", Expected: 201, Actual: 400, Message: "expected status 201, got 400"},
				},
			},
			{
				Name:  "down",
				Error: errors.New("connection refused"),
			},
			{
				Name:       "later",
				Skipped:    true,
				SkipReason: "bail after failure",
			},
		},
	}
}

func TestConsoleFormatter_FormatResult(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
	f.FormatResult(sampleResult())

	out := buf.String()
	assert.Contains(t, out, "Running: users.yaml")
	assert.Contains(t, out, "✓ list (200 15ms)")
	assert.Contains(t, out, "HTTP/1.1 200 OK")
	assert.Contains(t, out, "Content-Type: application/json")
	assert.Contains(t, out, `[{"id":1}]`)
	assert.Contains(t, out, "Latency: min 1ms")
	assert.Contains(t, out, "first = 1")
	assert.Contains(t, out, "✗ create (400 20ms)")
	assert.Contains(t, out, "expected status 201, got 400")
	assert.Contains(t, out, "x down (connection refused)")
	assert.Contains(t, out, "- later (bail after failure)")
	assert.Contains(t, out, "1 passed, 2 failed, 1 skipped, 4 total")
}

func TestConsoleFormatter_QuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleFormatter(WithWriter(&buf), WithNoColor(true)).FormatResult(sampleResult())

	assert.NotContains(t, buf.String(), "HTTP/1.1 200 OK")
	assert.NotContains(t, buf.String(), "Captures:")
}

func TestConsoleFormatter_FormatHistory(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	f.FormatHistory(nil)
	assert.Contains(t, buf.String(), "No recorded exchanges")

	buf.Reset()
	f.FormatHistory([]*history.Entry{
		{ID: 2, Method: "POST", Resource: "/users", ErrorKind: "execution", Error: "refused", CreatedAt: time.Now()},
		{ID: 1, Method: "GET", Resource: "/users", Status: 200, DurationMs: 12, TransactionID: "tx-1", CreatedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "ERR")
	assert.Contains(t, out, "execution: refused")
	assert.Contains(t, out, "tx-1")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "<none>", formatValue(nil, 10))
	assert.Equal(t, "[array with 2 items]", formatValue([]any{1, 2}, 10))
	assert.Equal(t, "{object with 1 keys}", formatValue(map[string]any{"a": 1}, 10))
	assert.Equal(t, "abc...", formatValue("abcdef", 3))
}

func TestJSONFormatter_Flush(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf), JSONWithBody(true))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, JSONSummary{Total: 4, Passed: 1, Failed: 2, Skipped: 1}, out.Summary)
	require.Len(t, out.Tests, 4)

	list := out.Tests[0]
	require.NotNil(t, list.Request)
	assert.Equal(t, "GET", list.Request.Method)
	assert.Equal(t, []rest.Header{{Name: "Accept", Value: "application/json"}}, list.Request.Headers)
	require.NotNil(t, list.Response)
	assert.Equal(t, "tx-1", list.Response.TransactionID)
	assert.Equal(t, `[{"id":1}]`, list.Response.Body)
	require.NotNil(t, list.Stats)
	assert.Equal(t, 2.0, list.Stats.P50)

	assert.Equal(t, "connection refused", out.Tests[2].Error)
	assert.Equal(t, "bail after failure", out.Tests[3].SkipReason)
	assert.Len(t, out.Tests[1].Assertions, 1)
}

func TestJSONFormatter_OmitsBodyByDefault(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(0))

	assert.NotContains(t, buf.String(), `"body"`)
}
