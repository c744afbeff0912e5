package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/restexec/packages/core/parser"
	"github.com/abdul-hamid-achik/restexec/packages/rest"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

type Evaluator struct {
	response *rest.Response
	bodyJSON gjson.Result
	isJSON   bool
	// resolvePath maps a declared schema path to a readable file path.
	resolvePath func(string) (string, error)
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithPathResolver sets how schema paths are resolved.
func WithPathResolver(fn func(string) (string, error)) EvaluatorOption {
	return func(e *Evaluator) {
		e.resolvePath = fn
	}
}

func NewEvaluator(resp *rest.Response, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		response:    resp,
		resolvePath: func(p string) (string, error) { return p, nil },
	}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.isJSON = true
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every check in expect, in a stable order: status, headers,
// body, json values, existence, schema.
func (e *Evaluator) Evaluate(expect *parser.Expect) []*Result {
	if expect == nil {
		return nil
	}

	var results []*Result

	if expect.Status != 0 {
		results = append(results, e.status(expect.Status))
	}

	for _, name := range sortedKeys(expect.Headers) {
		results = append(results, e.header(name, expect.Headers[name]))
	}

	if expect.Contains != "" {
		results = append(results, e.contains(expect.Contains))
	}

	for _, path := range sortedKeys(expect.JSON) {
		results = append(results, e.jsonValue(path, expect.JSON[path]))
	}

	for _, path := range expect.Exists {
		results = append(results, e.exists(path))
	}

	if expect.Schema != "" {
		results = append(results, e.schema(expect.Schema))
	}

	return results
}

// Passed reports whether all results passed.
func Passed(results []*Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func (e *Evaluator) status(expected int) *Result {
	r := &Result{Subject: "status", Operator: "equals", Expected: expected, Actual: e.response.StatusCode}
	r.Passed = e.response.StatusCode == expected
	if !r.Passed {
		r.Message = fmt.Sprintf("expected status %d, got %d", expected, e.response.StatusCode)
	}
	return r
}

func (e *Evaluator) header(name, expected string) *Result {
	values := e.response.HeaderValues(name)
	r := &Result{Subject: "header " + name, Operator: "equals", Expected: expected}
	if len(values) == 0 {
		r.Message = fmt.Sprintf("header %s not present", name)
		return r
	}
	r.Actual = strings.Join(values, ", ")
	for _, v := range values {
		if v == expected || strings.EqualFold(strings.TrimSpace(strings.SplitN(v, ";", 2)[0]), expected) {
			r.Passed = true
			return r
		}
	}
	r.Message = fmt.Sprintf("expected %q", expected)
	return r
}

func (e *Evaluator) contains(expected string) *Result {
	body := e.response.BodyString()
	r := &Result{Subject: "body", Operator: "contains", Expected: expected, Actual: truncate(body, 200)}
	r.Passed = strings.Contains(body, expected)
	if !r.Passed {
		r.Message = fmt.Sprintf("body does not contain %q", expected)
	}
	return r
}

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

func (e *Evaluator) lookup(path string) (gjson.Result, error) {
	if !e.isJSON {
		return gjson.Result{}, fmt.Errorf("response body is not JSON")
	}
	return e.bodyJSON.Get(convertBracketNotation(path)), nil
}

func (e *Evaluator) jsonValue(path string, expected any) *Result {
	r := &Result{Subject: "json " + path, Operator: "equals", Expected: expected}

	value, err := e.lookup(path)
	if err != nil {
		r.Message = err.Error()
		return r
	}
	if !value.Exists() {
		r.Message = fmt.Sprintf("path %s not found", path)
		return r
	}

	r.Actual = value.Value()
	r.Passed = equalValues(r.Actual, expected)
	if !r.Passed {
		r.Message = fmt.Sprintf("expected %v, got %v", expected, r.Actual)
	}
	return r
}

func (e *Evaluator) exists(path string) *Result {
	r := &Result{Subject: "json " + path, Operator: "exists"}

	value, err := e.lookup(path)
	if err != nil {
		r.Message = err.Error()
		return r
	}
	r.Passed = value.Exists()
	if r.Passed {
		r.Actual = value.Value()
	} else {
		r.Message = fmt.Sprintf("path %s not found", path)
	}
	return r
}

func (e *Evaluator) schema(schemaPath string) *Result {
	r := &Result{Subject: "body", Operator: "schema", Expected: schemaPath}

	if !e.isJSON {
		r.Message = "response body is not JSON"
		return r
	}

	resolved, err := e.resolvePath(schemaPath)
	if err != nil {
		r.Message = err.Error()
		return r
	}

	schemaData, err := os.ReadFile(resolved)
	if err != nil {
		r.Message = fmt.Sprintf("failed to read schema file: %v", err)
		return r
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaData)
	documentLoader := gojsonschema.NewBytesLoader(e.response.Body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		r.Message = fmt.Sprintf("schema validation error: %v", err)
		return r
	}

	if result.Valid() {
		r.Passed = true
		return r
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	r.Message = fmt.Sprintf("schema validation failed: %s", strings.Join(errs, "; "))
	return r
}

// equalValues compares a decoded JSON value with a YAML-declared one. Numbers
// compare numerically, everything else by JSON encoding.
func equalValues(actual, expected any) bool {
	if af, ok := toFloat(actual); ok {
		if ef, ok := toFloat(expected); ok {
			return af == ef
		}
	}
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	a, errA := json.Marshal(actual)
	b, errB := json.Marshal(normalize(expected))
	return errA == nil && errB == nil && string(a) == string(b)
}

// normalize converts YAML's map[any]any leftovers into JSON-encodable maps.
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
