package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restexec/packages/assertions"
	"github.com/abdul-hamid-achik/restexec/packages/core/env"
	"github.com/abdul-hamid-achik/restexec/packages/core/parser"
	"github.com/abdul-hamid-achik/restexec/packages/history"
	"github.com/abdul-hamid-achik/restexec/packages/rest"
	"github.com/abdul-hamid-achik/restexec/packages/stats"
	"github.com/google/uuid"
)

type Runner struct {
	client   *rest.Client
	resolver *env.Resolver
	history  *history.Store
	config   *Config
	logger   *slog.Logger
}

type Config struct {
	// BaseURL overrides the base URL declared in request files.
	BaseURL string
	// Variables are made available to {{name}} expressions, typically loaded
	// from a .env file. Variables declared in a file take precedence.
	Variables  map[string]string
	Bail       bool
	NameFilter string
	// Repeat overrides the per-request repeat count when positive.
	Repeat int
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistory records every execution in store.
func WithHistory(store *history.Store) Option {
	return func(r *Runner) {
		r.history = store
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(client *rest.Client, cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		client:   client,
		resolver: env.NewResolver(),
		config:   cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resolver.SetWarnFunc(func(format string, args ...any) {
		r.logger.Warn("request.unresolved", "detail", fmt.Sprintf(format, args...))
	})
	return r
}

type RunResult struct {
	File     string
	Results  []*RequestResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// Success reports whether no request failed.
func (r *RunResult) Success() bool {
	return r.Failed == 0
}

type RequestResult struct {
	Name       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Request    *rest.Request
	Response   *rest.Response
	Assertions []*assertions.Result
	Captures   map[string]any
	Error      error
	// Stats is set when the request ran more than once.
	Stats *stats.Summary
}

func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.Run(ctx, file)
}

// Run executes the requests of file in declaration order. Captured values
// are visible to the requests that follow.
func (r *Runner) Run(ctx context.Context, file *parser.File) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{File: file.Path}

	r.resolver.SetStringVariables(r.config.Variables)
	r.resolver.SetVariables(file.Variables)

	baseURL := r.config.BaseURL
	if baseURL == "" && file.BaseURL != "" {
		baseURL = r.resolver.Resolve(file.BaseURL)
	}
	if baseURL == "" {
		baseURL = r.client.BaseURL()
	}

	for i, req := range file.Requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !matchesPattern(req.Name, r.config.NameFilter) {
			result.Results = append(result.Results, &RequestResult{
				Name:       req.DisplayName(),
				Skipped:    true,
				SkipReason: "filtered out",
			})
			result.Skipped++
			continue
		}

		reqResult := r.runRequest(ctx, file, baseURL, req)
		result.Results = append(result.Results, reqResult)

		if reqResult.Passed {
			result.Passed++
			continue
		}
		result.Failed++
		if r.config.Bail {
			for _, skipped := range file.Requests[i+1:] {
				result.Results = append(result.Results, &RequestResult{
					Name:       skipped.DisplayName(),
					Skipped:    true,
					SkipReason: "bail after failure",
				})
				result.Skipped++
			}
			break
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) repeatCount(req *parser.Request) int {
	if r.config.Repeat > 0 {
		return r.config.Repeat
	}
	if req.Repeat > 0 {
		return req.Repeat
	}
	return 1
}

func (r *Runner) runRequest(ctx context.Context, file *parser.File, baseURL string, req *parser.Request) *RequestResult {
	result := &RequestResult{
		Name:     req.DisplayName(),
		Captures: make(map[string]any),
	}

	restReq, err := r.buildRequest(file, req)
	if err != nil {
		result.Error = err
		return result
	}
	result.Request = restReq

	evalOpts := []assertions.EvaluatorOption{assertions.WithPathResolver(file.ResolvePath)}
	count := r.repeatCount(req)
	collector := stats.NewCollector(result.Name)

	start := time.Now()
	result.Passed = true
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			result.Error = err
			result.Passed = false
			break
		}

		// each execution gets its own transaction id
		exec := *restReq
		if exec.TransactionID == "" {
			exec.TransactionID = uuid.NewString()
		}
		resp, err := r.client.ExecuteContext(ctx, baseURL, &exec)
		r.record(&exec, resp, err)

		if err != nil {
			collector.Record(0, 0, err)
			result.Error = err
			result.Passed = false
			break
		}
		collector.Record(resp.Duration, resp.StatusCode, nil)
		result.Response = resp

		var checks []*assertions.Result
		if req.Expect != nil {
			checks = assertions.NewEvaluator(resp, evalOpts...).Evaluate(req.Expect)
		}
		passed := assertions.Passed(checks)
		if req.Expect == nil {
			passed = resp.IsSuccess()
		}
		// the first failing execution's checks are kept
		if result.Passed {
			result.Assertions = checks
			result.Passed = passed
		}
	}
	result.Duration = time.Since(start)

	if count > 1 {
		summary := collector.Summary()
		result.Stats = &summary
	}

	if result.Response != nil && len(req.Capture) > 0 {
		if err := r.capture(req, result); err != nil && result.Error == nil {
			result.Error = err
			result.Passed = false
		}
	}

	return result
}

func (r *Runner) record(req *rest.Request, resp *rest.Response, execErr error) {
	if r.history == nil {
		return
	}
	if _, err := r.history.Record(req, resp, execErr); err != nil {
		r.logger.Warn("history.record_failed", "error", err)
	}
}

// buildRequest resolves expressions and attachment paths of a declaration.
func (r *Runner) buildRequest(file *parser.File, req *parser.Request) (*rest.Request, error) {
	method, err := rest.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}

	out := rest.NewRequest(method, r.resolver.Resolve(req.Resource)).
		SetQuery(r.resolver.Resolve(req.Query)).
		SetBody(r.resolver.Resolve(req.Body))

	for _, h := range req.Headers {
		out.AddHeader(h.Name, r.resolver.Resolve(h.Value))
	}

	if req.File != "" {
		p, err := file.ResolvePath(r.resolver.Resolve(req.File))
		if err != nil {
			return nil, err
		}
		out.SetFileName(p)
	}
	if req.Multipart != "" {
		p, err := file.ResolvePath(r.resolver.Resolve(req.Multipart))
		if err != nil {
			return nil, err
		}
		out.SetMultipartFileName(p)
		if req.MultipartParam != "" {
			out.SetMultipartFileParameterName(req.MultipartParam)
		}
	}
	if req.FollowRedirect != nil {
		out.SetFollowRedirect(*req.FollowRedirect)
	}
	return out, nil
}

// capture extracts values from the response into the resolver. A source is
// "status", "header.<Name>", or a gjson path into the JSON body.
func (r *Runner) capture(req *parser.Request, result *RequestResult) error {
	resp := result.Response
	for name, source := range req.Capture {
		var value any
		switch {
		case source == "status":
			value = resp.StatusCode
		case strings.HasPrefix(source, "header."):
			header := strings.TrimPrefix(source, "header.")
			v := resp.Header(header)
			if v == "" {
				return fmt.Errorf("capture %s: header %s not present", name, header)
			}
			value = v
		default:
			v := resp.JSONPath(source)
			if !v.Exists() {
				return fmt.Errorf("capture %s: path %s not found", name, source)
			}
			value = v.Value()
		}
		result.Captures[name] = value
		r.resolver.SetCapture(req.Name, name, value)
	}
	return nil
}

// matchesPattern supports a leading and/or trailing * wildcard.
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	if name == "" {
		return false
	}

	switch {
	case len(pattern) > 1 && pattern[0] == '*' && pattern[len(pattern)-1] == '*':
		return strings.Contains(name, pattern[1:len(pattern)-1])
	case pattern[0] == '*':
		return strings.HasSuffix(name, pattern[1:])
	case pattern[len(pattern)-1] == '*':
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return name == pattern
}
