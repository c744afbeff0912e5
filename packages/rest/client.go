package rest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	neturl "net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client executes Requests against an injected Transport. It keeps no
// per-call state: every Execute builds its own Handle and releases it before
// returning.
type Client struct {
	transport      Transport
	methods        MethodTable
	defaultHeaders []Header
	logger         *slog.Logger

	mu      sync.RWMutex
	baseURL string

	// onAcquire, when set, observes each handle right after construction.
	onAcquire func(*Handle)
}

type ClientOption func(*Client)

// WithBaseURL sets the default base URL used by Execute.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithMethodTable replaces the verb to request constructor mapping.
func WithMethodTable(table MethodTable) ClientOption {
	return func(c *Client) {
		c.methods = table
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders = append(c.defaultHeaders, Header{Name: key, Value: value})
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders = append(c.defaultHeaders, Header{Name: k, Value: v})
		}
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a client bound to transport. A nil transport, including a
// typed nil pointer, is rejected with ErrConfiguration.
func NewClient(transport Transport, opts ...ClientOption) (*Client, error) {
	if isNil(transport) {
		return nil, newError("new client", KindConfiguration, "transport must not be nil")
	}

	c := &Client{
		transport: transport,
		methods:   DefaultMethodTable(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func isNil(t Transport) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// Transport returns the transport the client was built with.
func (c *Client) Transport() Transport {
	return c.transport
}

func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = baseURL
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Execute runs req against the configured base URL.
func (c *Client) Execute(req *Request) (*Response, error) {
	return c.ExecuteContext(context.Background(), c.BaseURL(), req)
}

// ExecuteAt runs req against baseURL instead of the configured one.
func (c *Client) ExecuteAt(baseURL string, req *Request) (*Response, error) {
	return c.ExecuteContext(context.Background(), baseURL, req)
}

// ExecuteContext validates req, builds the transport request, configures its
// headers and body, performs the exchange and reads the response. The handle
// is released exactly once on every path after it has been constructed.
func (c *Client) ExecuteContext(ctx context.Context, baseURL string, req *Request) (*Response, error) {
	resp, err := c.execute(ctx, baseURL, req)
	if err != nil {
		c.logger.Warn("request.failed", "kind", kindOf(err), "error", err)
		return nil, err
	}
	c.logger.Debug("request.done",
		"transaction", resp.TransactionID,
		"status", resp.StatusCode,
		"duration", resp.Duration,
	)
	return resp, nil
}

func (c *Client) execute(ctx context.Context, baseURL string, req *Request) (*Response, error) {
	target, err := resolveTarget(baseURL, req)
	if err != nil {
		return nil, err
	}

	txID := req.TransactionID
	if txID == "" {
		txID = uuid.NewString()
	}

	ctx = withFollowRedirect(ctx, req.followRedirect())
	httpReq, err := c.methods.construct(ctx, req.Method, target)
	if err != nil {
		return nil, err
	}

	h := newHandle(req.Method, httpReq)
	defer h.Release()
	if c.onAcquire != nil {
		c.onAcquire(h)
	}

	if err := c.configure(h, req); err != nil {
		return nil, err
	}

	c.logger.Debug("request.start", "transaction", txID, "method", h.Name(), "url", target, "body", h.BodyKind().String())

	return c.do(h, req, txID)
}

// resolveTarget checks the mandatory request fields and joins the resource
// onto baseURL.
func resolveTarget(baseURL string, req *Request) (string, error) {
	const op = "validate"

	if req == nil {
		return "", newError(op, KindInvalidRequest, "request is nil")
	}
	if req.Method == "" {
		return "", newError(op, KindInvalidRequest, "request method is not set")
	}
	if req.Resource == "" {
		return "", newError(op, KindInvalidRequest, "request resource is not set")
	}
	if baseURL == "" {
		return "", newError(op, KindInvalidRequest, "base URL is not set: configure one on the client or pass it per call")
	}
	if isAbsoluteURL(req.Resource) {
		return "", newError(op, KindInvalidRequest, "resource %q must be relative to base URL %s", req.Resource, baseURL)
	}

	u, err := neturl.Parse(joinURL(baseURL, req.Resource))
	if err != nil {
		return "", &Error{Op: op, Kind: KindInvalidRequest, Err: fmt.Errorf("invalid URL: %w", err)}
	}
	if req.Query != "" {
		u.RawQuery = strings.TrimPrefix(req.Query, "?")
	}

	target := u.String()
	if err := ValidateURL(target); err != nil {
		return "", &Error{Op: op, Kind: KindInvalidRequest, Err: err}
	}
	return target, nil
}

func isAbsoluteURL(resource string) bool {
	u, err := neturl.Parse(resource)
	if err != nil {
		return false
	}
	return u.Scheme != "" || u.Host != ""
}

func joinURL(baseURL, resource string) string {
	if strings.HasPrefix(resource, "/") {
		return strings.TrimRight(baseURL, "/") + resource
	}
	if strings.HasSuffix(baseURL, "/") {
		return baseURL + resource
	}
	return baseURL + "/" + resource
}

// configure attaches headers in request order, then the body: multipart file
// first, raw file second, plain string last.
func (c *Client) configure(h *Handle, req *Request) error {
	header := h.Request.Header

	for _, d := range c.defaultHeaders {
		if !req.HasHeader(d.Name) {
			header.Set(d.Name, d.Value)
		}
	}
	for _, rh := range req.Headers {
		header.Add(rh.Name, rh.Value)
	}

	switch {
	case req.MultipartFileName != "":
		if err := setMultipartBody(h.Request, req.MultipartFileName, req.multipartParameter(), req.Body); err != nil {
			return err
		}
		h.bodyKind = BodyMultipart
	case req.FileName != "":
		if err := setFileBody(h.Request, req.FileName); err != nil {
			return err
		}
		h.bodyKind = BodyFile
	case req.Body != "":
		setStringBody(h.Request, []byte(req.Body))
		h.bodyKind = BodyString
	}
	return nil
}

func (c *Client) do(h *Handle, req *Request, txID string) (*Response, error) {
	const op = "execute"

	start := time.Now()
	httpResp, err := c.transport.Do(h.Request)
	duration := time.Since(start)

	if err != nil {
		return nil, &Error{Op: op, Kind: KindExecution, Err: fmt.Errorf("%s %s: %w", h.Name(), h.Request.URL, err)}
	}
	if httpResp == nil {
		return nil, newError(op, KindExecution, "%s %s: transport returned no response", h.Name(), h.Request.URL)
	}
	h.Response = httpResp

	var body []byte
	if httpResp.Body != nil {
		body, err = io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, &Error{Op: op, Kind: KindExecution, Err: fmt.Errorf("reading response body: %w", err)}
		}
	}

	return &Response{
		StatusCode:    httpResp.StatusCode,
		Status:        httpResp.Status,
		Headers:       headersFrom(httpResp.Header),
		Body:          body,
		Duration:      duration,
		TransactionID: txID,
		Resource:      req.Resource,
	}, nil
}

func kindOf(err error) ErrorKind {
	for _, k := range []ErrorKind{KindConfiguration, KindInvalidRequest, KindTransportConstruction, KindExecution} {
		if IsKind(err, k) {
			return k
		}
	}
	return ""
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
