package rest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Transport executes one HTTP exchange. *http.Client satisfies it. A transport
// may be shared by sequential Execute calls; concurrent use is only as safe as
// the transport itself.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

type transportConfig struct {
	timeout      time.Duration
	maxRedirects int
	validateSSL  bool
	proxyURL     string
}

type TransportOption func(*transportConfig)

func WithTimeout(d time.Duration) TransportOption {
	return func(c *transportConfig) {
		c.timeout = d
	}
}

func WithMaxRedirects(max int) TransportOption {
	return func(c *transportConfig) {
		c.maxRedirects = max
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) TransportOption {
	return func(c *transportConfig) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests. The URL must be an absolute
// http or https URL; otherwise every exchange made through the transport fails
// with the validation error instead of bypassing the proxy.
func WithProxy(proxyURL string) TransportOption {
	return func(c *transportConfig) {
		c.proxyURL = proxyURL
	}
}

// NewHTTPTransport builds a pooled *http.Client. Redirects are followed up to
// the configured maximum unless the request was marked with
// Request.SetFollowRedirect(false).
func NewHTTPTransport(opts ...TransportOption) *http.Client {
	c := &transportConfig{
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
		validateSSL:  true,
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		transport.Proxy = proxyFunc(c.proxyURL)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !followRedirectFromContext(req.Context()) {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
	}
}

func proxyFunc(raw string) func(*http.Request) (*url.URL, error) {
	if err := ValidateURL(raw); err != nil {
		err = fmt.Errorf("invalid proxy %q: %w", raw, err)
		return func(*http.Request) (*url.URL, error) {
			return nil, err
		}
	}
	proxyURL, _ := url.Parse(raw)
	return http.ProxyURL(proxyURL)
}

type followRedirectKey struct{}

func withFollowRedirect(ctx context.Context, follow bool) context.Context {
	return context.WithValue(ctx, followRedirectKey{}, follow)
}

func followRedirectFromContext(ctx context.Context) bool {
	follow, ok := ctx.Value(followRedirectKey{}).(bool)
	return !ok || follow
}

type rateLimitedTransport struct {
	next    Transport
	limiter *rate.Limiter
}

// RateLimited wraps next so every exchange first waits on limiter. Waiting
// honours the request context.
func RateLimited(next Transport, limiter *rate.Limiter) Transport {
	if limiter == nil {
		return next
	}
	return &rateLimitedTransport{next: next, limiter: limiter}
}

// NewLimiter builds a limiter allowing perSecond exchanges with a burst of one.
// A non-positive rate yields nil, meaning unlimited.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (t *rateLimitedTransport) Do(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.Do(req)
}
