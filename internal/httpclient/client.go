// Package httpclient is the HTTP client shared by catalog searches, asset
// downloads and boundary queries. It applies a default per-request timeout,
// stamps a User-Agent and retries transient upstream failures.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 500 * time.Millisecond
	maxRetryWait        = 30 * time.Second

	defaultUserAgent = "landcover"
)

// Config configures New. Zero fields take the defaults above.
type Config struct {
	// DefaultTimeout bounds requests whose context has no deadline.
	DefaultTimeout time.Duration
	UserAgent      string
	// MaxRetries is the number of extra attempts after a transient failure.
	// Negative disables retries.
	MaxRetries   int
	RetryBackoff time.Duration
	// Transport replaces the pooled transport; tests inject mocks here.
	Transport http.RoundTripper
}

// Client is safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
}

// New builds a Client. A nil cfg means all defaults; cfg is not modified.
func New(cfg *Config) *Client {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	switch {
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}

	base := c.Transport
	if base == nil {
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16, // matches the asset download fan-out
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		}
	}

	return &Client{
		client: &http.Client{Transport: &retryTransport{
			base:       base,
			userAgent:  c.UserAgent,
			maxRetries: c.MaxRetries,
			backoff:    c.RetryBackoff,
		}},
		defaultTimeout: c.DefaultTimeout,
	}
}

// Do sends req under ctx, adding the default timeout when ctx has no
// deadline. The caller closes the body when err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
		resp, err := c.client.Do(req.WithContext(ctx))
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return c.client.Do(req.WithContext(ctx))
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// Post issues a POST. A []byte, string or io.Reader body is sent as is;
// any other value is encoded as JSON and contentType defaults to JSON.
func (c *Client) Post(ctx context.Context, url, contentType string, body any) (*http.Response, error) {
	var r io.Reader
	switch v := body.(type) {
	case nil:
		r = http.NoBody
	case io.Reader:
		r = v
	case []byte:
		r = bytes.NewReader(v)
	case string:
		r = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		r = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.Do(ctx, req)
}

// HTTPClient exposes the underlying client for libraries that take one.
// It keeps the User-Agent and retries but not the default timeout.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Close drops idle pooled connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// cancelOnClose releases the per-request timeout once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
