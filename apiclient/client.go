// Package apiclient sends requests to the backend under test and captures the responses as
// plain status-and-text values for assertions.
package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mapdata/gateway-contract-tests/framework"
)

const (
	defaultRequestTimeout = time.Second * 30
	maxBodyRead           = 4 << 20
)

// Response is the part of an HTTP response that tests assert on.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// IsSuccess reports whether the status is 2xx.
func (r Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r Response) String() string {
	return fmt.Sprintf("HTTP %d: %s", r.StatusCode, r.Body)
}

// Client is an HTTP client bound to one backend base URL and a fixed set of headers.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     framework.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Headers map[string]string
	// InsecureTLS disables certificate verification, for backends with self-signed certificates.
	InsecureTLS bool
	Timeout     time.Duration
	// HTTPClient, if set, is used as is and InsecureTLS and Timeout are ignored.
	HTTPClient *http.Client
	Logger     framework.Logger
}

// NewHTTPClient builds the *http.Client used for the backend. It is exposed so that the harness
// can reuse the same transport when checking that the backend is up.
func NewHTTPClient(insecureTLS bool, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecureTLS} //nolint:gosec
	return &http.Client{Transport: transport, Timeout: timeout}
}

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(opts.InsecureTLS, opts.Timeout)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		headers:    headers,
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithLogger returns a copy of the client that logs to the given logger, which is normally a
// test's debug logger.
func (c *Client) WithLogger(logger framework.Logger) *Client {
	c1 := *c
	if logger != nil {
		c1.logger = logger
	}
	return &c1
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL resolves a path against the base URL. A path that is already an absolute http(s) URL is
// returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) Get(ctx context.Context, path string) (Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post sends body as JSON. A nil body sends an empty request body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (Response, error) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return Response{}, fmt.Errorf("encode request body: %w", err)
		}
	}
	return c.Do(ctx, http.MethodPost, path, data)
}

func (c *Client) Do(ctx context.Context, method, path string, body []byte) (Response, error) {
	url := c.URL(path)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Response{}, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		c.logger.Printf("%s %s %s", method, url, string(body))
	} else {
		c.logger.Printf("%s %s", method, url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("%s %s failed: %s", method, url, err)
		return Response{}, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		return Response{}, fmt.Errorf("error reading response body from %s: %w", url, err)
	}
	r := Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: string(data)}
	c.logger.Printf("Response from %s: %s", url, r)
	return r, nil
}
