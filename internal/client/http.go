package client

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 30 * time.Second
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Requester is the transport contract used by the scraper. Implementations
// never return an error: every failure is logged and reported as a nil response.
type Requester interface {
	Get(ctx context.Context, rawURL string, params map[string]string, headers map[string]string) *Response
	PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string) *Response
}

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	ProxyURL  string
	Headers   map[string]string
}

// Client issues GET/POST requests with browser-like default headers
type Client struct {
	rc     *resty.Client
	logger *zap.Logger
}

var _ Requester = (*Client)(nil)

// New builds a Client on top of the tuned transport from CreateProxyHTTPClient
func New(opts Options, logger *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := DefaultHeaders(opts.UserAgent)
	for k, v := range opts.Headers {
		headers[k] = v
	}

	rc := resty.NewWithClient(CreateProxyHTTPClient(opts.ProxyURL, timeout)).
		SetTimeout(timeout).
		SetHeaders(headers).
		SetLogger(logger.Sugar())

	return &Client{rc: rc, logger: logger}
}

// CreateProxyHTTPClient creates an HTTP client with proxy support
func CreateProxyHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	if proxyURL == "" {
		return CreateHTTPClient(timeout)
	}

	proxy, err := url.Parse(proxyURL)
	if err != nil {
		return CreateHTTPClient(timeout)
	}

	c := CreateHTTPClient(timeout)
	c.Transport.(*http.Transport).Proxy = http.ProxyURL(proxy)
	return c
}

// CreateHTTPClient creates a standard HTTP client
func CreateHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
		MaxIdleConnsPerHost: 10,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// DefaultHeaders returns browser-like headers. An empty userAgent picks one at random.
func DefaultHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = userAgents[rand.Intn(len(userAgents))]
	}

	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip",
		"Connection":      "keep-alive",
	}
}

// ReadResponseBody reads the response body, handling gzip compression if necessary
func ReadResponseBody(resp *http.Response) ([]byte, error) {
	var reader io.ReadCloser
	var err error

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		reader, err = gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer reader.Close()
	default:
		reader = resp.Body
	}

	return io.ReadAll(reader)
}

// Get performs a GET request, returning nil on any failure
func (c *Client) Get(ctx context.Context, rawURL string, params map[string]string, headers map[string]string) *Response {
	req := c.rc.R().SetContext(ctx).SetDoNotParseResponse(true)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	return c.execute(req, http.MethodGet, rawURL)
}

// PostJSON performs a POST with a JSON body, returning nil on any failure
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string) *Response {
	req := c.rc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	return c.execute(req, http.MethodPost, rawURL)
}

func (c *Client) execute(req *resty.Request, method, rawURL string) *Response {
	resp, err := req.Execute(method, rawURL)
	if err != nil {
		c.logFailure(method, rawURL, err)
		return nil
	}
	if resp.RawResponse == nil {
		c.logger.Warn("empty response", zap.String("method", method), zap.String("url", rawURL))
		return nil
	}
	defer resp.RawResponse.Body.Close()

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		c.logger.Debug("http error",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Int("status", status))
		return nil
	}

	body, err := ReadResponseBody(resp.RawResponse)
	if err != nil {
		c.logger.Warn("failed to read response body",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(err))
		return nil
	}

	finalURL := rawURL
	if resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}

	return &Response{
		StatusCode: status,
		Header:     resp.Header(),
		Body:       body,
		URL:        finalURL,
	}
}

func (c *Client) logFailure(method, rawURL string, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		c.logger.Debug("request canceled", zap.String("method", method), zap.String("url", rawURL))
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		c.logger.Warn("timeout", zap.String("method", method), zap.String("url", rawURL))
	default:
		c.logger.Warn("request error",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(err))
	}
}
