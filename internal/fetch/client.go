package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	"github.com/maltedev/shop-search-scraper/internal/models"
	"github.com/maltedev/shop-search-scraper/internal/ratelimit"
)

type Options struct {
	Logger *slog.Logger
	// Limiter paces requests; nil means unpaced.
	Limiter *ratelimit.RequestLimiter
	// Headers replaces DefaultHeaders when non-nil.
	Headers     http.Header
	DialTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Headers == nil {
		o.Headers = DefaultHeaders()
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	return o
}

// Client performs single GET/POST requests and never returns a Go error:
// every outcome is folded into a models.FetchResult.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	headers    http.Header
	limiter    *ratelimit.RequestLimiter
	logger     *slog.Logger
}

// NewDirect returns a client that talks to the network without a proxy.
func NewDirect(opts Options) *Client {
	opts = opts.withDefaults()

	dialer := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		DisableCompression:    true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return newClient(transport, opts, "direct")
}

// NewSOCKS5 returns a client that routes every request through the SOCKS5
// proxy at addr with proxy-side DNS resolution. Connections are not reused
// so each request can leave through a fresh circuit.
func NewSOCKS5(addr string, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	forward := &net.Dialer{Timeout: opts.DialTimeout}
	dialer, err := proxy.SOCKS5("tcp", addr, nil, forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for %s: %w", addr, err)
	}
	ctxDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", addr)
	}

	transport := &http.Transport{
		Proxy:               nil,
		DialContext:         ctxDialer.DialContext,
		DisableCompression:  true,
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 15 * time.Second,
	}

	return newClient(transport, opts, "socks5"), nil
}

func newClient(transport *http.Transport, opts Options, mode string) *Client {
	return &Client{
		httpClient: &http.Client{Transport: transport},
		transport:  transport,
		headers:    opts.Headers,
		limiter:    opts.Limiter,
		logger:     opts.Logger.With("component", "fetch", "mode", mode),
	}
}

func (c *Client) Get(ctx context.Context, url string, timeout time.Duration) models.FetchResult {
	return c.do(ctx, http.MethodGet, url, nil, "", timeout)
}

func (c *Client) Post(ctx context.Context, url string, body []byte, contentType string, timeout time.Duration) models.FetchResult {
	return c.do(ctx, http.MethodPost, url, body, contentType, timeout)
}

// Close releases idle connections held by the transport.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string, timeout time.Duration) models.FetchResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.FailedFetch(fmt.Errorf("rate limiter: %w", err))
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return models.FailedFetch(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header = c.headers.Clone()
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", url, "error", err)
		return models.FailedFetch(err)
	}
	defer resp.Body.Close()

	text, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"), resp.Header.Get("Content-Type"))
	if err != nil {
		c.logger.Debug("failed to decode body", "url", url, "status", resp.StatusCode, "error", err)
		return models.FetchResult{StatusCode: resp.StatusCode, Body: text, Succeeded: true, Err: err}
	}

	c.logger.Debug("request completed",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(text),
		"duration", time.Since(start))

	return models.FetchResult{StatusCode: resp.StatusCode, Body: text, Succeeded: true}
}
