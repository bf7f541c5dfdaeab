package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"golang.org/x/net/http/httpproxy"

	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/logging"
	"github.com/diogo/llmchat/internal/models"
)

// maxErrorBody bounds how much of a failed response body is read
const maxErrorBody = 4096

// chunkBuffer is the capacity of a stream channel
const chunkBuffer = 16

// Doer executes HTTP requests. tls_client.HttpClient satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the Transport for the HTTP backends. It keeps one HTTP client
// per proxy URL.
type Client struct {
	timeoutSeconds int
	proxy          string
	proxyFunc      func(*url.URL) (*url.URL, error)
	logger         *slog.Logger
	mock           *MockBackend

	mu      sync.Mutex
	doers   map[string]Doer
	newDoer func(proxyURL string) (Doer, error)
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithTimeout bounds a whole request, including the streamed body
func WithTimeout(seconds int) ClientOption {
	return func(c *Client) {
		if seconds > 0 {
			c.timeoutSeconds = seconds
		}
	}
}

// WithProxy routes every request through proxyURL instead of the
// environment proxy settings.
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxy = proxyURL
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient makes every request go through d
func WithHTTPClient(d Doer) ClientOption {
	return func(c *Client) {
		c.newDoer = func(string) (Doer, error) { return d, nil }
	}
}

// WithMockBackend sets the backend used for the mock provider
func WithMockBackend(m *MockBackend) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.mock = m
		}
	}
}

// NewClient creates a new Client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeoutSeconds: 300,
		proxyFunc:      httpproxy.FromEnvironment().ProxyFunc(),
		logger:         logging.Discard(),
		mock:           NewMockBackend(),
		doers:          make(map[string]Doer),
	}
	c.newDoer = c.newTLSClient
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newTLSClient(proxyURL string) (Doer, error) {
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(c.timeoutSeconds),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithNotFollowRedirects(),
	}
	if proxyURL != "" {
		options = append(options, tls_client.WithProxyUrl(proxyURL))
	}

	httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return httpClient, nil
}

// proxyFor resolves the proxy for a backend address, "" for direct
func (c *Client) proxyFor(address string) (string, error) {
	if c.proxy != "" {
		return c.proxy, nil
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", address, err)
	}
	proxyURL, err := c.proxyFunc(u)
	if err != nil {
		return "", fmt.Errorf("invalid proxy settings: %w", err)
	}
	if proxyURL == nil {
		return "", nil
	}
	return proxyURL.String(), nil
}

func (c *Client) doerFor(address string) (Doer, error) {
	proxyURL, err := c.proxyFor(address)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.doers[proxyURL]; ok {
		return d, nil
	}
	d, err := c.newDoer(proxyURL)
	if err != nil {
		return nil, err
	}
	c.doers[proxyURL] = d
	return d, nil
}

// Stream implements Transport
func (c *Client) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if req.Provider == models.ProviderMock {
		return c.mock.Stream(ctx, req)
	}

	p, err := providerFor(req.Provider)
	if err != nil {
		return nil, err
	}
	if req.Address == "" {
		return nil, apierrors.NewConfigError("address", "address is required")
	}

	doer, err := c.doerFor(req.Address)
	if err != nil {
		return nil, err
	}
	httpReq, err := p.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	endpoint := httpReq.URL.Scheme + "://" + httpReq.URL.Host + httpReq.URL.Path

	c.logger.Debug("opening stream", "provider", req.Provider, "endpoint", endpoint, "model", req.Model, "messages", len(req.Messages))

	resp, err := doer.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if os.IsTimeout(err) {
			return nil, apierrors.NewTimeoutError(endpoint, time.Duration(c.timeoutSeconds)*time.Second, err)
		}
		return nil, apierrors.NewNetworkError(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		apiErr := parseAPIError(resp.StatusCode, endpoint, body)
		c.logger.Warn("backend returned error", "status", resp.StatusCode, "code", apiErr.Code, "endpoint", endpoint)
		return nil, apiErr
	}

	ch := make(chan Chunk, chunkBuffer)
	go c.pump(ctx, p, resp.Body, ch)
	return ch, nil
}

// pump decodes body into ch until the stream ends or ctx is cancelled
func (c *Client) pump(ctx context.Context, p provider, body io.ReadCloser, ch chan<- Chunk) {
	defer close(ch)
	defer body.Close()

	// Unblocks a pending body read on cancellation
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	emit := func(inc models.Increment) bool {
		select {
		case <-ctx.Done():
			return false
		case ch <- Chunk{Increment: inc}:
			return true
		}
	}

	err := p.decode(body, emit)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Warn("stream failed", "error", err)
		select {
		case ch <- Chunk{Err: err}:
		case <-ctx.Done():
		}
	}
}
