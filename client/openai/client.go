package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is the OpenAI API root; requests go to
	// DefaultBaseURL + "/chat/completions".
	DefaultBaseURL = "https://api.openai.com/v1"

	DialTimeout     = 10 * time.Second
	ResponseTimeout = 30 * time.Second
)

// ErrMissingAPIKey is returned when a request is attempted without a key.
var ErrMissingAPIKey = errors.New("missing API key")

// Client is a reusable OpenAI-compatible chat completion client. The API key
// is supplied per call so a key configured while the daemon runs is picked
// up without a restart.
type Client struct {
	HTTPClient *http.Client
	URL        string

	mu     sync.Mutex
	apiKey string
	api    *goopenai.Client
}

// NewClient creates a client for baseURL. With compress set, responses are
// requested brotli-encoded and decoded transparently.
func NewClient(baseURL string, compress bool) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		HTTPClient: newHTTPClient(compress),
		URL:        strings.TrimRight(baseURL, "/"),
	}
}

func newHTTPClient(compress bool) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   DialTimeout,
		ResponseHeaderTimeout: ResponseTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}

	var rt http.RoundTripper = base
	if compress {
		rt = &brotliTransport{next: rt}
	}
	return &http.Client{
		Transport: &loggingTransport{next: rt},
		Timeout:   DialTimeout + ResponseTimeout,
	}
}

// client returns the go-openai client bound to apiKey, rebuilding it when
// the key changes.
func (c *Client) client(apiKey string) *goopenai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api == nil || c.apiKey != apiKey {
		cfg := goopenai.DefaultConfig(apiKey)
		cfg.BaseURL = c.URL
		cfg.HTTPClient = c.HTTPClient
		c.api = goopenai.NewClientWithConfig(cfg)
		c.apiKey = apiKey
	}
	return c.api
}

// DoChatCompletion sends a non-streaming chat completion request. Any
// non-2xx status, transport failure or undecodable body is returned as an
// error.
func (c *Client) DoChatCompletion(ctx context.Context, apiKey string, req goopenai.ChatCompletionRequest) (*goopenai.ChatCompletionResponse, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	req.Stream = false

	resp, err := c.client(apiKey).CreateChatCompletion(ctx, req)
	if err != nil {
		if status := StatusCode(err); status != 0 {
			return nil, fmt.Errorf("request failed with status %d: %w", status, err)
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return &resp, nil
}

// StatusCode extracts the HTTP status from a go-openai error, or 0 when the
// error did not come from an HTTP response.
func StatusCode(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
