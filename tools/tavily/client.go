// Package tavily provides the tavily-search and tavily-extract tools,
// backed by the Tavily web search API.
package tavily

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbus/tools", "tavily")

const (
	// DefaultBaseURL is the Tavily API endpoint
	DefaultBaseURL = "https://api.tavily.com"
	// PlaceholderAPIKey is the example value shipped in sample configs
	PlaceholderAPIKey = "your_api_key_here"
	// DefaultTimeout is the HTTP request timeout
	DefaultTimeout = 60 * time.Second
)

// Config provides the Tavily API settings
type Config struct {
	// APIKey is the Tavily API key
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key"`
	// BaseURL overrides DefaultBaseURL
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url"`
}

// ValidateAPIKey returns an error if the key is empty or the placeholder
func ValidateAPIKey(key string) error {
	switch strings.TrimSpace(key) {
	case "":
		return errors.New("Tavily API key is not set")
	case PlaceholderAPIKey:
		return errors.New("Tavily API key is the placeholder value, set a real key")
	}
	return nil
}

// KeyPrefix returns the first 5 characters of the key, for logging
func KeyPrefix(key string) string {
	if len(key) > 5 {
		key = key[:5]
	}
	return key + "..."
}

// Client calls the Tavily API.
// It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the API key
func NewClient(cfg Config) (*Client, error) {
	if err := ValidateAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	logger.KV(xlog.DEBUG, "status", "client_created", "api_key", KeyPrefix(cfg.APIKey), "base_url", baseURL)

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// WithBaseURL overrides the API endpoint
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// WithHTTPClient overrides the HTTP client
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// Post sends the JSON body to the API path and returns the response body
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call Tavily API %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read Tavily API response")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"path", path,
		"status", resp.StatusCode,
		"elapsed", time.Since(started).String(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.ContextKV(ctx, xlog.ERROR,
			"path", path,
			"status", resp.StatusCode,
			"body", string(data),
		)
		return nil, errors.Newf("Tavily API error: %s", strings.TrimSpace(string(data)))
	}
	return data, nil
}
