package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Config configures the HTTP vision OCR client.
type Config struct {
	// BaseURL is the provider endpoint.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// APIKey authenticates against the provider.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// Timeout bounds one extraction call. Default 60s.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Client is an Extractor backed by an HTTP vision OCR provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an OCR client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Extract submits the PDF as multipart form data and decodes the result.
func (c *Client) Extract(ctx context.Context, pdf []byte) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "page.pdf")
	if err != nil {
		return nil, &PermanentError{Err: err}
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, &PermanentError{Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &PermanentError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", &body)
	if err != nil {
		return nil, &PermanentError{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are retryable.
		return nil, &TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{Err: fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(respBody))}

	default:
		return nil, &PermanentError{Err: fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(respBody))}
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("malformed provider response: %w", err)}
	}
	if result.PageCount <= 0 {
		result.PageCount = 1
	}
	return &result, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
