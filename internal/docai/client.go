package docai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docfold/blockparse-worker/internal/logging"
)

// ResponseError means the service answered but the response was unusable:
// an error status or a body that did not decode. Size-limit rejections
// surface this way, so a different endpoint may help.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("backend response error (status %d): %s", e.StatusCode, e.Message)
}

// ServiceRequestError means the request never completed: connection
// refused, DNS failure, TLS or authentication handshake problems. Almost
// always a configuration issue, so retrying cannot help.
type ServiceRequestError struct {
	Err error
}

func (e *ServiceRequestError) Error() string {
	return fmt.Sprintf("backend service request error: %v", e.Err)
}

func (e *ServiceRequestError) Unwrap() error {
	return e.Err
}

// ClientConfig holds the backend endpoints and credentials
type ClientConfig struct {
	// Endpoint is the default analyze URL
	Endpoint string
	// LargeEndpoint is the high-capacity analyze URL
	LargeEndpoint string
	// APIKey authenticates both endpoints
	APIKey string
	// Timeout bounds a single analyze call; whole-document analysis of
	// large files can take minutes
	Timeout time.Duration
}

// Client calls the external document-AI service. It implements Analyzer.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a backend client. The HTTP client performs no
// retries of its own; all retry decisions belong to the controller.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("backend endpoint is required")
	}
	if cfg.LargeEndpoint == "" {
		cfg.LargeEndpoint = cfg.Endpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logging.NewLogger("DocAIClient"),
	}, nil
}

// AnalyzeDefault sends the document to the default endpoint
func (c *Client) AnalyzeDefault(ctx context.Context, doc []byte) (*AnalyzeResult, error) {
	return c.analyze(ctx, c.cfg.Endpoint, doc)
}

// AnalyzeLarge sends the document to the large-document endpoint
func (c *Client) AnalyzeLarge(ctx context.Context, doc []byte) (*AnalyzeResult, error) {
	return c.analyze(ctx, c.cfg.LargeEndpoint, doc)
}

func (c *Client) analyze(ctx context.Context, endpoint string, doc []byte) (*AnalyzeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(doc))
	if err != nil {
		return nil, &ServiceRequestError{Err: err}
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceRequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ResponseError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ResponseError{StatusCode: resp.StatusCode, Message: truncate(string(body), 512)}
	}

	var result AnalyzeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ResponseError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed analyze response: %v", err)}
	}

	c.logger.Info("Analyze call complete",
		"endpoint", endpoint,
		"bytes", len(doc),
		"pages", len(result.Pages),
		"elapsed", time.Since(start))

	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
