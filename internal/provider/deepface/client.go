package deepface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds the configuration for the DeepFace client
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	Model         string
	Detector      string
	RetryCount    int
	RetryInterval time.Duration
}

// DefaultConfig keeps per-frame latency low: one retry, short timeout and the
// fastest detector backend.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:5005",
		Timeout:       5 * time.Second,
		Model:         "Facenet",
		Detector:      "opencv",
		RetryCount:    1,
		RetryInterval: 200 * time.Millisecond,
	}
}

// Client is the HTTP client for DeepFace API
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a new DeepFace client
func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// Represent calls POST /represent. Detection is not enforced, so an image
// without a face comes back as one low-confidence region instead of a 400.
func (c *Client) Represent(ctx context.Context, imageDataURI string) (*RepresentResponse, error) {
	req := RepresentRequest{
		Img:      imageDataURI,
		Model:    c.config.Model,
		Detector: c.config.Detector,
		Enforce:  false,
	}

	var resp RepresentResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/represent", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Health calls GET / which the deepface API answers once its models are loaded.
func (c *Client) Health(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodGet, "/", nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrDeepFaceUnavailable, err)
	}
	return nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.config.RetryInterval > 0 {
		b.InitialInterval = c.config.RetryInterval
	}
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0

	retries := c.config.RetryCount
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// doRequestWithRetry retries transport failures and 5xx replies.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	op := func() error {
		err := c.doRequest(ctx, method, path, body, result)
		if err == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.clientError() {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ErrInvalidResponse) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, c.retryPolicy(ctx))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.clientError() {
		return err
	}
	if errors.Is(err, ErrInvalidResponse) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeepFaceUnavailable, err)
}

// doRequest executes a single HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	url := c.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}

	return nil
}
