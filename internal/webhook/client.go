package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

const (
	HeaderSignature = "X-Proctor-Signature"
	HeaderEvent     = "X-Proctor-Event"
	HeaderTimestamp = "X-Proctor-Timestamp"
)

var ErrNoURL = errors.New("webhook url is required")

// Client delivers signed events to one endpoint. 5xx responses and network
// errors are retried with exponential backoff; 4xx responses are not.
type Client struct {
	cfg    Config
	client *http.Client
	clock  clockwork.Clock
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	cfg.applyDefaults()

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		clock: clockwork.NewRealClock(),
	}, nil
}

func (c *Client) WithClock(clock clockwork.Clock) *Client {
	c.clock = clock
	return c
}

func (c *Client) Send(ctx context.Context, event EventPayload) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = c.clock.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = c.cfg.MaxElapsed

	attempt := func() error {
		return c.post(ctx, event.Type, payload)
	}

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("deliver %s: %w", event.Type, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, eventType string, payload []byte) error {
	timestamp := c.clock.Now().Unix()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set("User-Agent", "Proctor-Webhook/1.0")
	if c.cfg.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(c.cfg.Secret, timestamp, payload))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	return nil
}
