package mailclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client posts queued portal emails to the HTTP mail relay. Delivery retry
// beyond this client's bounded attempts belongs to the relay itself.
type Client struct {
	cfg     Config
	http    *http.Client
	retry   RetryPolicy
	limiter *rate.Limiter
	breaker CircuitBreaker
}

func NewFromEnv() *Client {
	return New(LoadFromEnv())
}

func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		retry: RetryPolicy{
			MaxRetries: cfg.RetryCount,
			BaseDelay:  cfg.RetryDelay,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit)/60, cfg.RateBurst),
		breaker: NewCircuitBreaker(cfg),
	}
}

// Message is one rendered-template send request for the relay.
type Message struct {
	TemplateKind string         `json:"template_kind"`
	Recipient    string         `json:"recipient"`
	Payload      map[string]any `json:"payload,omitempty"`
}

type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.BaseDelay * time.Duration(i+1)):
		}
	}
	return err
}

// Send posts one message. Sends are idempotent on the relay side (keyed by
// the queue row id header), so retrying here is safe.
func (c *Client) Send(ctx context.Context, idempotencyKey string, msg Message) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("mail relay url not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	return c.retry.Do(ctx, func() error {
		return c.breaker.Execute(func() error {
			return c.post(ctx, idempotencyKey, msg)
		})
	})
}

func (c *Client) post(ctx context.Context, idempotencyKey string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("relay error: %s (failed to read body: %v)", resp.Status, readErr)
		}
		return fmt.Errorf("relay error: %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}
