package compare

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
)

// Config holds the inference client configuration.
type Config struct {
	Endpoint         string        `env:"COMPARE_ENDPOINT"`
	APIKey           string        `env:"COMPARE_API_KEY"`
	Timeout          time.Duration `env:"COMPARE_TIMEOUT" envDefault:"60s"`
	MaxRetries       int           `env:"COMPARE_MAX_RETRIES" envDefault:"2"`
	BreakerFailures  int           `env:"COMPARE_BREAKER_FAILURES" envDefault:"5"`
	BreakerRecovery  time.Duration `env:"COMPARE_BREAKER_RECOVERY" envDefault:"30s"`
	MaxFileBytes     int64         `env:"COMPARE_MAX_FILE_BYTES" envDefault:"10485760"`
	MaxResponseBytes int64         `env:"COMPARE_MAX_RESPONSE_BYTES" envDefault:"1048576"`
}

// Client calls a remote inference service over HTTP with retries and a
// circuit breaker.
type Client struct {
	endpoint    string
	apiKey      string
	http        *http.Client
	timeout     time.Duration
	maxRetries  int
	maxResponse int64
	backoff     Backoff
	breaker     *Breaker
	logger      *slog.Logger
	tracer      trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithBackoff(b Backoff) ClientOption {
	return func(cl *Client) {
		if b != nil {
			cl.backoff = b
		}
	}
}

func WithBreaker(b *Breaker) ClientOption {
	return func(cl *Client) { cl.breaker = b }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates an inference client for cfg.Endpoint.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint must be an http(s) URL", ErrInvalidConfig)
	}
	c := &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		timeout:     cmpOr(cfg.Timeout, 60*time.Second),
		maxRetries:  max(cfg.MaxRetries, 0),
		maxResponse: cfg.MaxResponseBytes,
		backoff:     ExponentialBackoff{Jitter: 0.1},
		breaker:     NewBreaker(cfg.BreakerFailures, 1, cfg.BreakerRecovery),
		logger:      slog.Default(),
		tracer:      otel.Tracer("imgcompare/compare"),
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	if c.maxResponse <= 0 {
		c.maxResponse = 1 << 20
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type wireImage struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type wireRequest struct {
	Prompt string      `json:"prompt,omitempty"`
	Images []wireImage `json:"images"`
}

// Compare sends the images to the inference service. Transport failures and
// 5xx responses are retried; a 4xx response is not.
func (c *Client) Compare(ctx context.Context, req Request) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "compare.Compare")
	defer span.End()

	res, err := c.compare(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("model", res.Model))
	return res, nil
}

func (c *Client) compare(ctx context.Context, req Request) (Result, error) {
	body := wireRequest{Prompt: req.Prompt}
	for _, img := range req.Images {
		body.Images = append(body.Images, wireImage{
			Name:     img.Name,
			MimeType: img.ContentType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("marshal inference request: %w", err)
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return Result{}, errors.Join(ErrUpstream, ErrCircuitOpen)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(c.backoff.NextInterval(attempt)):
			}
		}

		res, status, err := c.attempt(ctx, payload)
		if c.breaker != nil {
			if err == nil || permanent(status) {
				c.breaker.RecordSuccess()
			} else {
				c.breaker.RecordFailure()
			}
		}
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		lastErr = err
		c.logger.WarnContext(ctx, "inference attempt failed",
			logger.Component("compare"),
			logger.RetryCount(attempt),
			slog.Int("status", status),
			logger.Error(err),
		)
		if permanent(status) {
			break
		}
	}
	return Result{}, errors.Join(ErrUpstream, lastErr)
}

func (c *Client) attempt(ctx context.Context, payload []byte) (Result, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse))
	if err != nil {
		return Result{}, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, resp.StatusCode, fmt.Errorf("inference service returned %d", resp.StatusCode)
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, resp.StatusCode, fmt.Errorf("decode inference response: %w", err)
	}
	return res, resp.StatusCode, nil
}

// permanent reports whether a status should not be retried.
func permanent(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout
}
