// Package apiclient talks to the remote task API. Every method returns either
// decoded data or a classified *apierror.Error; callers never see transport
// errors directly.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"reliefboard/internal/apierror"
)

const (
	DefaultPrefix  = "/api/v1"
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 4 << 10
	maxBody      = 8 << 20
)

// TokenSource yields the bearer token for the next request. An empty string
// means the request goes out unauthenticated.
type TokenSource func() string

// StaticToken always yields token.
func StaticToken(token string) TokenSource {
	return func() string { return token }
}

type Config struct {
	BaseURL string
	Prefix  string
	Timeout time.Duration
	// RatePerSecond <= 0 disables client-side limiting.
	RatePerSecond float64
	Burst         int
}

// Client is safe for concurrent use.
type Client struct {
	base    string
	timeout time.Duration
	token   TokenSource
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg Config, token TokenSource, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if token == nil {
		token = StaticToken("")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(prefix, "/"),
		timeout: timeout,
		token:   token,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}
}

// WithToken returns a copy of c that authenticates with token. The copy
// shares the transport and the rate limiter.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = StaticToken(token)
	return &cp
}

// BaseURL is the resolved API root including the prefix.
func (c *Client) BaseURL() string { return c.base }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, resource apierror.Resource) error {
	err := c.roundTrip(ctx, method, path, query, body, out)
	if err != nil {
		c.logger.Debug("[api][request][err]",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apierror.Classify(err, resource)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails fast when the deadline cannot be met; surface it as one.
		if ctx.Err() == nil {
			return fmt.Errorf("rate limit: %w", context.DeadlineExceeded)
		}
		return ctx.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apierror.StatusError{
			Code:   resp.StatusCode,
			Status: http.StatusText(resp.StatusCode),
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return err
	}
	c.logger.Debug("[api][request][ok]",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)))

	return decode(data, out)
}

func decode(data []byte, out any) error {
	if out == nil {
		return nil
	}
	data = bytes.TrimSpace(data)
	if raw, ok := out.(*json.RawMessage); ok {
		if len(data) == 0 {
			*raw = json.RawMessage("null")
			return nil
		}
		if !json.Valid(data) {
			return &apierror.ParseFailure{Err: errors.New("response is not valid JSON")}
		}
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if len(data) == 0 {
		return &apierror.ParseFailure{Err: io.ErrUnexpectedEOF}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apierror.ParseFailure{Err: err}
	}
	return nil
}

func escape(id string) string { return url.PathEscape(id) }
