// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package llm provides the client for the OpenAI-compatible analysis
// backend: chat completions with retries, a circuit breaker and a request
// rate limit, embeddings, account balance queries, and per-call transcript
// artifacts. The API token is mutable in place so the key rotator can
// re-key the live client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/metrics"
)

var (
	// ErrNoToken is returned when a call is attempted without an API token.
	ErrNoToken = errors.New("no api token configured")
	// ErrEmptyReply is returned when the backend returns no choices.
	ErrEmptyReply = errors.New("empty model reply")
)

// Config holds LLM client settings.
type Config struct {
	BaseURL         string
	Token           string
	Model           string
	EmbeddingModel  string
	MaxTokens       int
	CallTimeout     time.Duration
	BalanceTimeout  time.Duration
	MaxRetries      int
	RequestsPerMin  int
	ConversationDir string
}

// Client talks to an OpenAI-compatible backend.
type Client struct {
	cfg     Config
	http    *resty.Client
	log     zerolog.Logger
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	limiter *rate.Limiter

	mu    sync.RWMutex
	token string
}

// New creates a client. Token may be empty; the key rotator installs one via
// SetAPIToken before the first call.
func New(cfg Config) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Minute
	}
	if cfg.BalanceTimeout <= 0 {
		cfg.BalanceTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json")

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60.0), 1)
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		log:     logging.With().Str("component", "llm").Logger(),
		breaker: breaker,
		limiter: limiter,
		token:   cfg.Token,
	}
}

// SetAPIToken replaces the token used for all subsequent requests. Safe
// under concurrent calls; in-flight requests keep the token they started
// with.
func (c *Client) SetAPIToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.log.Info().Msg("api token replaced")
}

// APIToken returns the current token.
func (c *Client) APIToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Configured reports whether the client can make calls.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends one system+user exchange at temperature 0 and returns the
// assistant text. Transient failures are retried with exponential backoff;
// the conversation is recorded to a transcript artifact under kind.
func (c *Client) Chat(ctx context.Context, kind, systemPrompt, userMessage string) (string, error) {
	token := c.APIToken()
	if token == "" {
		return "", ErrNoToken
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: 0,
		MaxTokens:   c.cfg.MaxTokens,
	}

	start := time.Now()
	var result chatResponse
	resp, err := c.doWithRetry(ctx, func() (*resty.Response, error) {
		result = chatResponse{}
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(&body).
			SetResult(&result).
			Post("/chat/completions")
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMCallDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat completion failed: status %d", resp.StatusCode())
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := result.Choices[0].Message.Content

	if werr := c.writeTranscript(kind, systemPrompt, userMessage, reply); werr != nil {
		c.log.Warn().Err(werr).Msg("transcript write failed")
	}
	return reply, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	token := c.APIToken()
	if token == "" {
		return nil, ErrNoToken
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	var result embeddingResponse
	resp, err := c.doWithRetry(ctx, func() (*resty.Response, error) {
		result = embeddingResponse{}
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(&embeddingRequest{Model: c.cfg.EmbeddingModel, Input: texts}).
			SetResult(&result).
			Post("/embeddings")
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMCallDuration.WithLabelValues("embedding", status).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding failed: status %d", resp.StatusCode())
	}

	vectors := make([][]float64, len(texts))
	for _, d := range result.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}

// balanceResponse covers both the DeepSeek balance shape and a plain
// {"balance": n} reply.
type balanceResponse struct {
	Balance      *float64 `json:"balance"`
	BalanceInfos []struct {
		TotalBalance string `json:"total_balance"`
	} `json:"balance_infos"`
}

// Balance queries the account balance for a specific key (not necessarily
// the installed one) within the balance timeout.
func (c *Client) Balance(ctx context.Context, key string) (float64, error) {
	if key == "" {
		return 0, ErrNoToken
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.BalanceTimeout)
	defer cancel()

	var result balanceResponse
	resp, err := c.doWithRetry(ctx, func() (*resty.Response, error) {
		result = balanceResponse{}
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(key).
			SetResult(&result).
			Get("/user/balance")
	})
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("balance query failed: status %d", resp.StatusCode())
	}

	if result.Balance != nil {
		return *result.Balance, nil
	}
	if len(result.BalanceInfos) > 0 {
		b, perr := strconv.ParseFloat(result.BalanceInfos[0].TotalBalance, 64)
		if perr != nil {
			return 0, fmt.Errorf("parse balance %q: %w", result.BalanceInfos[0].TotalBalance, perr)
		}
		return b, nil
	}
	return 0, errors.New("unrecognized balance response")
}

// doWithRetry runs the call through the circuit breaker with exponential
// backoff on transient failures (network errors, 429, 5xx). Permanent HTTP
// errors return immediately.
func (c *Client) doWithRetry(ctx context.Context, call func() (*resty.Response, error)) (*resty.Response, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries)), ctx)

	var resp *resty.Response
	err := backoff.Retry(func() error {
		var cerr error
		resp, cerr = c.breaker.Execute(call)
		if cerr != nil {
			if errors.Is(cerr, gobreaker.ErrOpenState) || errors.Is(cerr, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(cerr)
			}
			metrics.LLMRetries.Inc()
			return cerr
		}
		if transientStatus(resp.StatusCode()) {
			metrics.LLMRetries.Inc()
			return fmt.Errorf("transient status %d", resp.StatusCode())
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	return resp, nil
}

// transientStatus reports whether an HTTP status warrants a retry.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
