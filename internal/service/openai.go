package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"houser/internal/config"
	"houser/internal/errors"
	"houser/internal/metrics"
)

// LLMClient wraps an OpenAI-compatible chat model with rate limiting and
// per-call timeouts
type LLMClient struct {
	model   llms.Model
	cfg     config.OpenAIConfig
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// NewLLMClient builds a client from config. When no API key is configured the
// client is returned disabled.
func NewLLMClient(cfg config.OpenAIConfig, m *metrics.Metrics) (*LLMClient, error) {
	if !cfg.Enabled {
		return &LLMClient{cfg: cfg, metrics: m}, nil
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.APIBase),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	return NewLLMClientWithModel(model, cfg, m), nil
}

// NewLLMClientWithModel wraps an existing model
func NewLLMClientWithModel(model llms.Model, cfg config.OpenAIConfig, m *metrics.Metrics) *LLMClient {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &LLMClient{
		model:   model,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		metrics: m,
	}
}

// Enabled reports whether a model is configured
func (c *LLMClient) Enabled() bool {
	return c != nil && c.model != nil
}

// Config returns the client configuration
func (c *LLMClient) Config() config.OpenAIConfig {
	return c.cfg
}

// Complete runs one non-streaming generation and returns the first choice
func (c *LLMClient) Complete(ctx context.Context, purpose string, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	if !c.Enabled() {
		return "", errors.ErrLLMUnavailable
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.LLMCall(purpose, "rate_limited")
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		c.metrics.LLMCall(purpose, "error")
		return "", fmt.Errorf("%s generation failed: %w", purpose, err)
	}
	if len(resp.Choices) == 0 {
		c.metrics.LLMCall(purpose, "empty")
		return "", fmt.Errorf("%s generation returned no choices", purpose)
	}

	c.metrics.LLMCall(purpose, "ok")
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// Stream runs a streaming generation, passing each non-empty fragment to emit
func (c *LLMClient) Stream(ctx context.Context, purpose string, messages []llms.MessageContent, emit func(string) error, opts ...llms.CallOption) error {
	if !c.Enabled() {
		return errors.ErrLLMUnavailable
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.LLMCall(purpose, "rate_limited")
		return fmt.Errorf("rate limit wait: %w", err)
	}

	opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return emit(string(chunk))
	}))

	if _, err := c.model.GenerateContent(ctx, messages, opts...); err != nil {
		c.metrics.LLMCall(purpose, "error")
		return fmt.Errorf("%s stream failed: %w", purpose, err)
	}

	c.metrics.LLMCall(purpose, "ok")
	return nil
}

func (c *LLMClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(c.cfg.Timeout)*time.Second)
}

// chatRole maps a history role onto a langchaingo message type
func chatRole(role string) llms.ChatMessageType {
	switch strings.ToLower(role) {
	case "assistant", "ai", "bot":
		return llms.ChatMessageTypeAI
	case "system":
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}
