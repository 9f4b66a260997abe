// Package oracle adapts external LLM completion providers to a single
// classification contract. Exactly one provider is active per process,
// selected at construction time and never per call.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrUnavailable marks any transport, provider, or timeout failure during a
// classification call. Callers match it with errors.Is; the pipeline reacts
// by failing open, never by blocking traffic.
var ErrUnavailable = errors.New("oracle unavailable")

// Provider names accepted in configuration.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// maxCompletionTokens bounds the oracle's output. Classification responses
// are a single short JSON object.
const maxCompletionTokens = 200

// Oracle is the text-completion contract every provider implements.
// Implementations must respect context deadlines.
type Oracle interface {
	// Classify sends the rendered classification prompt and returns the
	// provider's raw text response.
	Classify(ctx context.Context, prompt string) (string, error)

	// Name identifies the active provider.
	Name() string

	// Close releases provider resources.
	Close() error
}

// Config selects and tunes the active provider.
type Config struct {
	Provider      string // openai | anthropic | openrouter | gemini; empty selects by available key
	Model         string // provider default when empty
	OpenAIKey     string
	AnthropicKey  string
	OpenRouterKey string
	GeminiKey     string
	Timeout       time.Duration // per-call ceiling
	MaxConcurrent int64         // bound on in-flight provider calls
}

func (c Config) keyFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIKey
	case ProviderAnthropic:
		return c.AnthropicKey
	case ProviderOpenRouter:
		return c.OpenRouterKey
	case ProviderGemini:
		return c.GeminiKey
	default:
		return ""
	}
}

// ResolveProvider picks the provider that will be active: the configured one
// when a credential exists for it, otherwise the first of
// openai, anthropic, openrouter, gemini with a credential.
func ResolveProvider(cfg Config) (string, error) {
	p := cfg.Provider
	if p == "" {
		p = ProviderOpenAI
	}
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter, ProviderGemini:
	default:
		return "", fmt.Errorf("ResolveProvider: unknown provider %q", p)
	}
	if cfg.keyFor(p) != "" {
		return p, nil
	}
	for _, cand := range []string{ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter, ProviderGemini} {
		if cfg.keyFor(cand) != "" {
			return cand, nil
		}
	}
	return "", errors.New("ResolveProvider: no provider credential configured")
}

// New constructs the active provider and wraps it with the concurrency
// limiter and per-call timeout.
func New(cfg Config, logger *zap.Logger) (Oracle, error) {
	provider, err := ResolveProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}

	var inner Oracle
	switch provider {
	case ProviderOpenAI:
		inner = NewOpenAI(cfg.OpenAIKey, cfg.Model, logger)
	case ProviderOpenRouter:
		inner = NewOpenRouter(cfg.OpenRouterKey, cfg.Model, logger)
	case ProviderAnthropic:
		inner = NewAnthropic(cfg.AnthropicKey, cfg.Model, logger)
	case ProviderGemini:
		inner, err = NewGemini(cfg.GeminiKey, cfg.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	logger.Info("oracle provider active",
		zap.String("provider", provider),
		zap.Duration("timeout", timeout),
		zap.Int64("max_concurrent", maxConcurrent),
	)

	return Limit(inner, maxConcurrent, timeout), nil
}

// Limit wraps an oracle with a weighted semaphore bounding in-flight calls
// and a per-call timeout, so a slow or hanging provider cannot absorb every
// request-handling goroutine.
func Limit(inner Oracle, maxConcurrent int64, timeout time.Duration) Oracle {
	return &limiter{
		inner:   inner,
		sem:     semaphore.NewWeighted(maxConcurrent),
		timeout: timeout,
	}
}

type limiter struct {
	inner   Oracle
	sem     *semaphore.Weighted
	timeout time.Duration
}

func (l *limiter) Classify(ctx context.Context, prompt string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("Classify: %w: %w", ErrUnavailable, err)
	}
	defer l.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	raw, err := l.inner.Classify(callCtx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", l.inner.Name(), ErrUnavailable, err)
	}
	return raw, nil
}

func (l *limiter) Name() string { return l.inner.Name() }

func (l *limiter) Close() error { return l.inner.Close() }

// snippet bounds provider error bodies embedded in error messages.
func snippet(b []byte) string {
	const max = 300
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
