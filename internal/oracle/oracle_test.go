package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestResolveProvider_ExplicitWithKey(t *testing.T) {
	p, err := ResolveProvider(Config{Provider: ProviderAnthropic, AnthropicKey: "sk-ant"})
	if err != nil {
		t.Fatalf("ResolveProvider: %v", err)
	}
	if p != ProviderAnthropic {
		t.Errorf("expected anthropic, got %s", p)
	}
}

func TestResolveProvider_FallsBackWhenKeyMissing(t *testing.T) {
	p, err := ResolveProvider(Config{Provider: ProviderOpenAI, GeminiKey: "g-key"})
	if err != nil {
		t.Fatalf("ResolveProvider: %v", err)
	}
	if p != ProviderGemini {
		t.Errorf("expected fallback to gemini, got %s", p)
	}
}

func TestResolveProvider_DefaultOrder(t *testing.T) {
	p, err := ResolveProvider(Config{OpenRouterKey: "or-key", GeminiKey: "g-key"})
	if err != nil {
		t.Fatalf("ResolveProvider: %v", err)
	}
	if p != ProviderOpenRouter {
		t.Errorf("openrouter precedes gemini in auto-selection, got %s", p)
	}
}

func TestResolveProvider_NoCredentials(t *testing.T) {
	if _, err := ResolveProvider(Config{}); err == nil {
		t.Error("expected error with no credentials configured")
	}
}

func TestResolveProvider_UnknownProvider(t *testing.T) {
	if _, err := ResolveProvider(Config{Provider: "bedrock", OpenAIKey: "sk"}); err == nil {
		t.Error("expected error for unknown provider name")
	}
}

// stubOracle lets limiter tests control latency and outcome.
type stubOracle struct {
	response string
	err      error
	delay    time.Duration
}

func (s *stubOracle) Classify(ctx context.Context, _ string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.response, s.err
}

func (s *stubOracle) Name() string { return "stub" }
func (s *stubOracle) Close() error { return nil }

func TestLimit_PassesThrough(t *testing.T) {
	o := Limit(&stubOracle{response: "ok"}, 2, time.Second)

	raw, err := o.Classify(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if raw != "ok" {
		t.Errorf("expected ok, got %q", raw)
	}
}

func TestLimit_WrapsProviderErrors(t *testing.T) {
	o := Limit(&stubOracle{err: errors.New("boom")}, 2, time.Second)

	_, err := o.Classify(context.Background(), "prompt")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("provider errors must wrap ErrUnavailable, got %v", err)
	}
}

func TestLimit_TimeoutIsUnavailable(t *testing.T) {
	o := Limit(&stubOracle{response: "late", delay: time.Second}, 2, 20*time.Millisecond)

	_, err := o.Classify(context.Background(), "prompt")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("timeout must surface as ErrUnavailable, got %v", err)
	}
}

func TestLimit_CancelledContext(t *testing.T) {
	o := Limit(&stubOracle{response: "ok"}, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Classify(ctx, "prompt"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("cancelled acquisition must surface as ErrUnavailable, got %v", err)
	}
}

func TestLimit_BoundsConcurrency(t *testing.T) {
	slow := &stubOracle{response: "ok", delay: 100 * time.Millisecond}
	o := Limit(slow, 1, time.Second)

	started := time.Now()
	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = o.Classify(context.Background(), "prompt")
		}()
	}
	<-done
	<-done

	// With a single permit the two calls must serialize.
	if elapsed := time.Since(started); elapsed < 200*time.Millisecond {
		t.Errorf("expected serialized calls, both finished in %v", elapsed)
	}
}

func TestNew_NoCredentials(t *testing.T) {
	if _, err := New(Config{}, zap.NewNop()); err == nil {
		t.Error("New should fail with no provider credential")
	}
}
