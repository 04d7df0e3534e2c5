package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"wiki-comic-web/internal/domain"
)

type fakeTextBackend struct {
	name     string
	generate func(ctx context.Context, req TextRequest) (string, error)
}

func (f *fakeTextBackend) Name() string { return f.name }

func (f *fakeTextBackend) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	return f.generate(ctx, req)
}

type fakeImageBackend struct {
	name     string
	generate func(ctx context.Context, req ImageRequest) (ImageData, error)
}

func (f *fakeImageBackend) Name() string { return f.name }

func (f *fakeImageBackend) GenerateImage(ctx context.Context, req ImageRequest) (ImageData, error) {
	return f.generate(ctx, req)
}

func testRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestGenerateTextRetriesTransientErrors(t *testing.T) {
	calls := 0
	text := &fakeTextBackend{
		name: "groq",
		generate: func(_ context.Context, _ TextRequest) (string, error) {
			calls++
			if calls < 3 {
				return "", fmt.Errorf("groq rate limited: %w", domain.ErrTransientProvider)
			}
			return "generated story", nil
		},
	}
	rec := NewMemoryRecorder()
	g := NewProviderGateway(text, nil, nil, testRetryConfig(), rec)

	out, err := g.GenerateText(context.Background(), TextRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if out != "generated story" {
		t.Errorf("unexpected output %q", out)
	}
	if calls != 3 {
		t.Errorf("expected 3 backend calls, got %d", calls)
	}
	if got := rec.CountOutcome(OutcomeRetry); got != 2 {
		t.Errorf("expected 2 retry attempts recorded, got %d", got)
	}
	if got := rec.CountOutcome(OutcomeSuccess); got != 1 {
		t.Errorf("expected 1 success attempt recorded, got %d", got)
	}
}

func TestGenerateTextDoesNotRetryFatalErrors(t *testing.T) {
	calls := 0
	text := &fakeTextBackend{
		name: "groq",
		generate: func(_ context.Context, _ TextRequest) (string, error) {
			calls++
			return "", fmt.Errorf("groq rejected credentials: %w", domain.ErrProviderAuth)
		},
	}
	rec := NewMemoryRecorder()
	g := NewProviderGateway(text, nil, nil, testRetryConfig(), rec)

	_, err := g.GenerateText(context.Background(), TextRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrProviderAuth) {
		t.Errorf("error should preserve the auth sentinel, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fatal error must not be retried, got %d calls", calls)
	}
	if got := rec.CountOutcome(OutcomeFatal); got != 1 {
		t.Errorf("expected 1 fatal attempt recorded, got %d", got)
	}
}

func TestGenerateTextExhaustsAttempts(t *testing.T) {
	calls := 0
	text := &fakeTextBackend{
		name: "groq",
		generate: func(_ context.Context, _ TextRequest) (string, error) {
			calls++
			return "", fmt.Errorf("groq server error: %w", domain.ErrTransientProvider)
		},
	}
	rec := NewMemoryRecorder()
	g := NewProviderGateway(text, nil, nil, testRetryConfig(), rec)

	_, err := g.GenerateText(context.Background(), TextRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !errors.Is(err, domain.ErrTransientProvider) {
		t.Errorf("error should preserve the transient sentinel, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
	if got := rec.CountOutcome(OutcomeRetry); got != 2 {
		t.Errorf("expected 2 retry attempts recorded, got %d", got)
	}
	if got := rec.CountOutcome(OutcomeFatal); got != 1 {
		t.Errorf("expected the final attempt recorded as fatal, got %d", got)
	}
}

func TestGenerateImageSwitchesToFallbackOnQuota(t *testing.T) {
	primaryCalls := 0
	primary := &fakeImageBackend{
		name: "gemini",
		generate: func(_ context.Context, _ ImageRequest) (ImageData, error) {
			primaryCalls++
			return ImageData{}, fmt.Errorf("gemini quota exhausted: %w", domain.ErrProviderQuota)
		},
	}
	fallback := &fakeImageBackend{
		name: "pollinations",
		generate: func(_ context.Context, _ ImageRequest) (ImageData, error) {
			return ImageData{Bytes: []byte("jpegbytes"), MIMEType: "image/jpeg"}, nil
		},
	}
	rec := NewMemoryRecorder()
	g := NewProviderGateway(nil, primary, fallback, testRetryConfig(), rec)

	result, err := g.GenerateImage(context.Background(), ImageRequest{Prompt: "p", Seed: 1})
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if primaryCalls != 1 {
		t.Errorf("quota error must not be retried on the same backend, got %d calls", primaryCalls)
	}
	if result.Provider != "pollinations" {
		t.Errorf("expected fallback provider attribution, got %q", result.Provider)
	}
	if result.Placeholder {
		t.Error("fallback success must not be marked as placeholder")
	}
	if string(result.Data) != "jpegbytes" {
		t.Errorf("unexpected image data %q", result.Data)
	}
	if got := rec.CountOutcome(OutcomeFallbackSwitch); got != 1 {
		t.Errorf("expected 1 fallback switch recorded, got %d", got)
	}
}

func TestGenerateImageRetriesTransientBeforeFallback(t *testing.T) {
	primaryCalls := 0
	primary := &fakeImageBackend{
		name: "gemini",
		generate: func(_ context.Context, _ ImageRequest) (ImageData, error) {
			primaryCalls++
			return ImageData{}, fmt.Errorf("gemini server error: %w", domain.ErrTransientProvider)
		},
	}
	fallbackCalls := 0
	fallback := &fakeImageBackend{
		name: "pollinations",
		generate: func(_ context.Context, _ ImageRequest) (ImageData, error) {
			fallbackCalls++
			return ImageData{Bytes: []byte("img"), MIMEType: "image/jpeg"}, nil
		},
	}
	g := NewProviderGateway(nil, primary, fallback, testRetryConfig(), NewMemoryRecorder())

	result, err := g.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if primaryCalls != 3 {
		t.Errorf("expected primary to exhaust its attempts, got %d calls", primaryCalls)
	}
	if fallbackCalls != 1 {
		t.Errorf("expected a single fallback call, got %d", fallbackCalls)
	}
	if result.Provider != "pollinations" {
		t.Errorf("expected fallback provider attribution, got %q", result.Provider)
	}
}

func TestGenerateImageReturnsPlaceholderWhenAllFail(t *testing.T) {
	primary := &fakeImageBackend{
		name: "gemini",
		generate: func(_ context.Context, _ ImageRequest) (ImageData, error) {
			return ImageData{}, fmt.Errorf("gemini rejected credentials: %w", domain.ErrProviderAuth)
		},
	}
	fallback := &fakeImageBackend{
		name: "pollinations",
		generate: func(_ context.Context, _ ImageRequest) (ImageData, error) {
			return ImageData{}, fmt.Errorf("pollinations server error: %w", domain.ErrTransientProvider)
		},
	}
	rec := NewMemoryRecorder()
	g := NewProviderGateway(nil, primary, fallback, testRetryConfig(), rec)

	result, err := g.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("placeholder path must not return an error, got %v", err)
	}
	if !result.Placeholder {
		t.Error("expected placeholder result")
	}
	if result.Provider != PlaceholderProvider {
		t.Errorf("expected placeholder provider attribution, got %q", result.Provider)
	}
	if len(result.Data) != 0 {
		t.Errorf("placeholder result must carry no image data, got %d bytes", len(result.Data))
	}
	if got := rec.CountOutcome(OutcomePlaceholder); got != 1 {
		t.Errorf("expected 1 placeholder attempt recorded, got %d", got)
	}
}

func TestGenerateImagePropagatesContextCancellation(t *testing.T) {
	primary := &fakeImageBackend{
		name: "gemini",
		generate: func(ctx context.Context, _ ImageRequest) (ImageData, error) {
			return ImageData{}, fmt.Errorf("gemini request aborted: %w", ctx.Err())
		},
	}
	g := NewProviderGateway(nil, primary, nil, testRetryConfig(), NewMemoryRecorder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GenerateImage(ctx, ImageRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should preserve the cancellation cause, got %v", err)
	}
}

func TestGenerateTextSingleAttemptConfig(t *testing.T) {
	calls := 0
	text := &fakeTextBackend{
		name: "groq",
		generate: func(_ context.Context, _ TextRequest) (string, error) {
			calls++
			return "", fmt.Errorf("groq rate limited: %w", domain.ErrTransientProvider)
		},
	}
	g := NewProviderGateway(text, nil, nil, RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond}, NewMemoryRecorder())

	if _, err := g.GenerateText(context.Background(), TextRequest{Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("MaxAttempts=1 must mean a single call, got %d", calls)
	}
}
