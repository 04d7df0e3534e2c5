package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AttemptOutcome はプロバイダ呼び出し一回分の結末です。
type AttemptOutcome string

const (
	OutcomeSuccess        AttemptOutcome = "success"
	OutcomeRetry          AttemptOutcome = "retry"
	OutcomeFatal          AttemptOutcome = "fatal"
	OutcomeFallbackSwitch AttemptOutcome = "fallback_switch"
	OutcomePlaceholder    AttemptOutcome = "placeholder"
)

// Attempt はプロバイダ呼び出しの観測レコードです。成功・リトライ・
// フォールバック切替・プレースホルダ採用のすべてが記録対象です。
type Attempt struct {
	Capability Capability
	Provider   string
	Number     int
	Outcome    AttemptOutcome
	Err        string
	Elapsed    time.Duration
	At         time.Time
}

// AttemptRecorder は Attempt の記録先を抽象化します。
type AttemptRecorder interface {
	Record(ctx context.Context, a Attempt)
}

// SlogRecorder は構造化ログへ Attempt を書き出す既定のレコーダーです。
type SlogRecorder struct{}

func (SlogRecorder) Record(ctx context.Context, a Attempt) {
	attrs := []any{
		"capability", string(a.Capability),
		"provider", a.Provider,
		"attempt", a.Number,
		"outcome", string(a.Outcome),
		"elapsed_ms", a.Elapsed.Milliseconds(),
	}
	if a.Err != "" {
		attrs = append(attrs, "error", a.Err)
	}

	switch a.Outcome {
	case OutcomeSuccess:
		slog.DebugContext(ctx, "Provider call succeeded", attrs...)
	case OutcomeRetry:
		slog.WarnContext(ctx, "Provider call will be retried", attrs...)
	case OutcomeFallbackSwitch:
		slog.WarnContext(ctx, "Switching to fallback provider", attrs...)
	case OutcomePlaceholder:
		slog.WarnContext(ctx, "All providers exhausted, using placeholder", attrs...)
	default:
		slog.ErrorContext(ctx, "Provider call failed", attrs...)
	}
}

// MemoryRecorder は Attempt をメモリに蓄積するテスト用レコーダーです。
type MemoryRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, a Attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
}

// Attempts は記録済み Attempt のコピーを返します。
func (m *MemoryRecorder) Attempts() []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Attempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

// CountOutcome は指定の結末を持つ Attempt の数を返します。
func (m *MemoryRecorder) CountOutcome(o AttemptOutcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.Outcome == o {
			n++
		}
	}
	return n
}
