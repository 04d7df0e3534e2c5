// Package gateway は外部の文章生成・画像生成プロバイダへの呼び出しを
// 統一的な契約の下にまとめます。リトライ、フォールバック切替、
// プレースホルダ代替の方針はすべてこの層に閉じ込めるのだ。
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"wiki-comic-web/internal/domain"
)

// Capability はゲートウェイが扱う生成能力の種別です。
type Capability string

const (
	CapabilityText  Capability = "text-generation"
	CapabilityImage Capability = "image-generation"
)

// PlaceholderProvider はプレースホルダ画像に付与されるプロバイダ名です。
const PlaceholderProvider = "placeholder"

// TextRequest は文章生成一回分の要求です。
type TextRequest struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// ImageRequest は画像生成一回分の要求です。Seed はシーンごとの
// 画像が同じ絵に収束しないための変動値です。
type ImageRequest struct {
	Prompt string
	Seed   int
}

// ImageData はバックエンドが返す生の画像ペイロードです。
type ImageData struct {
	Bytes    []byte
	MIMEType string
}

// ImageResult はフォールバック連鎖を通過した後の最終結果です。
// Placeholder が真の場合、Data は空でありプロバイダ名は
// PlaceholderProvider になります。
type ImageResult struct {
	Data        []byte
	MIMEType    string
	Provider    string
	Placeholder bool
}

// TextBackend は文章生成バックエンドの契約です。
type TextBackend interface {
	Name() string
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// ImageBackend は画像生成バックエンドの契約です。
type ImageBackend interface {
	Name() string
	GenerateImage(ctx context.Context, req ImageRequest) (ImageData, error)
}

// Gateway はステージ実行側から見たプロバイダ呼び出しの契約です。
type Gateway interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error)
}

// RetryConfig は一つのバックエンドに対するリトライ方針です。
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// ProviderGateway は Gateway の標準実装です。文章生成は単一
// バックエンドへのリトライ、画像生成は primary から fallback への
// 連鎖とし、両方が尽きた場合はプレースホルダ結果を返します。
type ProviderGateway struct {
	text     TextBackend
	primary  ImageBackend
	fallback ImageBackend
	retry    RetryConfig
	recorder AttemptRecorder
}

var _ Gateway = (*ProviderGateway)(nil)

// NewProviderGateway は ProviderGateway を生成します。recorder が
// nil の場合は構造化ログへの記録にフォールバックします。
func NewProviderGateway(text TextBackend, primary, fallback ImageBackend, retry RetryConfig, recorder AttemptRecorder) *ProviderGateway {
	if recorder == nil {
		recorder = SlogRecorder{}
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &ProviderGateway{
		text:     text,
		primary:  primary,
		fallback: fallback,
		retry:    retry,
		recorder: recorder,
	}
}

// GenerateText は文章生成バックエンドを呼び出します。一時的な
// エラーのみ指数バックオフで再試行し、認証・クォータ・整形不能と
// いった致命的なエラーは即座に呼び出し元へ返します。
func (g *ProviderGateway) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	var out string
	attempt := 0
	op := func() error {
		attempt++
		start := time.Now()
		text, err := g.text.GenerateText(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			if errors.Is(err, domain.ErrTransientProvider) && attempt < g.retry.MaxAttempts {
				g.record(ctx, CapabilityText, g.text.Name(), attempt, OutcomeRetry, err, elapsed)
				return err
			}
			g.record(ctx, CapabilityText, g.text.Name(), attempt, OutcomeFatal, err, elapsed)
			return backoff.Permanent(err)
		}
		out = text
		g.record(ctx, CapabilityText, g.text.Name(), attempt, OutcomeSuccess, nil, elapsed)
		return nil
	}
	if err := backoff.Retry(op, g.policy(ctx)); err != nil {
		return "", fmt.Errorf("text generation via %s failed: %w", g.text.Name(), err)
	}
	return out, nil
}

// GenerateImage は primary、fallback の順に画像生成を試みます。
// 各バックエンドには GenerateText と同じリトライ方針を適用し、
// クォータ超過や認証失敗は再試行せず次のバックエンドへ切り替えます。
// すべてのバックエンドが尽きてもエラーにはせず、プレースホルダ
// 結果を返します。エラーを返すのはコンテキスト打ち切りの場合だけです。
func (g *ProviderGateway) GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	backends := make([]ImageBackend, 0, 2)
	if g.primary != nil {
		backends = append(backends, g.primary)
	}
	if g.fallback != nil {
		backends = append(backends, g.fallback)
	}

	for i, b := range backends {
		data, attempts, err := g.tryImageBackend(ctx, b, req)
		if err == nil {
			return ImageResult{
				Data:        data.Bytes,
				MIMEType:    data.MIMEType,
				Provider:    b.Name(),
				Placeholder: false,
			}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ImageResult{}, fmt.Errorf("image generation via %s aborted: %w", b.Name(), ctxErr)
		}
		if i < len(backends)-1 {
			g.record(ctx, CapabilityImage, b.Name(), attempts, OutcomeFallbackSwitch, err, 0)
		} else {
			g.record(ctx, CapabilityImage, b.Name(), attempts, OutcomePlaceholder, err, 0)
		}
	}

	return ImageResult{Provider: PlaceholderProvider, Placeholder: true}, nil
}

func (g *ProviderGateway) tryImageBackend(ctx context.Context, b ImageBackend, req ImageRequest) (ImageData, int, error) {
	var out ImageData
	attempt := 0
	op := func() error {
		attempt++
		start := time.Now()
		data, err := b.GenerateImage(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			if errors.Is(err, domain.ErrTransientProvider) && attempt < g.retry.MaxAttempts {
				g.record(ctx, CapabilityImage, b.Name(), attempt, OutcomeRetry, err, elapsed)
				return err
			}
			g.record(ctx, CapabilityImage, b.Name(), attempt, OutcomeFatal, err, elapsed)
			return backoff.Permanent(err)
		}
		out = data
		g.record(ctx, CapabilityImage, b.Name(), attempt, OutcomeSuccess, nil, elapsed)
		return nil
	}
	err := backoff.Retry(op, g.policy(ctx))
	return out, attempt, err
}

func (g *ProviderGateway) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retry.BaseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = g.retry.MaxDelay
	bo.MaxElapsedTime = 0

	var b backoff.BackOff = bo
	if g.retry.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(g.retry.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (g *ProviderGateway) record(ctx context.Context, capability Capability, provider string, number int, outcome AttemptOutcome, err error, elapsed time.Duration) {
	a := Attempt{
		Capability: capability,
		Provider:   provider,
		Number:     number,
		Outcome:    outcome,
		Elapsed:    elapsed,
		At:         time.Now().UTC(),
	}
	if err != nil {
		a.Err = err.Error()
	}
	g.recorder.Record(ctx, a)
}
