// Package pipeline はトピックごとのステージ進行を統括するコーディネーターです。
// 各ステージの実行前にストアを照会し、同一フィンガープリントのレコードが
// あれば実行器を呼ばずに再利用します。再実行はこの仕組みにより冪等なのだ。
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/runner"
	"wiki-comic-web/internal/store"
)

// Runners はパイプラインが使用するステージ実行器の束です。
type Runners struct {
	Extract   runner.ExtractRunner
	Story     runner.StoryRunner
	Prompts   runner.PromptRunner
	Narration runner.NarrationRunner
	Images    runner.ImageRunner
}

// Notifier はラン結果の外部通知先です。nil の場合、通知は行われません。
type Notifier interface {
	Notify(ctx context.Context, publicURL, storageURI string, req domain.NotificationRequest) error
	NotifyError(ctx context.Context, opErr error, req domain.NotificationRequest) error
}

// AdvanceRequest はパイプラインを指定ステージまで進める要求です。
type AdvanceRequest struct {
	Topic domain.Topic
	// Target は進行先ステージです。ゼロ値はナレーションと画像の両方が
	// 揃った完了状態まで進めることを意味します。
	Target domain.Stage
	Params domain.GenerationParams
	// Force が真の場合、経路上のステージを保存済みレコードを無視して
	// 再生成し、同一キーへ上書きします。
	Force bool
}

// StageOutcome は一回のランにおける各ステージの結末です。
type StageOutcome struct {
	Stage       domain.Stage  `json:"stage"`
	Fingerprint string        `json:"fingerprint"`
	Status      domain.Status `json:"status"`
	// Reused は保存済みレコードの再利用によって実行器の呼び出しを
	// 省略したことを示します。
	Reused bool `json:"reused"`
	Scenes int  `json:"scenes,omitempty"`
}

// RunReport は advance 一回分の結果報告です。
type RunReport struct {
	Topic domain.Topic `json:"topic"`
	RunID string       `json:"run_id"`
	// Target は解決済みの目標ステージ名です。完了まで進めた場合は
	// "complete" になります。
	Target string          `json:"target"`
	State  domain.RunState `json:"state"`
	Stages []StageOutcome  `json:"stages"`
	// Candidates は抽出が曖昧さ回避ページに当たった場合の候補一覧です。
	Candidates []string `json:"candidates,omitempty"`
	// ExportPath は完了時に書き出された統合エクスポートの保存先です。
	ExportPath string `json:"export_path,omitempty"`
	// FailedStage はランを停止させたステージ名です。
	FailedStage domain.Stage `json:"failed_stage,omitempty"`
}

// ComicPipeline はコーディネーターの実装です。リトライはゲートウェイの
// 責務であり、この層は進む・止まる・部分完了を受け入れるの判断だけを
// 行います。
type ComicPipeline struct {
	store      store.StageStore
	runners    Runners
	notifier   Notifier
	serviceURL string
}

func NewComicPipeline(st store.StageStore, runners Runners, notifier Notifier, serviceURL string) *ComicPipeline {
	return &ComicPipeline{
		store:      st,
		runners:    runners,
		notifier:   notifier,
		serviceURL: serviceURL,
	}
}

// Execute はワーカーから受け取ったタスクペイロードを一回のランとして
// 実行します。結果は Slack へ通知し、失敗時はエラーを返して Cloud Tasks
// の再試行に委ねます。曖昧さ回避による停止は失敗扱いにしません。
func (p *ComicPipeline) Execute(ctx context.Context, payload domain.GenerateTaskPayload) error {
	topic := domain.NewTopic(payload.Topic, payload.Language)
	if topic.IsZero() {
		return fmt.Errorf("task payload has no topic title")
	}

	target, err := ParseTarget(payload.TargetStage)
	if err != nil {
		return fmt.Errorf("task payload has an invalid target stage: %w", err)
	}

	report, err := p.Advance(ctx, AdvanceRequest{
		Topic:  topic,
		Target: target,
		Params: payload.Params,
		Force:  payload.Force,
	})
	if err != nil {
		p.notifyError(ctx, topic, report, err)
		return err
	}

	p.notifySuccess(ctx, topic, report)
	return nil
}

// Advance はトピックを目標ステージまで進め、各ステージの結末を報告します。
// 失敗時もそこまでの進行を含むレポートを返します。
func (p *ComicPipeline) Advance(ctx context.Context, req AdvanceRequest) (*RunReport, error) {
	if req.Topic.IsZero() {
		return nil, fmt.Errorf("advance requires a topic title")
	}
	req.Params = req.Params.Normalized()

	exec := &comicExecution{
		pipeline:  p,
		req:       req,
		runID:     uuid.NewString(),
		startTime: time.Now().UTC(),
	}
	return exec.run(ctx)
}

// ParseTarget は外部から渡される目標ステージ名を解釈します。空文字と
// "complete" は完了まで進める指定として扱います。
func ParseTarget(s string) (domain.Stage, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" || normalized == "complete" || normalized == "all" {
		return "", nil
	}
	return domain.ParseStage(normalized)
}

func targetName(target domain.Stage) string {
	if target == "" {
		return "complete"
	}
	return string(target)
}
