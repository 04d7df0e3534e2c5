package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"wiki-comic-web/internal/domain"
)

// comicExecution は一回のラン実行に関する状態（ラン ID、開始時刻、
// ステージごとの結末）を保持します。
type comicExecution struct {
	pipeline  *ComicPipeline
	req       AdvanceRequest
	runID     string
	startTime time.Time

	// ナレーションと画像は並行に走るため、結末の記録は排他します。
	mu       sync.Mutex
	outcomes []StageOutcome
}

// run は抽出からエクスポートまでを順番に進めます。各ステージはストア
// 照会が先で、レコードがあれば実行器を呼びません。失敗したステージで
// 前進を止め、そこまでの進行を含むレポートと共にエラーを返します。
func (e *comicExecution) run(ctx context.Context) (*RunReport, error) {
	topic := e.req.Topic
	slog.InfoContext(ctx, "🚀 Comic pipeline advance started",
		"topic", topic.Title,
		"language", topic.Language,
		"target", targetName(e.req.Target),
		"force", e.req.Force,
		"run_id", e.runID,
	)

	// --- Phase 1: 記事抽出 ---
	extract, err := e.ensureExtract(ctx)
	if err != nil {
		return e.failed(ctx, domain.StageExtract, err)
	}
	if extract.Disambiguous() {
		slog.InfoContext(ctx, "Advance halted at a disambiguation page",
			"topic", topic.Title,
			"candidates", len(extract.Candidates),
		)
		report := e.report(domain.StateExtracted)
		report.Candidates = extract.Candidates
		return report, nil
	}
	if e.req.Target == domain.StageExtract {
		return e.report(domain.StateExtracted), nil
	}
	if err := ctx.Err(); err != nil {
		return e.report(domain.StateExtracted), err
	}

	// --- Phase 2: ストーリーライン生成 ---
	storyline, err := e.ensureStory(ctx, extract.Article)
	if err != nil {
		return e.failed(ctx, domain.StageStory, err)
	}
	if e.req.Target == domain.StageStory {
		return e.report(domain.StateStoryGenerated), nil
	}
	if err := ctx.Err(); err != nil {
		return e.report(domain.StateStoryGenerated), err
	}

	// --- Phase 3: シーンプロンプト生成 ---
	prompts, err := e.ensurePrompts(ctx, storyline)
	if err != nil {
		return e.failed(ctx, domain.StagePrompts, err)
	}
	if e.req.Target == domain.StagePrompts {
		return e.report(domain.StatePromptsGenerated), nil
	}
	if err := ctx.Err(); err != nil {
		return e.report(domain.StatePromptsGenerated), err
	}

	// --- Phase 4: ナレーションと画像（独立した末端ステージ） ---
	switch e.req.Target {
	case domain.StageNarration:
		if _, err := e.ensureNarration(ctx, storyline); err != nil {
			return e.failed(ctx, domain.StageNarration, err)
		}
		return e.report(domain.StateNarrationGenerated), nil

	case domain.StageImages:
		if _, err := e.ensureImages(ctx, prompts); err != nil {
			return e.failed(ctx, domain.StageImages, err)
		}
		return e.report(domain.StateImagesGenerated), nil

	default:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if _, err := e.ensureNarration(gctx, storyline); err != nil {
				return fmt.Errorf("narration stage: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			if _, err := e.ensureImages(gctx, prompts); err != nil {
				return fmt.Errorf("image stage: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return e.failed(ctx, "", err)
		}
	}

	// --- Phase 5: 統合エクスポートの書き出し ---
	report := e.report(domain.StateComplete)
	exportPath, err := e.pipeline.writeExport(ctx, topic, e.req.Params, e.runID)
	if err != nil {
		// 全ステージは永続化済みなので、エクスポートの失敗でランは
		// 落としません。エクスポート API から再構築できます。
		slog.WarnContext(ctx, "Combined export write failed",
			"topic", topic.Title, "error", err)
	} else {
		report.ExportPath = exportPath
	}

	slog.InfoContext(ctx, "✅ Comic pipeline advance completed",
		"topic", topic.Title,
		"run_id", e.runID,
		"state", string(report.State),
		"elapsed", time.Since(e.startTime).String(),
	)
	return report, nil
}

// --- 各ステージの確保 ---

func (e *comicExecution) ensureExtract(ctx context.Context) (domain.ExtractResult, error) {
	rec, ok, err := e.lookup(ctx, domain.StageExtract)
	if err != nil {
		return domain.ExtractResult{}, err
	}
	if ok {
		result, err := domain.DecodePayload[domain.ExtractResult](rec)
		if err != nil {
			return domain.ExtractResult{}, err
		}
		e.noteReuse(ctx, rec, 0)
		return result, nil
	}

	result, err := e.pipeline.runners.Extract.Run(ctx, e.req.Topic)
	if err != nil {
		return domain.ExtractResult{}, err
	}

	// 曖昧さ回避の候補一覧も記録として残します。次回のランは同じ候補を
	// 再取得なしで返せます。
	status := domain.StatusOK
	if result.Disambiguous() {
		status = domain.StatusPartial
	}
	rec, err = e.persist(ctx, domain.StageExtract, status, result)
	if err != nil {
		return domain.ExtractResult{}, err
	}
	e.addOutcome(rec, false, 0)
	return result, nil
}

func (e *comicExecution) ensureStory(ctx context.Context, article *domain.ArticleContent) (domain.Storyline, error) {
	rec, ok, err := e.lookup(ctx, domain.StageStory)
	if err != nil {
		return domain.Storyline{}, err
	}
	if ok {
		storyline, err := domain.DecodePayload[domain.Storyline](rec)
		if err != nil {
			return domain.Storyline{}, err
		}
		e.noteReuse(ctx, rec, storyline.SceneCount())
		return storyline, nil
	}

	storyline, err := e.pipeline.runners.Story.Run(ctx, article, e.req.Params)
	if err != nil {
		return domain.Storyline{}, err
	}
	rec, err = e.persist(ctx, domain.StageStory, domain.StatusOK, storyline)
	if err != nil {
		return domain.Storyline{}, err
	}
	e.addOutcome(rec, false, storyline.SceneCount())
	return storyline, nil
}

func (e *comicExecution) ensurePrompts(ctx context.Context, storyline domain.Storyline) (domain.PromptSet, error) {
	rec, ok, err := e.lookup(ctx, domain.StagePrompts)
	if err != nil {
		return domain.PromptSet{}, err
	}
	if ok {
		prompts, err := domain.DecodePayload[domain.PromptSet](rec)
		if err != nil {
			return domain.PromptSet{}, err
		}
		e.noteReuse(ctx, rec, len(prompts.Prompts))
		return prompts, nil
	}

	prompts, err := e.pipeline.runners.Prompts.Run(ctx, storyline, e.req.Params)
	if err != nil {
		return domain.PromptSet{}, err
	}
	rec, err = e.persist(ctx, domain.StagePrompts, domain.StatusOK, prompts)
	if err != nil {
		return domain.PromptSet{}, err
	}
	e.addOutcome(rec, false, len(prompts.Prompts))
	return prompts, nil
}

func (e *comicExecution) ensureNarration(ctx context.Context, storyline domain.Storyline) (domain.NarrationSet, error) {
	rec, ok, err := e.lookup(ctx, domain.StageNarration)
	if err != nil {
		return domain.NarrationSet{}, err
	}
	if ok {
		narration, err := domain.DecodePayload[domain.NarrationSet](rec)
		if err != nil {
			return domain.NarrationSet{}, err
		}
		e.noteReuse(ctx, rec, len(narration.Entries))
		return narration, nil
	}

	narration, err := e.pipeline.runners.Narration.Run(ctx, storyline, e.req.Params)
	if err != nil {
		return domain.NarrationSet{}, err
	}
	rec, err = e.persist(ctx, domain.StageNarration, domain.StatusOK, narration)
	if err != nil {
		return domain.NarrationSet{}, err
	}
	e.addOutcome(rec, false, len(narration.Entries))
	return narration, nil
}

func (e *comicExecution) ensureImages(ctx context.Context, prompts domain.PromptSet) (domain.ImageSet, error) {
	rec, ok, err := e.lookup(ctx, domain.StageImages)
	if err != nil {
		return domain.ImageSet{}, err
	}
	if ok {
		images, err := domain.DecodePayload[domain.ImageSet](rec)
		if err != nil {
			return domain.ImageSet{}, err
		}
		e.noteReuse(ctx, rec, len(images.Artifacts))
		return images, nil
	}

	outcome, err := e.pipeline.runners.Images.Run(ctx, prompts)
	if err != nil {
		return domain.ImageSet{}, err
	}

	fingerprint := e.req.Params.FingerprintFor(domain.StageImages, e.req.Topic.Language)
	artifacts := make([]domain.ImageArtifact, 0, len(outcome.Images))
	for _, img := range outcome.Images {
		artifact := domain.ImageArtifact{
			Index:       img.Index,
			Provider:    img.Provider,
			Placeholder: img.Placeholder,
			MIMEType:    img.MIMEType,
		}
		if len(img.Data) > 0 {
			relPath := path.Join("images", fingerprint,
				fmt.Sprintf("scene_%02d.%s", img.Index, extensionFor(img.MIMEType)))
			objectPath, err := e.pipeline.store.WriteObject(ctx, e.req.Topic, relPath, img.Data, img.MIMEType)
			if err != nil {
				return domain.ImageSet{}, err
			}
			artifact.ObjectPath = objectPath
		}
		artifacts = append(artifacts, artifact)
	}

	set := domain.ImageSet{Artifacts: artifacts}
	rec, err = e.persist(ctx, domain.StageImages, outcome.Status(), set)
	if err != nil {
		return domain.ImageSet{}, err
	}
	e.addOutcome(rec, false, len(artifacts))
	return set, nil
}

// --- ストア入出力 ---

// lookup は現在のパラメータのフィンガープリントでストアを照会します。
// force 指定時は照会せず、常にミス扱いで実行器を走らせます。
func (e *comicExecution) lookup(ctx context.Context, stage domain.Stage) (domain.StageRecord, bool, error) {
	if e.req.Force {
		return domain.StageRecord{}, false, nil
	}
	fingerprint := e.req.Params.FingerprintFor(stage, e.req.Topic.Language)
	return e.pipeline.store.Get(ctx, e.req.Topic, stage, fingerprint)
}

func (e *comicExecution) persist(ctx context.Context, stage domain.Stage, status domain.Status, payload any) (domain.StageRecord, error) {
	fingerprint := e.req.Params.FingerprintFor(stage, e.req.Topic.Language)
	rec, err := domain.NewStageRecord(e.req.Topic, stage, fingerprint, e.runID, status, payload)
	if err != nil {
		return domain.StageRecord{}, err
	}
	if err := e.pipeline.store.Put(ctx, rec); err != nil {
		return domain.StageRecord{}, err
	}
	return rec, nil
}

func (e *comicExecution) noteReuse(ctx context.Context, rec domain.StageRecord, scenes int) {
	slog.InfoContext(ctx, "♻️ Reusing stored stage record",
		"topic", e.req.Topic.Title,
		"stage", string(rec.Stage),
		"fingerprint", rec.Fingerprint,
		"status", string(rec.Status),
	)
	e.addOutcome(rec, true, scenes)
}

func (e *comicExecution) addOutcome(rec domain.StageRecord, reused bool, scenes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outcomes = append(e.outcomes, StageOutcome{
		Stage:       rec.Stage,
		Fingerprint: rec.Fingerprint,
		Status:      rec.Status,
		Reused:      reused,
		Scenes:      scenes,
	})
}

// --- レポート構築 ---

func (e *comicExecution) report(state domain.RunState) *RunReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	stages := make([]StageOutcome, len(e.outcomes))
	copy(stages, e.outcomes)
	return &RunReport{
		Topic:  e.req.Topic,
		RunID:  e.runID,
		Target: targetName(e.req.Target),
		State:  state,
		Stages: stages,
	}
}

func (e *comicExecution) failed(ctx context.Context, stage domain.Stage, err error) (*RunReport, error) {
	slog.ErrorContext(ctx, "⚠️ Comic pipeline advance failed",
		"topic", e.req.Topic.Title,
		"run_id", e.runID,
		"stage", string(stage),
		"fatal", domain.IsFatalStageError(err),
		"error", err,
	)
	report := e.report(domain.StateFailed)
	report.FailedStage = stage
	return report, err
}
