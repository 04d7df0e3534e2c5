package runner

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/gateway"
)

// NarrationRunner はナレーション生成ステージのインターフェースです。
type NarrationRunner interface {
	Run(ctx context.Context, storyline domain.Storyline, params domain.GenerationParams) (domain.NarrationSet, error)
}

// ComicNarrationRunner はシーンごとのボイスオーバー文を生成する実装です。
// シーン間に依存がないため、ワーカー数を上限に並列で呼び出します。
// 画像ステージの成否とは独立に動きます。
type ComicNarrationRunner struct {
	gw      gateway.Gateway
	workers int
}

func NewComicNarrationRunner(gw gateway.Gateway, workers int) *ComicNarrationRunner {
	if workers < 1 {
		workers = 1
	}
	return &ComicNarrationRunner{gw: gw, workers: workers}
}

func (r *ComicNarrationRunner) Run(ctx context.Context, storyline domain.Storyline, params domain.GenerationParams) (domain.NarrationSet, error) {
	slog.InfoContext(ctx, "Generating scene narrations",
		"title", storyline.Title,
		"scenes", storyline.SceneCount(),
		"narration_style", params.NarrationStyle,
		"tone", params.Tone,
	)

	entries := make([]domain.NarrationEntry, len(storyline.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, scene := range storyline.Scenes {
		g.Go(func() error {
			raw, err := r.gw.GenerateText(gctx, gateway.TextRequest{
				Prompt:      buildNarrationPrompt(storyline.Title, scene, params),
				System:      narrationSystemPrompt,
				Temperature: narrationTemperature,
				MaxTokens:   narrationMaxTokens,
				TopP:        storyTopP,
			})
			if err != nil {
				return fmt.Errorf("narration generation for scene %d failed: %w", scene.Index, err)
			}
			entries[i] = domain.NarrationEntry{
				Index: scene.Index,
				Text:  cleanNarration(raw),
				Style: params.NarrationStyle,
				Tone:  params.Tone,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.NarrationSet{}, err
	}
	return domain.NarrationSet{Entries: entries}, nil
}
