package runner

import (
	"context"
	"fmt"
	"log/slog"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/gateway"
)

// PromptRunner はシーンプロンプト生成ステージのインターフェースです。
type PromptRunner interface {
	Run(ctx context.Context, storyline domain.Storyline, params domain.GenerationParams) (domain.PromptSet, error)
}

// ComicPromptRunner は全シーン分のビジュアルプロンプトを一括生成する
// 実装です。応答のシーン数がストーリーラインと一致しない場合は
// ErrSceneCountMismatch で失敗させ、数合わせの穴埋めは行いません。
type ComicPromptRunner struct {
	gw gateway.Gateway
}

func NewComicPromptRunner(gw gateway.Gateway) *ComicPromptRunner {
	return &ComicPromptRunner{gw: gw}
}

func (r *ComicPromptRunner) Run(ctx context.Context, storyline domain.Storyline, params domain.GenerationParams) (domain.PromptSet, error) {
	want := storyline.SceneCount()
	slog.InfoContext(ctx, "Generating scene prompts",
		"title", storyline.Title,
		"scenes", want,
		"style", params.Style,
	)

	raw, err := r.gw.GenerateText(ctx, gateway.TextRequest{
		Prompt:      buildScenePromptsPrompt(storyline, params),
		System:      scenePromptSystemPrompt,
		Temperature: storyTemperature,
		MaxTokens:   storyMaxTokens,
		TopP:        storyTopP,
	})
	if err != nil {
		return domain.PromptSet{}, fmt.Errorf("scene prompt generation for %q failed: %w", storyline.Title, err)
	}

	blocks, err := parseSceneBlocks(raw, want)
	if err != nil {
		return domain.PromptSet{}, fmt.Errorf("scene prompt response did not match the storyline scene count: %w: %w", domain.ErrSceneCountMismatch, err)
	}

	prompts := make([]domain.ScenePrompt, 0, len(blocks))
	for _, block := range blocks {
		visual, style := splitVisualStyle(block.Body, params.Style)
		if visual == "" {
			return domain.PromptSet{}, fmt.Errorf("scene %d prompt has no visual description: %w", block.Index, domain.ErrMalformedGeneration)
		}
		prompts = append(prompts, domain.ScenePrompt{
			Index:  block.Index,
			Title:  block.Title,
			Visual: visual,
			Style:  style,
		})
	}
	return domain.PromptSet{Style: params.Style, Prompts: prompts}, nil
}
