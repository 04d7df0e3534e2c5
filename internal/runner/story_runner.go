package runner

import (
	"context"
	"fmt"
	"log/slog"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/gateway"
)

// StoryRunner はストーリーライン生成ステージのインターフェースです。
type StoryRunner interface {
	Run(ctx context.Context, article *domain.ArticleContent, params domain.GenerationParams) (domain.Storyline, error)
}

// ComicStoryRunner は一回の文章生成でシーン区切りのストーリーラインを
// 組み立てる実装です。応答が区切り規約に従わない場合は部分的な結果を
// でっち上げず、ErrMalformedGeneration で失敗させるのだ。
type ComicStoryRunner struct {
	gw gateway.Gateway
}

func NewComicStoryRunner(gw gateway.Gateway) *ComicStoryRunner {
	return &ComicStoryRunner{gw: gw}
}

func (r *ComicStoryRunner) Run(ctx context.Context, article *domain.ArticleContent, params domain.GenerationParams) (domain.Storyline, error) {
	slog.InfoContext(ctx, "Generating comic storyline",
		"title", article.Title,
		"scenes", params.SceneCount,
		"length", params.Length,
	)

	raw, err := r.gw.GenerateText(ctx, gateway.TextRequest{
		Prompt:      buildStorylinePrompt(article, params),
		System:      storylineSystemPrompt,
		Temperature: storyTemperature,
		MaxTokens:   storyMaxTokens,
		TopP:        storyTopP,
	})
	if err != nil {
		return domain.Storyline{}, fmt.Errorf("storyline generation for %q failed: %w", article.Title, err)
	}

	blocks, err := parseSceneBlocks(raw, params.SceneCount)
	if err != nil {
		return domain.Storyline{}, fmt.Errorf("storyline response violated the scene delimiter convention: %w: %w", domain.ErrMalformedGeneration, err)
	}

	scenes := make([]domain.Scene, 0, len(blocks))
	for _, block := range blocks {
		scenes = append(scenes, domain.Scene{
			Index: block.Index,
			Title: block.Title,
			Text:  block.Body,
		})
	}
	return domain.Storyline{Title: article.Title, Scenes: scenes}, nil
}
