package builder

import (
	"wiki-comic-web/internal/app"
	"wiki-comic-web/internal/pipeline"
	"wiki-comic-web/internal/runner"
)

// BuildPipeline は、各ステージの実行器をビルドし、コーディネーターを
// 初期化して返します。
func BuildPipeline(c *app.Container) *pipeline.ComicPipeline {
	cfg := c.Config
	gw := buildGateway(cfg, c.ProviderHTTP)

	runners := pipeline.Runners{
		Extract:   runner.NewWikiExtractRunner(c.WikiClient, cfg.ContentMaxChars),
		Story:     runner.NewComicStoryRunner(gw),
		Prompts:   runner.NewComicPromptRunner(gw),
		Narration: runner.NewComicNarrationRunner(gw, cfg.SceneWorkers),
		Images:    runner.NewComicImageRunner(gw, cfg.SceneWorkers),
	}

	return pipeline.NewComicPipeline(c.Store, runners, c.SlackNotifier, cfg.ServiceURL)
}
