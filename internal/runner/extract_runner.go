package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wiki-comic-web/internal/domain"
)

// ContentSource は記事コンテンツの取得元を抽象化します。
// wiki.Client がこのインターフェースを満たします。
type ContentSource interface {
	Fetch(ctx context.Context, title, language string) (*domain.ArticleContent, error)
}

// ExtractRunner は抽出ステージのインターフェースです。
type ExtractRunner interface {
	Run(ctx context.Context, topic domain.Topic) (domain.ExtractResult, error)
}

// WikiExtractRunner は Wikipedia を取得元とする抽出ステージの実装です。
// 曖昧さ回避ページに当たった場合はエラーにせず、候補一覧を結果として
// 返します。確定したタイトルで呼び直すのは利用者側の責務です。
type WikiExtractRunner struct {
	source   ContentSource
	maxChars int
}

func NewWikiExtractRunner(source ContentSource, maxChars int) *WikiExtractRunner {
	return &WikiExtractRunner{source: source, maxChars: maxChars}
}

func (r *WikiExtractRunner) Run(ctx context.Context, topic domain.Topic) (domain.ExtractResult, error) {
	article, err := r.source.Fetch(ctx, topic.Title, topic.Language)
	if err != nil {
		var disambig *domain.DisambiguationError
		if errors.As(err, &disambig) {
			slog.InfoContext(ctx, "Topic resolved to a disambiguation page",
				"title", disambig.Title,
				"candidates", len(disambig.Candidates),
			)
			return domain.ExtractResult{Candidates: disambig.Candidates}, nil
		}
		return domain.ExtractResult{}, fmt.Errorf("failed to fetch article for %q: %w", topic.Title, err)
	}

	originalLen := len(article.Content)
	article.Content = truncateContent(article.Content, r.maxChars)
	if len(article.Content) < originalLen {
		slog.InfoContext(ctx, "Article content truncated",
			"title", article.Title,
			"original_bytes", originalLen,
			"max_chars", r.maxChars,
		)
	}

	return domain.ExtractResult{Article: article}, nil
}
