// Package handlers はコミック生成 API の HTTP ハンドラー群です。
// 記事検索、タスク投入、進行状態の確認、統合エクスポートの取得を
// JSON で提供します。
package handlers

import (
	"wiki-comic-web/internal/config"
	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/pipeline"
	"wiki-comic-web/internal/wiki"

	"github.com/shouni/gcp-kit/tasks"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

type Handler struct {
	cfg      *config.Config
	enqueuer *tasks.Enqueuer[domain.GenerateTaskPayload]
	pipeline *pipeline.ComicPipeline
	wiki     *wiki.Client
	signer   remoteio.URLSigner
}

// NewHandler は指定された依存関係で API ハンドラーを初期化します。
func NewHandler(
	cfg *config.Config,
	enqueuer *tasks.Enqueuer[domain.GenerateTaskPayload],
	pipe *pipeline.ComicPipeline,
	wikiClient *wiki.Client,
	signer remoteio.URLSigner,
) *Handler {
	return &Handler{
		cfg:      cfg,
		enqueuer: enqueuer,
		pipeline: pipe,
		wiki:     wikiClient,
		signer:   signer,
	}
}
