package app

import (
	"log/slog"
	"net/http"

	"wiki-comic-web/internal/adapters"
	"wiki-comic-web/internal/config"
	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/store"
	"wiki-comic-web/internal/wiki"

	"github.com/shouni/gcp-kit/tasks"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// Container はアプリケーションの依存関係（DIコンテナ）を保持します。
type Container struct {
	Config *config.Config

	// I/O and Storage
	RemoteIO *RemoteIO
	Store    store.StageStore

	// Asynchronous Task
	TaskEnqueuer *tasks.Enqueuer[domain.GenerateTaskPayload]

	// Content Source
	WikiClient *wiki.Client

	// External Adapters
	HTTPClient    httpkit.ClientInterface
	SlackNotifier adapters.SlackNotifier

	// ProviderHTTP は生成プロバイダと MediaWiki への外向き HTTP に
	// 共有される素のクライアントです。
	ProviderHTTP *http.Client
}

type RemoteIO struct {
	Factory remoteio.IOFactory
	Reader  remoteio.InputReader
	Writer  remoteio.OutputWriter
	Signer  remoteio.URLSigner
}

// Close は、Container が保持するすべての外部接続リソースを安全に解放します。
func (c *Container) Close() {
	if c.RemoteIO != nil && c.RemoteIO.Factory != nil {
		if err := c.RemoteIO.Factory.Close(); err != nil {
			slog.Error("failed to close IOFactory", "error", err)
		}
	}
	if c.TaskEnqueuer != nil {
		if err := c.TaskEnqueuer.Close(); err != nil {
			slog.Error("failed to close task enqueuer", "error", err)
		}
	}
}
