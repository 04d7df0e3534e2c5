package builder

import (
	"context"
	"fmt"
	"net/http"

	"wiki-comic-web/internal/adapters"
	"wiki-comic-web/internal/app"
	"wiki-comic-web/internal/config"
	"wiki-comic-web/internal/store"
	"wiki-comic-web/internal/wiki"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// BuildContainer は外部サービスとの接続を確立し、依存関係を組み立てます。
// ここで生成されるのはインフラ層のみで、パイプライン本体は BuildPipeline が
// 担当します。
func BuildContainer(ctx context.Context, cfg *config.Config) (*app.Container, error) {
	// 1. 基盤クライアントの初期化
	httpClient := httpkit.New(config.DefaultHTTPTimeout)
	providerHTTP := &http.Client{Timeout: config.DefaultHTTPTimeout}

	// 2. I/O インフラ (GCS等) の初期化
	rio, err := buildRemoteIO(ctx)
	if err != nil {
		return nil, err
	}

	// 3. 非同期タスクのエンキューア
	enqueuer, err := buildTaskEnqueuer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize task enqueuer: %w", err)
	}

	// 4. ステージレコードの永続化ストア
	stageStore := store.NewRemoteStore(cfg, rio.Reader, rio.Writer)

	// 5. コンテンツソース (MediaWiki)
	wikiClient := wiki.NewClient(wiki.Config{
		EndpointPattern: cfg.WikiEndpointPattern,
		UserAgent:       cfg.WikiUserAgent,
		MaxAttempts:     cfg.ProviderMaxAttempts,
		RetryBase:       cfg.ProviderRetryBase,
	}, providerHTTP)

	// 6. アダプターの初期化
	slack, err := adapters.NewSlackAdapter(httpClient, cfg.SlackWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Slack adapter: %w", err)
	}

	return &app.Container{
		Config:        cfg,
		RemoteIO:      rio,
		Store:         stageStore,
		TaskEnqueuer:  enqueuer,
		WikiClient:    wikiClient,
		HTTPClient:    httpClient,
		SlackNotifier: slack,
		ProviderHTTP:  providerHTTP,
	}, nil
}
