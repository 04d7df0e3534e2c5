package builder

import (
	"net/http"

	"wiki-comic-web/internal/config"
	"wiki-comic-web/internal/gateway"
	"wiki-comic-web/internal/providers"
)

// buildGateway は、テキスト 1 系統と画像 2 系統（プライマリ + フォール
// バック）のプロバイダゲートウェイを初期化します。
func buildGateway(cfg *config.Config, httpClient *http.Client) gateway.Gateway {
	text := providers.NewGroqClient(providers.GroqConfig{
		APIKey:  cfg.GroqAPIKey,
		Model:   cfg.GroqModel,
		BaseURL: cfg.GroqBaseURL,
	}, httpClient)

	primary := providers.NewGeminiClient(providers.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiImageModel,
		BaseURL: cfg.GeminiBaseURL,
	}, httpClient)

	fallback := providers.NewPollinationsClient(providers.PollinationsConfig{
		BaseURL: cfg.PollinationsBaseURL,
	}, httpClient)

	retry := gateway.RetryConfig{
		MaxAttempts: cfg.ProviderMaxAttempts,
		BaseDelay:   cfg.ProviderRetryBase,
		MaxDelay:    cfg.ProviderRetryMax,
	}

	return gateway.NewProviderGateway(text, primary, fallback, retry, nil)
}
