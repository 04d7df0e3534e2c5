package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// SignedURLExpiration 生成されたコミックを確認する時間を考慮した有効期限
	SignedURLExpiration = 5 * time.Minute
	// DefaultTextModel ストーリー・プロンプト・ナレーション生成用モデル
	DefaultTextModel = "llama-3.1-8b-instant"
	// DefaultImageModel シーン画像生成用の第一候補モデル
	DefaultImageModel          = "gemini-2.5-flash-image"
	DefaultGroqBaseURL         = "https://api.groq.com/openai/v1"
	DefaultGeminiBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	DefaultPollinationsBaseURL = "https://image.pollinations.ai"
	// DefaultWikiEndpointPattern 言語コードを埋め込む MediaWiki API のパターン
	DefaultWikiEndpointPattern = "https://%s.wikipedia.org/w/api.php"
	DefaultWikiUserAgent       = "wiki-comic-web/1.0"
	// DefaultHTTPTimeout 画像生成 API の応答を考慮したタイムアウト
	DefaultHTTPTimeout = 60 * time.Second

	// プロバイダ呼び出しのリトライ方針です。基準遅延は試行ごとに倍加します。
	DefaultProviderMaxAttempts = 3
	DefaultProviderRetryBase   = 1 * time.Second
	DefaultProviderRetryMax    = 8 * time.Second

	// DefaultSceneWorkers シーン単位のファンアウト呼び出しの同時実行上限
	DefaultSceneWorkers = 4
	// DefaultContentMaxChars プロンプトへ渡す記事本文の最大文字数
	DefaultContentMaxChars = 15000

	// ステージレコードの読み取りキャッシュ設定です。
	DefaultRecordCacheTTL     = 5 * time.Minute
	DefaultRecordCacheCleanup = 15 * time.Minute

	DefaultShutdownTimeout = 15 * time.Second
)

// Config は環境変数から読み込まれたアプリケーションの全設定を保持します。
type Config struct {
	ServiceURL          string
	Port                string
	ProjectID           string
	LocationID          string
	QueueID             string
	TaskAudienceURL     string // OIDC トークンの検証に使用する Audience URL
	ServiceAccountEmail string
	GCSBucket           string // ステージレコードと画像を保存するバケット
	BaseOutputDir       string // バケット内のベースルート (例: "comics")
	SignedURLExpiration time.Duration
	SlackWebhookURL     string
	ShutdownTimeout     time.Duration

	// Text Provider (Groq)
	GroqAPIKey  string
	GroqModel   string
	GroqBaseURL string

	// Image Providers (Gemini primary / Pollinations fallback)
	GeminiAPIKey        string
	GeminiImageModel    string
	GeminiBaseURL       string
	PollinationsBaseURL string

	// Content Source (Wikipedia)
	WikiEndpointPattern string
	WikiUserAgent       string

	// Pipeline Tuning
	ProviderMaxAttempts int
	ProviderRetryBase   time.Duration
	ProviderRetryMax    time.Duration
	SceneWorkers        int
	ContentMaxChars     int

	// OAuth & Session Settings
	GoogleClientID     string
	GoogleClientSecret string
	// SessionSecret はセッションデータのHMAC署名用シークレットキーです。
	SessionSecret string
	// SessionEncryptKey はセッションデータのAES暗号化用シークレットキーです。 16, 24, 32 バイトのいずれかである必要があります。
	SessionEncryptKey string

	// Authz Settings
	AllowedEmails  []string
	AllowedDomains []string
}

// LoadConfig は環境変数から設定を読み込み、Config 構造体を生成します。
func LoadConfig() *Config {
	serviceURL := getEnv("SERVICE_URL", "http://localhost:8080")

	return &Config{
		ServiceURL:          serviceURL,
		Port:                getEnv("PORT", "8080"),
		ProjectID:           getEnv("GCP_PROJECT_ID", "your-gcp-project"),
		LocationID:          getEnv("GCP_LOCATION_ID", "asia-northeast1"),
		QueueID:             getEnv("CLOUD_TASKS_QUEUE_ID", "comic-queue"),
		TaskAudienceURL:     getEnv("TASK_AUDIENCE_URL", serviceURL),
		ServiceAccountEmail: getEnv("SERVICE_ACCOUNT_EMAIL", ""),
		GCSBucket:           getEnv("GCS_COMIC_BUCKET", ""),
		BaseOutputDir:       getEnv("BASE_OUTPUT_DIR", "comics"),
		SignedURLExpiration: SignedURLExpiration,
		SlackWebhookURL:     getEnv("SLACK_WEBHOOK_URL", ""),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),

		GroqAPIKey:  getEnv("GROQ_API_KEY", ""),
		GroqModel:   getEnv("GROQ_MODEL", DefaultTextModel),
		GroqBaseURL: getEnv("GROQ_BASE_URL", DefaultGroqBaseURL),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel:    getEnv("GEMINI_IMAGE_MODEL", DefaultImageModel),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", DefaultGeminiBaseURL),
		PollinationsBaseURL: getEnv("POLLINATIONS_BASE_URL", DefaultPollinationsBaseURL),

		WikiEndpointPattern: getEnv("WIKI_ENDPOINT_PATTERN", DefaultWikiEndpointPattern),
		WikiUserAgent:       getEnv("WIKI_USER_AGENT", DefaultWikiUserAgent),

		ProviderMaxAttempts: getEnvInt("PROVIDER_MAX_ATTEMPTS", DefaultProviderMaxAttempts),
		ProviderRetryBase:   getEnvDuration("PROVIDER_RETRY_BASE", DefaultProviderRetryBase),
		ProviderRetryMax:    getEnvDuration("PROVIDER_RETRY_MAX", DefaultProviderRetryMax),
		SceneWorkers:        getEnvInt("SCENE_WORKERS", DefaultSceneWorkers),
		ContentMaxChars:     getEnvInt("CONTENT_MAX_CHARS", DefaultContentMaxChars),

		// OAuth & Session
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionEncryptKey:  getEnv("SESSION_ENCRYPT_KEY", ""),

		AllowedEmails:  parseCommaSeparatedList(getEnv("ALLOWED_EMAILS", "")),
		AllowedDomains: parseCommaSeparatedList(getEnv("ALLOWED_DOMAINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func parseCommaSeparatedList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}
