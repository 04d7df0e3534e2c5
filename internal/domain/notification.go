package domain

const CategoryNotAvailable = "N/A"

// NotificationRequest は Slack 等の通知コンポーネントで共有されるデータ構造です。
// ランの結果メタデータを通知先に伝えるために使用します。
type NotificationRequest struct {
	// SourceURL は、コミックの元になった Wikipedia 記事の URL です。
	SourceURL string `json:"source_url"`

	// OutputCategory は、出力の種別です。(例: "comic-output", "error-report")
	OutputCategory string `json:"output_category"`

	// TargetTitle は、対象トピックのタイトルです。
	TargetTitle string `json:"target_title"`

	// ExecutionMode は、実行された目標ステージと到達状態です。(例: "images / complete")
	ExecutionMode string `json:"execution_mode"`
}
