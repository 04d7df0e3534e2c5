package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"wiki-comic-web/internal/domain"
)

const (
	defaultErrorTitle      = "コミック生成エラー"
	errorReportCategory    = "error-report"
	comicOutputCategory    = "comic-output"
	disambiguationCategory = "disambiguation-report"
)

// notifyError はラン失敗時に Slack 通知を行います。通知の失敗はログに
// 残すだけで、呼び出し元へ返すエラー（Cloud Tasks の再試行対象）は
// ラン自体の失敗のままにします。
func (p *ComicPipeline) notifyError(ctx context.Context, topic domain.Topic, report *RunReport, opErr error) {
	if p.notifier == nil {
		return
	}

	reqTitle := defaultErrorTitle
	if topic.Title != "" {
		reqTitle = topic.Title
	}
	mode := "advance"
	if report != nil {
		mode = report.Target + " / " + string(report.State)
		if report.FailedStage != "" {
			mode = report.Target + " / failed at " + string(report.FailedStage)
		}
	}

	req := domain.NotificationRequest{
		SourceURL:      wikipediaURL(topic),
		OutputCategory: errorReportCategory,
		TargetTitle:    reqTitle,
		ExecutionMode:  mode,
	}

	if err := p.notifier.NotifyError(ctx, opErr, req); err != nil {
		slog.ErrorContext(ctx, "Failed to send error notification", "topic", topic.Title, "error", err)
	}
}

// notifySuccess はラン完了時（曖昧さ回避による停止を含む）に Slack 通知を
// 行います。
func (p *ComicPipeline) notifySuccess(ctx context.Context, topic domain.Topic, report *RunReport) {
	if p.notifier == nil || report == nil {
		return
	}

	category := comicOutputCategory
	if len(report.Candidates) > 0 {
		category = disambiguationCategory
	}

	storageURI := domain.CategoryNotAvailable
	if report.ExportPath != "" {
		storageURI = report.ExportPath
	}

	req := domain.NotificationRequest{
		SourceURL:      wikipediaURL(topic),
		OutputCategory: category,
		TargetTitle:    topic.Title,
		ExecutionMode:  report.Target + " / " + string(report.State),
	}

	if err := p.notifier.Notify(ctx, p.statusURL(topic), storageURI, req); err != nil {
		slog.ErrorContext(ctx, "Failed to send completion notification", "topic", topic.Title, "error", err)
	}
}

// statusURL はトピックの状態確認 API への公開 URL を組み立てます。
func (p *ComicPipeline) statusURL(topic domain.Topic) string {
	if p.serviceURL == "" {
		return domain.CategoryNotAvailable
	}
	base := strings.TrimRight(p.serviceURL, "/")
	return base + "/api/topics/" + url.PathEscape(topic.Title) +
		"/status?lang=" + url.QueryEscape(topic.Language)
}

// wikipediaURL は記事ページの URL を言語別ドメインで組み立てます。
// Wikipedia の記事パスは空白をアンダースコアに置き換える慣習です。
func wikipediaURL(topic domain.Topic) string {
	title := strings.ReplaceAll(topic.Title, " ", "_")
	return "https://" + topic.Language + ".wikipedia.org/wiki/" + url.PathEscape(title)
}

// extensionFor は MIME タイプから保存用の拡張子を決めます。未知のタイプは
// 汎用の "img" に落とします。
func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "img"
	}
}
