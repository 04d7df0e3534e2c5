// Package providers は外部生成サービスごとの HTTP クライアントを実装します。
// 各クライアントは gateway のバックエンド契約を満たし、HTTP ステータスを
// ドメインのエラー分類へ対応付けます。
package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"wiki-comic-web/internal/domain"
)

const maxErrorBodyChars = 300

var quotaMarkers = []string{"resource_exhausted", "insufficient_quota", "quota"}

// classifyStatus は非 2xx レスポンスをドメインのエラー分類へ変換します。
// レート制限の 429 は一時的エラーとして扱いますが、本文にクォータ超過の
// 印が含まれる場合はクォータエラーに格上げします。
func classifyStatus(provider string, status int, body []byte) error {
	snippet := bodySnippet(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s rejected credentials (status %d): %w: %s", provider, status, domain.ErrProviderAuth, snippet)
	case status == http.StatusPaymentRequired:
		return fmt.Errorf("%s reported quota exhaustion (status %d): %w: %s", provider, status, domain.ErrProviderQuota, snippet)
	case status == http.StatusTooManyRequests:
		if hasQuotaMarker(snippet) {
			return fmt.Errorf("%s reported quota exhaustion (status %d): %w: %s", provider, status, domain.ErrProviderQuota, snippet)
		}
		return fmt.Errorf("%s rate limited (status %d): %w: %s", provider, status, domain.ErrTransientProvider, snippet)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%s server error (status %d): %w: %s", provider, status, domain.ErrTransientProvider, snippet)
	default:
		return fmt.Errorf("%s request rejected (status %d): %s", provider, status, snippet)
	}
}

// wrapTransport は http.Client.Do の失敗を分類します。呼び出し元の
// コンテキストが打ち切られている場合はその理由をそのまま伝播し、
// それ以外のネットワーク障害は一時的エラーとして扱います。
func wrapTransport(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s request aborted: %w", provider, ctxErr)
	}
	return fmt.Errorf("%s request failed: %w: %v", provider, domain.ErrTransientProvider, err)
}

func hasQuotaMarker(body string) bool {
	lowered := strings.ToLower(body)
	for _, marker := range quotaMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyChars {
		s = s[:maxErrorBodyChars] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
