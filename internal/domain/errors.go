package domain

import (
	"errors"
	"fmt"
)

// パイプライン全体で共有するエラー分類です。プロバイダクライアントは
// HTTP ステータスを判定できる層でこれらへ分類し、上位層は errors.Is で
// 種別のみを扱います。
var (
	// ErrTransientProvider はタイムアウト・レート制限・5xx などの一時障害です。
	// ゲートウェイのリトライ対象となります。
	ErrTransientProvider = errors.New("transient provider error")

	// ErrProviderQuota は課金枠・クォータの枯渇です。画像系ではフォールバック
	// 切替のトリガー、テキスト系では致命エラーとして扱います。
	ErrProviderQuota = errors.New("provider quota exhausted")

	// ErrProviderAuth は認証・認可の失敗です。リトライしても回復しません。
	ErrProviderAuth = errors.New("provider authentication failed")

	// ErrMalformedGeneration はモデル出力が期待する区切り構造に一致しない
	// 契約違反です。該当ステージは失敗し、結果は永続化されません。
	ErrMalformedGeneration = errors.New("malformed generation output")

	// ErrSceneCountMismatch は生成された要素数がストーリーラインのシーン数と
	// 一致しない契約違反です。
	ErrSceneCountMismatch = errors.New("scene count mismatch")

	// ErrStoreUnavailable は永続化層へ到達できない状態です。ラン全体が
	// 停止します（サイレントなデータ損失を許しません）。
	ErrStoreUnavailable = errors.New("stage store unavailable")

	// ErrPageNotFound は指定タイトルの記事が存在しない状態です。
	ErrPageNotFound = errors.New("wikipedia page not found")
)

// DisambiguationError は曖昧さ回避ページに到達したことを表します。
// 呼び出し側は候補から正確なタイトルを選び直して再実行します。
type DisambiguationError struct {
	Title      string
	Candidates []string
}

func (e *DisambiguationError) Error() string {
	return fmt.Sprintf("title %q is ambiguous (%d candidates)", e.Title, len(e.Candidates))
}

// IsFatalStageError はコーディネーターが前進を停止すべきエラーかを判定します。
func IsFatalStageError(err error) bool {
	return errors.Is(err, ErrMalformedGeneration) ||
		errors.Is(err, ErrSceneCountMismatch) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrProviderAuth)
}
