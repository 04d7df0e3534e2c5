package domain

import (
	"regexp"
	"strings"
)

// DefaultLanguage は言語コード未指定時に使用する Wikipedia の言語版です。
const DefaultLanguage = "en"

// invalidPathChars は、ストレージのオブジェクトパスとして安全でない文字の集合です。
var invalidPathChars = regexp.MustCompile(`[\\/:\*\?"<>\|]`)

var whitespaceRuns = regexp.MustCompile(`\s+`)

// Topic は記事タイトルと言語コードから成るパイプラインの処理単位です。
// 一度ランが開始された後は不変として扱います。
type Topic struct {
	// Title は正規化済みの記事タイトルです。(例: "Albert Einstein")
	Title string `json:"title"`
	// Language は Wikipedia の言語コードです。(例: "en", "ja")
	Language string `json:"language"`
}

// NewTopic はタイトルと言語コードを正規化して Topic を生成します。
// タイトルは前後の空白を除去し、連続する空白を単一スペースへ畳み込みます。
func NewTopic(title, language string) Topic {
	title = whitespaceRuns.ReplaceAllString(strings.TrimSpace(title), " ")
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = DefaultLanguage
	}
	return Topic{Title: title, Language: language}
}

// Key は永続化キーの接頭辞となる決定的なトピック識別子を返します。
// 同一トピックは常に同一のキーへ解決されるのだ。
func (t Topic) Key() string {
	safe := invalidPathChars.ReplaceAllString(t.Title, "_")
	safe = strings.ReplaceAll(safe, " ", "_")
	return t.Language + "/" + safe
}

// IsZero はタイトルが空かどうかを判定します。
func (t Topic) IsZero() bool {
	return t.Title == ""
}
