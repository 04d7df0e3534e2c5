package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"wiki-comic-web/internal/domain"

	"github.com/go-chi/chi/v5"
)

// respondJSON は JSON レスポンスをバッファ経由で書き込みます。ヘッダー
// 送信後にエンコードが失敗して壊れたボディを返さないためです。
func respondJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("レスポンスのエンコードに失敗しました", "error", err)
		http.Error(w, `{"error":"response encoding failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", "error", err)
	}
}

// respondError は一貫したロギングと JSON エラーレスポンスを提供します。
func respondError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), msg, "error", err)
	} else {
		slog.WarnContext(r.Context(), msg, "error", err)
	}
	respondJSON(w, status, map[string]string{"error": msg})
}

// topicFromRequest はパスパラメータとクエリからトピックを復元します。
func topicFromRequest(r *http.Request) (domain.Topic, error) {
	title := chi.URLParam(r, "topic")
	if decoded, err := url.PathUnescape(title); err == nil {
		title = decoded
	}
	topic := domain.NewTopic(title, r.URL.Query().Get("lang"))
	if topic.IsZero() {
		return domain.Topic{}, fmt.Errorf("topic title is empty")
	}
	return topic, nil
}

// paramsFromQuery はクエリ文字列の生成パラメータを読み取ります。欠けて
// いる値は正規化時に既定値へ落ちるため、ここでは埋めません。
func paramsFromQuery(q url.Values) domain.GenerationParams {
	p := domain.GenerationParams{
		Length:         q.Get("length"),
		Style:          q.Get("style"),
		Audience:       q.Get("audience"),
		EducationLevel: q.Get("education_level"),
		NarrationStyle: q.Get("narration_style"),
		Tone:           q.Get("tone"),
	}
	if n, err := strconv.Atoi(q.Get("scene_count")); err == nil {
		p.SceneCount = n
	}
	return p
}

// languageFromQuery は言語コードを取り出し、未指定なら既定言語に落とします。
func languageFromQuery(q url.Values) string {
	lang := strings.ToLower(strings.TrimSpace(q.Get("lang")))
	if lang == "" {
		return domain.DefaultLanguage
	}
	return lang
}
