package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"wiki-comic-web/internal/wiki"
)

// searchResponse は記事検索 API のレスポンスです。
type searchResponse struct {
	Query    string              `json:"query"`
	Language string              `json:"language"`
	Results  []wiki.SearchResult `json:"results"`
}

// Search は Wikipedia の記事を全文検索し、候補タイトルの一覧を返します。
// 曖昧さ回避で止まった後のタイトル選び直しにも使います。
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, r, http.StatusBadRequest, "query parameter q is required", nil)
		return
	}

	lang := languageFromQuery(r.URL.Query())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.wiki.Search(r.Context(), query, lang, limit)
	if err != nil {
		respondError(w, r, http.StatusBadGateway, "article search failed", err)
		return
	}

	slog.InfoContext(r.Context(), "記事検索を実行しました",
		"query", query, "language", lang, "hits", len(results))

	respondJSON(w, http.StatusOK, searchResponse{
		Query:    query,
		Language: lang,
		Results:  results,
	})
}
