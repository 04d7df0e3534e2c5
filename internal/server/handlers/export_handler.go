package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"wiki-comic-web/internal/config"
	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/pipeline"
)

// exportResponse は統合エクスポートに画像の署名付き URL を添えたものです。
// マップのキーはシーン番号です。
type exportResponse struct {
	*pipeline.ComicExport
	ImageURLs map[string]string `json:"image_urls,omitempty"`
}

// Export はトピックの全ステージ成果物を一つのドキュメントとして返します。
// 揃っていないステージは省かれ、何も揃っていなければ 404 になります。
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	topic, err := topicFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "topic is required", err)
		return
	}
	params := paramsFromQuery(r.URL.Query())

	export, err := h.pipeline.BuildExport(r.Context(), topic, params)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			respondError(w, r, http.StatusServiceUnavailable, "stage store is unreachable", err)
			return
		}
		respondError(w, r, http.StatusInternalServerError, "failed to build export", err)
		return
	}
	if len(export.Statuses) == 0 {
		respondError(w, r, http.StatusNotFound, "no stored stages for this topic", nil)
		return
	}

	// 署名付き URL の有効期限に合わせたキャッシュ制御を行います。
	cacheAgeSec := int64(config.SignedURLExpiration.Seconds())
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", cacheAgeSec))

	respondJSON(w, http.StatusOK, exportResponse{
		ComicExport: export,
		ImageURLs:   h.signedImageURLs(r.Context(), export),
	})
}

// signedImageURLs は保存済みのシーン画像へ一時的な署名付き URL を生成
// します。プレースホルダなどオブジェクトを持たないシーンは飛ばし、個別の
// 失敗はログに残して続行します。
func (h *Handler) signedImageURLs(ctx context.Context, export *pipeline.ComicExport) map[string]string {
	if h.signer == nil || export.Images == nil {
		return nil
	}

	urls := make(map[string]string, len(export.Images.Artifacts))
	for _, a := range export.Images.Artifacts {
		if a.ObjectPath == "" {
			continue
		}
		u, err := h.signer.GenerateSignedURL(ctx, a.ObjectPath, http.MethodGet, config.SignedURLExpiration)
		if err != nil {
			slog.ErrorContext(ctx, "署名付きURL生成失敗", "path", a.ObjectPath, "error", err)
			continue
		}
		urls[strconv.Itoa(a.Index)] = u
	}
	if len(urls) == 0 {
		return nil
	}
	return urls
}
