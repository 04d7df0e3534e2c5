package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"wiki-comic-web/internal/domain"
)

// stageStatus はレコードのメタデータ部分です。ペイロード本体はエクスポート
// API が返します。
type stageStatus struct {
	Stage       domain.Stage  `json:"stage"`
	Fingerprint string        `json:"fingerprint"`
	Status      domain.Status `json:"status"`
	RunID       string        `json:"run_id"`
	CreatedAt   time.Time     `json:"created_at"`
}

// statusResponse は進行状態 API のレスポンスです。
type statusResponse struct {
	Topic      domain.Topic            `json:"topic"`
	Params     domain.GenerationParams `json:"params"`
	State      domain.RunState         `json:"state"`
	Stages     []stageStatus           `json:"stages"`
	Candidates []string                `json:"candidates,omitempty"`
}

// Status は保存済みレコードからトピックの進行状態を導出して返します。
// 実行器は呼ばないため、進行中のランにも安全に使えます。
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	topic, err := topicFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "topic is required", err)
		return
	}
	params := paramsFromQuery(r.URL.Query()).Normalized()

	state, records, err := h.pipeline.StateOf(r.Context(), topic, params)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			respondError(w, r, http.StatusServiceUnavailable, "stage store is unreachable", err)
			return
		}
		respondError(w, r, http.StatusInternalServerError, "failed to derive topic state", err)
		return
	}

	stages := make([]stageStatus, 0, len(records))
	var candidates []string
	for _, rec := range records {
		stages = append(stages, stageStatus{
			Stage:       rec.Stage,
			Fingerprint: rec.Fingerprint,
			Status:      rec.Status,
			RunID:       rec.RunID,
			CreatedAt:   rec.CreatedAt,
		})

		// 曖昧さ回避で止まった抽出レコードからは候補一覧を掘り出します。
		if rec.Stage == domain.StageExtract && rec.Status == domain.StatusPartial {
			result, err := domain.DecodePayload[domain.ExtractResult](rec)
			if err != nil {
				slog.WarnContext(r.Context(), "抽出レコードの復元に失敗しました",
					"topic", topic.Title, "error", err)
				continue
			}
			candidates = result.Candidates
		}
	}

	respondJSON(w, http.StatusOK, statusResponse{
		Topic:      topic,
		Params:     params,
		State:      state,
		Stages:     stages,
		Candidates: candidates,
	})
}
