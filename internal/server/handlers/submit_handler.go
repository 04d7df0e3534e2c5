package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/pipeline"
)

// リクエストボディの上限です。生成パラメータしか載らないため控えめにします。
const maxGenerateBodyBytes = 64 << 10

// generateResponse はタスク受付 API のレスポンスです。
type generateResponse struct {
	Status string                  `json:"status"`
	Topic  domain.Topic            `json:"topic"`
	Target string                  `json:"target_stage,omitempty"`
	Force  bool                    `json:"force,omitempty"`
	Params domain.GenerationParams `json:"params"`
}

// Generate は生成リクエストを検証し、Cloud Tasks キューへ投入します。
// 実行自体は OIDC 検証つきのワーカーエンドポイントが非同期に行います。
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var payload domain.GenerateTaskPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		respondError(w, r, http.StatusBadRequest, "request body is not valid JSON", err)
		return
	}

	topic := domain.NewTopic(payload.Topic, payload.Language)
	if topic.IsZero() {
		respondError(w, r, http.StatusBadRequest, "topic is required", nil)
		return
	}
	if _, err := pipeline.ParseTarget(payload.TargetStage); err != nil {
		respondError(w, r, http.StatusBadRequest, "target_stage is not a known stage", err)
		return
	}

	// ワーカー側と同じ正規化を先に適用し、受付レスポンスで実効値を返します。
	payload.Topic = topic.Title
	payload.Language = topic.Language
	payload.Params = payload.Params.Normalized()

	if err := h.enqueuer.Enqueue(r.Context(), payload); err != nil {
		respondError(w, r, http.StatusInternalServerError, "failed to schedule generation task", err)
		return
	}

	slog.InfoContext(r.Context(), "生成タスクを受け付けました",
		"topic", topic.Title,
		"language", topic.Language,
		"target", payload.TargetStage,
		"force", payload.Force,
	)

	respondJSON(w, http.StatusAccepted, generateResponse{
		Status: "queued",
		Topic:  topic,
		Target: payload.TargetStage,
		Force:  payload.Force,
		Params: payload.Params,
	})
}
