package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage はパイプラインの各段階を表す名前です。
type Stage string

const (
	StageExtract   Stage = "extract"
	StageStory     Stage = "story"
	StagePrompts   Stage = "prompts"
	StageNarration Stage = "narration"
	StageImages    Stage = "images"
)

// StageOrder はエクスポート時の連結順を定めるパイプライン順序です。
var StageOrder = []Stage{StageExtract, StageStory, StagePrompts, StageNarration, StageImages}

// ParseStage はステージ名文字列を検証して Stage に変換します。
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageExtract, StageStory, StagePrompts, StageNarration, StageImages:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage: %q", s)
}

// Status はステージ成果物の完成度です。
type Status string

const (
	// StatusOK は全要素が実プロバイダ出力で揃った状態です。
	StatusOK Status = "ok"
	// StatusPartial は一部がプレースホルダ等で代替された状態です。
	StatusPartial Status = "partial"
	// StatusFailed は成果物が利用不能な状態です。
	StatusFailed Status = "failed"
)

// RunState はトピックに対するパイプラインの進行位置です。
type RunState string

const (
	StateNotStarted         RunState = "not_started"
	StateExtracted          RunState = "extracted"
	StateStoryGenerated     RunState = "story_generated"
	StatePromptsGenerated   RunState = "prompts_generated"
	StateNarrationGenerated RunState = "narration_generated"
	StateImagesGenerated    RunState = "images_generated"
	StateComplete           RunState = "complete"
	StateFailed             RunState = "failed"
)

// StageRecord はステージ成果物を包む永続化エンベロープです。
// (topic, stage, fingerprint) の組が参照キーとなり、一度書かれたレコードは
// 明示的な上書き以外では変更されません。
type StageRecord struct {
	Topic       Topic           `json:"topic"`
	Stage       Stage           `json:"stage"`
	Fingerprint string          `json:"fingerprint"`
	Status      Status          `json:"status"`
	RunID       string          `json:"run_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

// NewStageRecord はペイロードを JSON 化してレコードを組み立てます。
func NewStageRecord(topic Topic, stage Stage, fingerprint, runID string, status Status, payload any) (StageRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return StageRecord{}, fmt.Errorf("failed to marshal %s payload: %w", stage, err)
	}
	return StageRecord{
		Topic:       topic,
		Stage:       stage,
		Fingerprint: fingerprint,
		Status:      status,
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		Payload:     data,
	}, nil
}

// DecodePayload はレコードのペイロードを指定の型へ復元します。
func DecodePayload[T any](rec StageRecord) (T, error) {
	var v T
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s payload: %w", rec.Stage, err)
	}
	return v, nil
}
