package domain

// GenerateTaskPayload は、Cloud Tasks 経由でワーカーへ渡される生成指示です。
type GenerateTaskPayload struct {
	// Topic は Wikipedia の記事タイトルです。
	Topic string `json:"topic"`
	// Language は Wikipedia の言語コードです。空なら既定言語を使用します。
	Language string `json:"language"`
	// TargetStage は進行させる目標ステージ名です。空なら最終状態
	// （ナレーションと画像の両方）まで進めます。
	TargetStage string `json:"target_stage"`
	// Force が真の場合、経路上の全ステージを保存済みレコードを無視して
	// 再生成します。再生成結果は同一キーへ明示的に上書きされます。
	Force bool `json:"force"`
	// Params はラン全体の生成パラメータです。
	Params GenerationParams `json:"params"`
}
