package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"wiki-comic-web/internal/domain"
)

// ComicExport はトピックの全ステージ成果物を一つにまとめた閲覧用の
// ドキュメントです。ストアに揃っているレコードだけを含むため、部分的な
// 進行状態でも構築できます。
type ComicExport struct {
	Topic       string                  `json:"topic"`
	Language    string                  `json:"language"`
	GeneratedAt time.Time               `json:"generated_at"`
	RunID       string                  `json:"run_id,omitempty"`
	Params      domain.GenerationParams `json:"params"`

	// Statuses はステージ名からレコードの状態へのマップです。空マップは
	// どのステージも未着手であることを意味します。
	Statuses map[string]domain.Status `json:"statuses"`

	Article    *domain.ArticleContent `json:"article,omitempty"`
	Candidates []string               `json:"candidates,omitempty"`
	Storyline  *domain.Storyline      `json:"storyline,omitempty"`
	Prompts    *domain.PromptSet      `json:"prompts,omitempty"`
	Narration  *domain.NarrationSet   `json:"narration,omitempty"`
	Images     *domain.ImageSet       `json:"images,omitempty"`
}

// BuildExport はストアのレコードからエクスポートを組み立てます。実行器は
// 呼ばず、現在のパラメータのフィンガープリントに一致するレコードだけを
// 集めます。欠けているステージは単に省かれます。
func (p *ComicPipeline) BuildExport(ctx context.Context, topic domain.Topic, params domain.GenerationParams) (*ComicExport, error) {
	params = params.Normalized()

	export := &ComicExport{
		Topic:       topic.Title,
		Language:    topic.Language,
		GeneratedAt: time.Now().UTC(),
		Params:      params,
		Statuses:    make(map[string]domain.Status, len(domain.StageOrder)),
	}

	for _, stage := range domain.StageOrder {
		fingerprint := params.FingerprintFor(stage, topic.Language)
		rec, ok, err := p.store.Get(ctx, topic, stage, fingerprint)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := export.attach(rec); err != nil {
			return nil, fmt.Errorf("failed to decode stored %s record: %w", rec.Stage, err)
		}
		export.Statuses[string(stage)] = rec.Status
	}
	return export, nil
}

// attach はレコードのペイロードをステージに応じたフィールドへ展開します。
func (x *ComicExport) attach(rec domain.StageRecord) error {
	switch rec.Stage {
	case domain.StageExtract:
		result, err := domain.DecodePayload[domain.ExtractResult](rec)
		if err != nil {
			return err
		}
		x.Article = result.Article
		x.Candidates = result.Candidates
	case domain.StageStory:
		storyline, err := domain.DecodePayload[domain.Storyline](rec)
		if err != nil {
			return err
		}
		x.Storyline = &storyline
	case domain.StagePrompts:
		prompts, err := domain.DecodePayload[domain.PromptSet](rec)
		if err != nil {
			return err
		}
		x.Prompts = &prompts
	case domain.StageNarration:
		narration, err := domain.DecodePayload[domain.NarrationSet](rec)
		if err != nil {
			return err
		}
		x.Narration = &narration
	case domain.StageImages:
		images, err := domain.DecodePayload[domain.ImageSet](rec)
		if err != nil {
			return err
		}
		x.Images = &images
	}
	return nil
}

// writeExport はエクスポートを JSON としてストレージへ書き出し、保存先の
// パスを返します。ファイル名はナレーションのフィンガープリントです。全
// 実効パラメータを含む上位集合なので、設定が一つでも違えば別ファイルに
// なります。
func (p *ComicPipeline) writeExport(ctx context.Context, topic domain.Topic, params domain.GenerationParams, runID string) (string, error) {
	export, err := p.BuildExport(ctx, topic, params)
	if err != nil {
		return "", err
	}
	export.RunID = runID

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal combined export: %w", err)
	}

	params = params.Normalized()
	name := params.FingerprintFor(domain.StageNarration, topic.Language) + ".json"
	return p.store.WriteObject(ctx, topic, path.Join("exports", name), data, "application/json")
}
