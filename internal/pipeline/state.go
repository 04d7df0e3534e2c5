package pipeline

import (
	"context"

	"wiki-comic-web/internal/domain"
)

// StateOf は現在のパラメータに対応するフィンガープリントでストアを
// 照会し、トピックの進行状態と揃っているレコード一覧を返します。
// 実行器は呼ばないため、状態確認 API から安全に利用できます。
func (p *ComicPipeline) StateOf(ctx context.Context, topic domain.Topic, params domain.GenerationParams) (domain.RunState, []domain.StageRecord, error) {
	params = params.Normalized()

	present := make(map[domain.Stage]bool, len(domain.StageOrder))
	records := make([]domain.StageRecord, 0, len(domain.StageOrder))
	for _, stage := range domain.StageOrder {
		fingerprint := params.FingerprintFor(stage, topic.Language)
		rec, ok, err := p.store.Get(ctx, topic, stage, fingerprint)
		if err != nil {
			return "", nil, err
		}
		if ok {
			present[stage] = true
			records = append(records, rec)
		}
	}
	return stateFrom(present), records, nil
}

// stateFrom は揃っているステージ集合から進行状態を導出します。
// 末端のナレーションと画像は独立しているため、片方だけ揃った状態も
// 区別して返します。
func stateFrom(present map[domain.Stage]bool) domain.RunState {
	switch {
	case present[domain.StageNarration] && present[domain.StageImages]:
		return domain.StateComplete
	case present[domain.StageImages]:
		return domain.StateImagesGenerated
	case present[domain.StageNarration]:
		return domain.StateNarrationGenerated
	case present[domain.StagePrompts]:
		return domain.StatePromptsGenerated
	case present[domain.StageStory]:
		return domain.StateStoryGenerated
	case present[domain.StageExtract]:
		return domain.StateExtracted
	default:
		return domain.StateNotStarted
	}
}
