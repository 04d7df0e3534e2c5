package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// 生成パラメータの既定値です。未知の値はここへフォールバックします。
const (
	DefaultLength         = "medium"
	DefaultSceneCount     = 5
	DefaultStyle          = "manga"
	DefaultAudience       = "general"
	DefaultEducationLevel = "standard"
	DefaultNarrationStyle = "storytelling"
	DefaultTone           = "engaging"

	// MinSceneCount / MaxSceneCount はシーン数の許容範囲です。
	MinSceneCount = 1
	MaxSceneCount = 20
)

// 各語彙の有効値です。プロンプト側のガイダンス文はランナー層が保持します。
var (
	ValidLengths         = stringSet("short", "medium", "long")
	ValidStyles          = stringSet("manga", "superhero", "cartoon", "noir", "european", "indie", "retro")
	ValidAudiences       = stringSet("kids", "teens", "general", "adult")
	ValidEducationLevels = stringSet("basic", "standard", "advanced")
	ValidNarrationStyles = stringSet("dramatic", "educational", "storytelling", "documentary")
	ValidTones           = stringSet("engaging", "serious", "playful", "informative")
)

// GenerationParams は一回のラン全体を形づくる実効パラメータです。
// 各ステージはこの中から自ステージに影響する部分集合をフィンガープリントします。
type GenerationParams struct {
	Length         string `json:"length"`
	SceneCount     int    `json:"scene_count"`
	Style          string `json:"style"`
	Audience       string `json:"audience"`
	EducationLevel string `json:"education_level"`
	NarrationStyle string `json:"narration_style"`
	Tone           string `json:"tone"`
}

// Normalized は未設定・未知の値を既定値へ置き換えた新しいパラメータを返します。
func (p GenerationParams) Normalized() GenerationParams {
	p.Length = pick(p.Length, ValidLengths, DefaultLength)
	p.Style = pick(p.Style, ValidStyles, DefaultStyle)
	p.Audience = pick(p.Audience, ValidAudiences, DefaultAudience)
	p.EducationLevel = pick(p.EducationLevel, ValidEducationLevels, DefaultEducationLevel)
	p.NarrationStyle = pick(p.NarrationStyle, ValidNarrationStyles, DefaultNarrationStyle)
	p.Tone = pick(p.Tone, ValidTones, DefaultTone)

	if p.SceneCount == 0 {
		p.SceneCount = DefaultSceneCount
	}
	if p.SceneCount < MinSceneCount {
		p.SceneCount = MinSceneCount
	}
	if p.SceneCount > MaxSceneCount {
		p.SceneCount = MaxSceneCount
	}
	return p
}

// FingerprintFor は指定ステージの実効パラメータを決定的にハッシュ化します。
// 下流ステージのフィンガープリントは、派生元となる上流パラメータを含みます。
func (p GenerationParams) FingerprintFor(stage Stage, language string) string {
	type storyFields struct {
		Language       string `json:"language"`
		Length         string `json:"length"`
		SceneCount     int    `json:"scene_count"`
		Style          string `json:"style"`
		Audience       string `json:"audience"`
		EducationLevel string `json:"education_level"`
	}
	story := storyFields{
		Language:       language,
		Length:         p.Length,
		SceneCount:     p.SceneCount,
		Style:          p.Style,
		Audience:       p.Audience,
		EducationLevel: p.EducationLevel,
	}

	switch stage {
	case StageExtract:
		return fingerprint(struct {
			Language string `json:"language"`
		}{language})

	case StageStory, StagePrompts, StageImages:
		// プロンプトと画像はストーリーラインの内容から一意に派生します。
		return fingerprint(story)

	case StageNarration:
		return fingerprint(struct {
			storyFields
			NarrationStyle string `json:"narration_style"`
			Tone           string `json:"tone"`
		}{story, p.NarrationStyle, p.Tone})
	}

	return fingerprint(p)
}

func fingerprint(v any) string {
	// 構造体のフィールド順は固定なので、encoding/json の出力は決定的です。
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

func pick(v string, valid map[string]struct{}, def string) string {
	if _, ok := valid[v]; ok {
		return v
	}
	return def
}

func stringSet(values ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}
