package domain

// ArticleContent は抽出ステージが正規化した記事本文とメタデータです。
// ストーリーラインステージへの入力であり、生成後は変更されません。
type ArticleContent struct {
	// Title は Wikipedia 上の正準タイトルです。リクエストのタイトルと
	// リダイレクト解決などで異なる場合があります。
	Title    string `json:"title"`
	Language string `json:"language"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	// Content はプロンプト向けに切り詰め済みの本文テキストです。
	Content    string   `json:"content"`
	Categories []string `json:"categories,omitempty"`
}

// ExtractResult は抽出ステージの成果物です。曖昧さ回避ページに当たった場合は
// Article の代わりに Candidates へ候補タイトルの一覧が入ります。
type ExtractResult struct {
	Article    *ArticleContent `json:"article,omitempty"`
	Candidates []string        `json:"candidates,omitempty"`
}

// Disambiguous は結果が曖昧さ回避の候補一覧かどうかを返します。
func (r ExtractResult) Disambiguous() bool {
	return r.Article == nil && len(r.Candidates) > 0
}

// Scene はストーリーラインを構成する 1 シーンです。Index は 1 始まりで、
// 後続のプロンプト・ナレーション・画像すべてが同じ番号体系を共有します。
type Scene struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Storyline はシーン列に分割済みのコミックの筋書きです。
type Storyline struct {
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

// SceneCount はシーン数 N を返します。N はストーリーライン生成時に確定します。
func (s Storyline) SceneCount() int {
	return len(s.Scenes)
}

// ScenePrompt は 1 シーン分の画像生成用ビジュアル記述です。
type ScenePrompt struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Visual string `json:"visual"`
	Style  string `json:"style"`
}

// PromptSet はシーンプロンプトステージの成果物です。
type PromptSet struct {
	Style   string        `json:"style"`
	Prompts []ScenePrompt `json:"prompts"`
}

// NarrationEntry は 1 シーン分のナレーション文です。
type NarrationEntry struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Style string `json:"style"`
	Tone  string `json:"tone"`
}

// NarrationSet はナレーションステージの成果物です。
type NarrationSet struct {
	Entries []NarrationEntry `json:"entries"`
}

// ImageArtifact は 1 シーン分の画像成果物への参照です。全プロバイダが
// 失敗したシーンは Placeholder が真となり、どの実画像とも紐づきません。
type ImageArtifact struct {
	Index int `json:"index"`
	// Provider はこの画像を実際に生成したバックエンド名です。
	Provider    string `json:"provider"`
	Placeholder bool   `json:"placeholder"`
	MIMEType    string `json:"mime_type"`
	// ObjectPath はストレージ上の画像オブジェクトのパスです。
	ObjectPath string `json:"object_path"`
}

// ImageSet は画像ステージの成果物です。
type ImageSet struct {
	Artifacts []ImageArtifact `json:"artifacts"`
}

// PlaceholderCount はプレースホルダで代替されたシーン数を返します。
func (s ImageSet) PlaceholderCount() int {
	n := 0
	for _, a := range s.Artifacts {
		if a.Placeholder {
			n++
		}
	}
	return n
}
