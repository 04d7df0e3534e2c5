// Package runner はコミック生成パイプラインの各ステージ実行器を実装します。
// 各実行器は上流ステージの成果物とパラメータを受け取り、プロバイダ
// ゲートウェイを介して一つのステージ結果を返す純粋な変換器なのだ。
// 永続化はこの層では行わず、パイプライン側に任せます。
package runner

// 文章生成の既定パラメータです。物語系は創造性を優先し、ナレーションは
// 語数制約を守らせるために温度を下げています。
const (
	storyTemperature = 0.7
	storyMaxTokens   = 4000
	storyTopP        = 0.9

	narrationTemperature = 0.3
	narrationMaxTokens   = 500

	narrationMinWords = 18
	narrationMaxWords = 28
)
