package runner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// シーン境界の区切り規約です。行頭の "Scene N:" だけをシーンの開始と
// みなします。見出し記号や太字マーカーが付いていても許容します。
var sceneHeaderRe = regexp.MustCompile(`(?m)^[ \t]*(?:#+[ \t]*|\*\*)?Scene[ \t]+(\d+)[ \t]*:[ \t]*(.*)$`)

// 画像に文字を描かせないため、せりふ・キャプション類の行は取り除きます。
var (
	dialogLineRe = regexp.MustCompile(`(?im)^[ \t]*(?:Dialog|Dialogue|Narrator|Caption|Voiceover|Voice-over|Announcer)[ \t]*:.*$`)
	quotedLineRe = regexp.MustCompile(`(?m)^[ \t]*"[^"\n]*"[ \t]*$`)
	visualLineRe = regexp.MustCompile(`(?i)^Visual[ \t]*:[ \t]*`)
	styleLineRe  = regexp.MustCompile(`(?i)^Style[ \t]*:[ \t]*`)
)

type sceneBlock struct {
	Index int
	Title string
	Body  string
}

// parseSceneBlocks は生成結果を区切り規約に従って want 個のシーンへ
// 分割します。シーンが一つも見つからない、個数が合わない、番号が
// 1..want の並びになっていない場合はエラーを返します。判断に迷う
// 入力を推測で救済することはしません。
func parseSceneBlocks(raw string, want int) ([]sceneBlock, error) {
	matches := sceneHeaderRe.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no scene headers found in response")
	}
	if len(matches) != want {
		return nil, fmt.Errorf("expected %d scenes, found %d", want, len(matches))
	}

	blocks := make([]sceneBlock, 0, want)
	for i, m := range matches {
		index, err := strconv.Atoi(raw[m[2]:m[3]])
		if err != nil {
			return nil, fmt.Errorf("invalid scene number %q", raw[m[2]:m[3]])
		}
		if index != i+1 {
			return nil, fmt.Errorf("scene numbers out of order: expected scene %d, found scene %d", i+1, index)
		}

		bodyEnd := len(raw)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		title := strings.TrimSpace(strings.Trim(raw[m[4]:m[5]], "*# \t"))
		body := strings.TrimSpace(raw[m[1]:bodyEnd])
		if body == "" {
			return nil, fmt.Errorf("scene %d has no body text", index)
		}

		blocks = append(blocks, sceneBlock{Index: index, Title: title, Body: body})
	}
	return blocks, nil
}

// splitVisualStyle はシーンブロック本文から Visual 記述と Style タグを
// 取り出します。どちらかが欠けていても本文全体を Visual として扱い、
// Style は要求されたスタイルで補います。
func splitVisualStyle(body, fallbackStyle string) (visual, style string) {
	cleaned := stripTextArtifacts(body)

	var visualLines, styleLines []string
	section := "visual"
	for _, line := range strings.Split(cleaned, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case visualLineRe.MatchString(trimmed):
			section = "visual"
			trimmed = visualLineRe.ReplaceAllString(trimmed, "")
		case styleLineRe.MatchString(trimmed):
			section = "style"
			trimmed = styleLineRe.ReplaceAllString(trimmed, "")
		}
		if trimmed == "" {
			continue
		}
		if section == "style" {
			styleLines = append(styleLines, trimmed)
		} else {
			visualLines = append(visualLines, trimmed)
		}
	}

	visual = strings.TrimSpace(strings.Join(visualLines, " "))
	style = strings.TrimSpace(strings.Join(styleLines, " "))
	if style == "" {
		style = fallbackStyle + " style"
	}
	return visual, style
}

func stripTextArtifacts(s string) string {
	s = dialogLineRe.ReplaceAllString(s, "")
	s = quotedLineRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// cleanNarration は囲み引用符や前後の空白を取り除きます。
func cleanNarration(s string) string {
	t := strings.TrimSpace(s)
	t = strings.Trim(t, `"`)
	return strings.TrimSpace(t)
}

// truncateContent は記事本文をトークン上限対策として最大 max 文字
// (rune 単位) に切り詰めます。
func truncateContent(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
