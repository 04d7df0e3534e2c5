package runner

import (
	"fmt"
	"strings"

	"wiki-comic-web/internal/domain"
)

const (
	storylineSystemPrompt   = "You are an expert comic book writer and historian who creates engaging, accurate, and visually compelling storylines based on real information."
	scenePromptSystemPrompt = "You are an expert comic book artist and writer who creates detailed, engaging scene descriptions for comic panels with consistent characters and storylines."
	narrationSystemPrompt   = "You are an expert narrator and storyteller who creates compelling, engaging narration for visual media. You excel at creating voice-over scripts that enhance storytelling and provide meaningful context."
)

// 物語の長さ指定と目標語数の対応です。
var lengthWordCounts = map[string]int{
	"short":  500,
	"medium": 1000,
	"long":   2000,
}

var styleGuidance = map[string]string{
	"manga":     "Use manga-specific visual elements like speed lines, expressive emotions, and distinctive panel layouts. Character eyes should be larger, with detailed hair and simplified facial features. Use black and white with screen tones for shading.",
	"superhero": "Use bold colors, dynamic poses with exaggerated anatomy, dramatic lighting, and action-oriented compositions. Include detailed musculature and costumes with strong outlines and saturated colors.",
	"cartoon":   "Use simplified, exaggerated character features with bold outlines. Employ bright colors, expressive faces, and playful physics. Include visual effects like motion lines and impact stars.",
	"noir":      "Use high-contrast black and white or muted colors with dramatic shadows. Feature low-key lighting, rain effects, and urban settings. Characters should have realistic proportions with hardboiled expressions.",
	"european":  "Use detailed backgrounds with architectural precision and clear line work. Character designs should be semi-realistic with consistent proportions. Panel layouts should be regular and methodical.",
	"indie":     "Use unconventional art styles with personal flair. Panel layouts can be experimental and fluid. Line work may be sketchy or deliberately unpolished. Colors can be watercolor-like or limited palette.",
	"retro":     "Use halftone dots for shading, slightly faded colors, and classic panel compositions. Character designs should reflect the comics of the 50s-70s with simplified but distinctive features.",
}

var audienceGuidance = map[string]string{
	"kids":    "Use simple, clear vocabulary and straightforward concepts. Avoid complex themes, frightening imagery, or adult situations. Characters should be expressive and appealing. Educational content should be presented in an engaging, accessible way.",
	"teens":   "Use relatable language and themes important to adolescents. Include more nuanced emotional content and moderate complexity. Educational aspects can challenge readers while remaining accessible.",
	"general": "Balance accessibility with depth. Include some complexity in both themes and visuals while remaining broadly appropriate. Educational content should be informative without being overly technical.",
	"adult":   "Include sophisticated themes, complex characterizations, and nuanced storytelling. Educational content can be presented with full complexity and technical detail where appropriate.",
}

var educationGuidance = map[string]string{
	"basic":    "Use simple vocabulary, clear explanations, and focus on foundational concepts. Break down complex ideas into easily digestible components with examples.",
	"standard": "Use moderate vocabulary and present concepts with appropriate depth for general understanding. Balance educational content with narrative engagement.",
	"advanced": "Use field-specific terminology where appropriate and explore concepts in depth. Present nuanced details and sophisticated analysis of the subject matter.",
}

var narrationStyleGuidance = map[string]string{
	"dramatic":     "Use dramatic language with vivid descriptions, emotional depth, and cinematic pacing. Build tension and excitement.",
	"educational":  "Use clear, informative language that explains concepts and provides context. Focus on learning and understanding.",
	"storytelling": "Use traditional storytelling techniques with engaging narrative flow, character development, and plot progression.",
	"documentary":  "Use factual, objective language with historical context and detailed explanations. Present information professionally.",
}

var toneGuidance = map[string]string{
	"engaging":    "Use an enthusiastic, captivating voice that draws the audience in and maintains their interest.",
	"serious":     "Use a respectful, solemn tone appropriate for important historical or serious topics.",
	"playful":     "Use a light, fun tone that makes the content enjoyable and accessible, especially for younger audiences.",
	"informative": "Use a clear, professional tone that focuses on delivering information effectively.",
}

func guidanceFor(m map[string]string, key, fallback string) string {
	if g, ok := m[strings.ToLower(key)]; ok {
		return g
	}
	return fallback
}

func buildStorylinePrompt(article *domain.ArticleContent, params domain.GenerationParams) string {
	words, ok := lengthWordCounts[params.Length]
	if !ok {
		words = lengthWordCounts[domain.DefaultLength]
	}
	audience := guidanceFor(audienceGuidance, params.Audience, "Create content appropriate for a general audience with balanced accessibility and depth.")
	education := guidanceFor(educationGuidance, params.EducationLevel, "Present educational content with balanced complexity suitable for interested general readers.")

	return fmt.Sprintf(`Create an engaging and detailed comic book storyline based on the following Wikipedia article about "%s".

The storyline should:
1. Be approximately %d words in total
2. Capture the most important facts and details from the article
3. Have a clear beginning, middle, and end across the scenes
4. Include vivid descriptions of key moments suitable for comic panels
5. Feature compelling characters based on real figures from the topic
6. Balance educational content with entertainment value

IMPORTANT PARAMETERS TO FOLLOW:
- Audience: %s - %s
- Education Level: %s - %s

Here is the Wikipedia content to base your storyline on:

%s

FORMAT YOUR RESPONSE AS EXACTLY %d SCENES:

Scene 1: [Brief scene title]
[Narrative text for the scene]

Scene 2: [Brief scene title]
[Narrative text for the scene]

PROVIDE EXACTLY %d SCENES IN SEQUENTIAL ORDER. EACH SCENE MUST START WITH "Scene [number]:" ON ITS OWN LINE AND MUST HAVE NARRATIVE TEXT BELOW IT. DO NOT ADD ANY OTHER SECTIONS.`,
		article.Title, words,
		params.Audience, audience,
		params.EducationLevel, education,
		article.Content,
		params.SceneCount, params.SceneCount)
}

func buildScenePromptsPrompt(storyline domain.Storyline, params domain.GenerationParams) string {
	style := guidanceFor(styleGuidance, params.Style,
		fmt.Sprintf("Incorporate distinctive visual elements of %s style consistently in all panels.", params.Style))
	audience := guidanceFor(audienceGuidance, params.Audience, "Create content appropriate for a general audience with balanced accessibility and depth.")
	education := guidanceFor(educationGuidance, params.EducationLevel, "Present educational content with balanced complexity suitable for interested general readers.")

	var scenes strings.Builder
	for _, scene := range storyline.Scenes {
		fmt.Fprintf(&scenes, "Scene %d: %s\n%s\n\n", scene.Index, scene.Title, scene.Text)
	}

	return fmt.Sprintf(`Based on the following comic storyline about "%s", create exactly %d sequential scene prompts for generating comic panels.

Each scene prompt MUST:
1. Follow a logical narrative sequence from beginning to end
2. Include DETAILED visual descriptions of the scene, setting, characters, and actions
3. Include ZERO text elements in the image (no dialogue, no captions, no narrator text)
4. Maintain character consistency throughout all scenes
5. Be self-contained but connect logically to the previous and next scenes
6. Incorporate specific visual elements of the %s comic art style

IMPORTANT PARAMETERS TO FOLLOW:
- Comic Style: %s - %s
- Audience: %s - %s
- Education Level: %s - %s

Here is the comic storyline to convert into scene prompts:

%s

FORMAT EACH SCENE PROMPT AS:
Scene [number]: [Brief scene title]
Visual: [Extremely detailed visual description of the scene including setting, characters, positions, expressions, and actions. Do NOT include any text, speech, captions, or on-screen words. Leave clean space where speech bubbles could go, but render no text.]
Style: %s style with [specific stylistic elements to emphasize].

PROVIDE EXACTLY %d SCENES IN SEQUENTIAL ORDER.
SCENE DESCRIPTIONS MUST BE EXTREMELY DETAILED to ensure the image generator can create accurate images.`,
		storyline.Title, params.SceneCount,
		params.Style,
		params.Style, style,
		params.Audience, audience,
		params.EducationLevel, education,
		strings.TrimSpace(scenes.String()),
		params.Style,
		params.SceneCount)
}

func buildNarrationPrompt(storyTitle string, scene domain.Scene, params domain.GenerationParams) string {
	style := guidanceFor(narrationStyleGuidance, params.NarrationStyle, "Use engaging and clear language to describe the scene.")
	tone := guidanceFor(toneGuidance, params.Tone, "Use a clear and engaging tone.")

	return fmt.Sprintf(`Create a concise, captivating voice-over for scene %d of "%s". Keep it short like a social media reel narration.

STRICT REQUIREMENTS:
- EXACTLY 2 sentences
- TOTAL %d-%d words
- Punchy, cinematic, and engaging
- Complement the visuals without repeating them verbatim
- Ground strictly in the provided scene description
- Do NOT introduce facts, characters, or events not present in the source
- If a detail is uncertain, omit it rather than inventing

STYLE:
- Style: %s - %s
- Tone: %s - %s

SCENE %d: %s
%s

Output exactly 2 sentences totaling %d-%d words. No extra text.`,
		scene.Index, storyTitle,
		narrationMinWords, narrationMaxWords,
		params.NarrationStyle, style,
		params.Tone, tone,
		scene.Index, scene.Title, scene.Text,
		narrationMinWords, narrationMaxWords)
}

// imagePromptText は画像バックエンドへ渡す一枚分のプロンプト文を組み立てます。
func imagePromptText(p domain.ScenePrompt) string {
	var sb strings.Builder
	if p.Title != "" {
		fmt.Fprintf(&sb, "%s. ", p.Title)
	}
	sb.WriteString(p.Visual)
	if p.Style != "" {
		sb.WriteString(" Art style: ")
		sb.WriteString(p.Style)
	}
	sb.WriteString(" No text, no captions, no speech bubbles, no words in the image.")
	return sb.String()
}
