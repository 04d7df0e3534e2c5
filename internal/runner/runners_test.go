package runner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/gateway"
)

type fakeGateway struct {
	generateText  func(ctx context.Context, req gateway.TextRequest) (string, error)
	generateImage func(ctx context.Context, req gateway.ImageRequest) (gateway.ImageResult, error)
}

func (f *fakeGateway) GenerateText(ctx context.Context, req gateway.TextRequest) (string, error) {
	return f.generateText(ctx, req)
}

func (f *fakeGateway) GenerateImage(ctx context.Context, req gateway.ImageRequest) (gateway.ImageResult, error) {
	return f.generateImage(ctx, req)
}

type fakeSource struct {
	fetch func(ctx context.Context, title, language string) (*domain.ArticleContent, error)
}

func (f *fakeSource) Fetch(ctx context.Context, title, language string) (*domain.ArticleContent, error) {
	return f.fetch(ctx, title, language)
}

func testArticle() *domain.ArticleContent {
	return &domain.ArticleContent{
		Title:    "Albert Einstein",
		Language: "en",
		URL:      "https://en.wikipedia.org/wiki/Albert_Einstein",
		Content:  "Albert Einstein was a theoretical physicist.",
	}
}

func testStoryline(n int) domain.Storyline {
	scenes := make([]domain.Scene, 0, n)
	for i := 1; i <= n; i++ {
		scenes = append(scenes, domain.Scene{
			Index: i,
			Title: fmt.Sprintf("Chapter %d", i),
			Text:  fmt.Sprintf("Events of chapter %d unfold.", i),
		})
	}
	return domain.Storyline{Title: "Albert Einstein", Scenes: scenes}
}

func TestComicStoryRunnerParsesScenes(t *testing.T) {
	params := domain.GenerationParams{SceneCount: 3}.Normalized()
	gw := &fakeGateway{
		generateText: func(_ context.Context, req gateway.TextRequest) (string, error) {
			if !strings.Contains(req.Prompt, "Albert Einstein") {
				t.Errorf("prompt missing article title: %q", req.Prompt)
			}
			if !strings.Contains(req.Prompt, "EXACTLY 3 SCENES") {
				t.Errorf("prompt missing scene count instruction")
			}
			return "Scene 1: Youth\nA boy studies a compass.\n\nScene 2: Breakthrough\nPapers fill a patent office desk.\n\nScene 3: Legacy\nStudents crowd a Princeton lecture hall.", nil
		},
	}

	storyline, err := NewComicStoryRunner(gw).Run(context.Background(), testArticle(), params)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if storyline.Title != "Albert Einstein" {
		t.Errorf("storyline title = %q", storyline.Title)
	}
	if storyline.SceneCount() != 3 {
		t.Fatalf("expected 3 scenes, got %d", storyline.SceneCount())
	}
	if storyline.Scenes[1].Index != 2 || storyline.Scenes[1].Title != "Breakthrough" {
		t.Errorf("unexpected second scene: %+v", storyline.Scenes[1])
	}
}

func TestComicStoryRunnerRejectsMalformedResponse(t *testing.T) {
	params := domain.GenerationParams{SceneCount: 3}.Normalized()
	gw := &fakeGateway{
		generateText: func(_ context.Context, _ gateway.TextRequest) (string, error) {
			return "Here is a story without any scene markers at all.", nil
		},
	}

	_, err := NewComicStoryRunner(gw).Run(context.Background(), testArticle(), params)
	if !errors.Is(err, domain.ErrMalformedGeneration) {
		t.Errorf("expected malformed generation error, got %v", err)
	}
}

func TestComicStoryRunnerPropagatesProviderError(t *testing.T) {
	params := domain.GenerationParams{}.Normalized()
	gw := &fakeGateway{
		generateText: func(_ context.Context, _ gateway.TextRequest) (string, error) {
			return "", fmt.Errorf("text generation via groq failed: %w", domain.ErrProviderAuth)
		},
	}

	_, err := NewComicStoryRunner(gw).Run(context.Background(), testArticle(), params)
	if !errors.Is(err, domain.ErrProviderAuth) {
		t.Errorf("provider error must survive wrapping, got %v", err)
	}
	if errors.Is(err, domain.ErrMalformedGeneration) {
		t.Errorf("provider error must not be classified as malformed output")
	}
}

func TestComicPromptRunnerBuildsPrompts(t *testing.T) {
	params := domain.GenerationParams{SceneCount: 2, Style: "noir"}.Normalized()
	gw := &fakeGateway{
		generateText: func(_ context.Context, req gateway.TextRequest) (string, error) {
			if !strings.Contains(req.Prompt, "Events of chapter 2") {
				t.Errorf("prompt missing storyline text")
			}
			return `Scene 1: Youth
Visual: A boy holds a compass under a lamp in a dark Munich apartment.
Style: noir style with deep shadows.

Scene 2: Breakthrough
Visual: A clerk scribbles equations at a cluttered patent office desk.
Style: noir style with venetian blind lighting.`, nil
		},
	}

	set, err := NewComicPromptRunner(gw).Run(context.Background(), testStoryline(2), params)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if set.Style != "noir" {
		t.Errorf("set style = %q", set.Style)
	}
	if len(set.Prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(set.Prompts))
	}
	if !strings.Contains(set.Prompts[0].Visual, "compass under a lamp") {
		t.Errorf("visual lost content: %q", set.Prompts[0].Visual)
	}
	if !strings.Contains(set.Prompts[1].Style, "venetian blind") {
		t.Errorf("style lost content: %q", set.Prompts[1].Style)
	}
}

func TestComicPromptRunnerRejectsCountMismatch(t *testing.T) {
	params := domain.GenerationParams{SceneCount: 2}.Normalized()
	gw := &fakeGateway{
		generateText: func(_ context.Context, _ gateway.TextRequest) (string, error) {
			return "Scene 1: Only One\nVisual: A single panel.", nil
		},
	}

	_, err := NewComicPromptRunner(gw).Run(context.Background(), testStoryline(2), params)
	if !errors.Is(err, domain.ErrSceneCountMismatch) {
		t.Errorf("expected scene count mismatch error, got %v", err)
	}
}

func TestComicPromptRunnerRejectsEmptyVisual(t *testing.T) {
	params := domain.GenerationParams{SceneCount: 1}.Normalized()
	gw := &fakeGateway{
		generateText: func(_ context.Context, _ gateway.TextRequest) (string, error) {
			return "Scene 1: Silent\nDialog: \"This line will be stripped.\"", nil
		},
	}

	_, err := NewComicPromptRunner(gw).Run(context.Background(), testStoryline(1), params)
	if !errors.Is(err, domain.ErrMalformedGeneration) {
		t.Errorf("expected malformed generation error for empty visual, got %v", err)
	}
}

var narrationSceneRe = regexp.MustCompile(`SCENE (\d+):`)

func TestComicNarrationRunnerMapsScenes(t *testing.T) {
	params := domain.GenerationParams{SceneCount: 4}.Normalized()
	gw := &fakeGateway{
		generateText: func(_ context.Context, req gateway.TextRequest) (string, error) {
			m := narrationSceneRe.FindStringSubmatch(req.Prompt)
			if m == nil {
				return "", fmt.Errorf("prompt missing scene marker")
			}
			return fmt.Sprintf("\"Voice-over for scene %s.\"", m[1]), nil
		},
	}

	set, err := NewComicNarrationRunner(gw, 2).Run(context.Background(), testStoryline(4), params)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(set.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(set.Entries))
	}
	for i, entry := range set.Entries {
		if entry.Index != i+1 {
			t.Errorf("entry %d has index %d", i, entry.Index)
		}
		want := fmt.Sprintf("Voice-over for scene %d.", i+1)
		if entry.Text != want {
			t.Errorf("entry %d text = %q, want %q", i, entry.Text, want)
		}
		if entry.Style != params.NarrationStyle || entry.Tone != params.Tone {
			t.Errorf("entry %d missing voice params: %+v", i, entry)
		}
	}
}

func TestComicNarrationRunnerFailsWhenAnySceneFails(t *testing.T) {
	params := domain.GenerationParams{SceneCount: 3}.Normalized()
	gw := &fakeGateway{
		generateText: func(_ context.Context, req gateway.TextRequest) (string, error) {
			m := narrationSceneRe.FindStringSubmatch(req.Prompt)
			if m != nil && m[1] == "2" {
				return "", fmt.Errorf("text generation via groq failed: %w", domain.ErrProviderQuota)
			}
			return "A fine narration line.", nil
		},
	}

	_, err := NewComicNarrationRunner(gw, 1).Run(context.Background(), testStoryline(3), params)
	if !errors.Is(err, domain.ErrProviderQuota) {
		t.Errorf("expected quota error to propagate, got %v", err)
	}
}

func testPromptSet(n int) domain.PromptSet {
	prompts := make([]domain.ScenePrompt, 0, n)
	for i := 1; i <= n; i++ {
		prompts = append(prompts, domain.ScenePrompt{
			Index:  i,
			Title:  fmt.Sprintf("Panel %d", i),
			Visual: fmt.Sprintf("Visual description %d.", i),
			Style:  "manga style",
		})
	}
	return domain.PromptSet{Style: "manga", Prompts: prompts}
}

func TestComicImageRunnerKeepsSceneOrder(t *testing.T) {
	gw := &fakeGateway{
		generateImage: func(_ context.Context, req gateway.ImageRequest) (gateway.ImageResult, error) {
			return gateway.ImageResult{
				Data:     []byte("img-" + strconv.Itoa(req.Seed)),
				MIMEType: "image/png",
				Provider: "gemini",
			}, nil
		},
	}

	outcome, err := NewComicImageRunner(gw, 3).Run(context.Background(), testPromptSet(5))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Status() != domain.StatusOK {
		t.Errorf("all-success outcome must be ok, got %s", outcome.Status())
	}
	if len(outcome.Images) != 5 {
		t.Fatalf("expected 5 images, got %d", len(outcome.Images))
	}
	for i, img := range outcome.Images {
		if img.Index != i+1 {
			t.Errorf("image %d has index %d", i, img.Index)
		}
		if string(img.Data) != "img-"+strconv.Itoa(i+1) {
			t.Errorf("image %d carries data %q", i, img.Data)
		}
	}
}

func TestComicImageRunnerAcceptsPlaceholders(t *testing.T) {
	gw := &fakeGateway{
		generateImage: func(_ context.Context, req gateway.ImageRequest) (gateway.ImageResult, error) {
			if req.Seed == 2 {
				return gateway.ImageResult{Provider: gateway.PlaceholderProvider, Placeholder: true}, nil
			}
			return gateway.ImageResult{Data: []byte("real"), MIMEType: "image/jpeg", Provider: "pollinations"}, nil
		},
	}

	outcome, err := NewComicImageRunner(gw, 2).Run(context.Background(), testPromptSet(3))
	if err != nil {
		t.Fatalf("placeholder scenes must not fail the stage: %v", err)
	}
	if outcome.Status() != domain.StatusPartial {
		t.Errorf("outcome with placeholders must be partial, got %s", outcome.Status())
	}
	if outcome.PlaceholderCount() != 1 {
		t.Errorf("expected 1 placeholder, got %d", outcome.PlaceholderCount())
	}

	degraded := outcome.Images[1]
	if !degraded.Placeholder || degraded.Provider != gateway.PlaceholderProvider {
		t.Errorf("scene 2 should be the placeholder: %+v", degraded)
	}
	if len(degraded.Data) == 0 || degraded.MIMEType != "image/png" {
		t.Errorf("placeholder scene must carry substitute image bytes: len=%d mime=%q", len(degraded.Data), degraded.MIMEType)
	}
}

func TestWikiExtractRunnerTruncatesContent(t *testing.T) {
	long := strings.Repeat("あ", 300)
	src := &fakeSource{
		fetch: func(_ context.Context, title, language string) (*domain.ArticleContent, error) {
			if title != "Albert Einstein" || language != "en" {
				t.Errorf("unexpected fetch args: %q %q", title, language)
			}
			a := testArticle()
			a.Content = long
			return a, nil
		},
	}

	result, err := NewWikiExtractRunner(src, 100).Run(context.Background(), domain.NewTopic("Albert Einstein", "en"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Article == nil {
		t.Fatal("expected an article result")
	}
	if got := len([]rune(result.Article.Content)); got != 103 {
		t.Errorf("expected 100 runes plus ellipsis, got %d runes", got)
	}
	if !strings.HasSuffix(result.Article.Content, "...") {
		t.Errorf("truncated content must end with ellipsis: %q", result.Article.Content[len(result.Article.Content)-9:])
	}
}

func TestWikiExtractRunnerReturnsCandidates(t *testing.T) {
	src := &fakeSource{
		fetch: func(_ context.Context, _, _ string) (*domain.ArticleContent, error) {
			return nil, fmt.Errorf("fetch failed: %w", &domain.DisambiguationError{
				Title:      "Mercury",
				Candidates: []string{"Mercury (planet)", "Mercury (element)"},
			})
		},
	}

	result, err := NewWikiExtractRunner(src, 100).Run(context.Background(), domain.NewTopic("Mercury", "en"))
	if err != nil {
		t.Fatalf("disambiguation must not be an error: %v", err)
	}
	if !result.Disambiguous() {
		t.Fatalf("expected a disambiguous result: %+v", result)
	}
	if len(result.Candidates) != 2 {
		t.Errorf("candidates lost: %+v", result.Candidates)
	}
}

func TestWikiExtractRunnerPropagatesFetchErrors(t *testing.T) {
	src := &fakeSource{
		fetch: func(_ context.Context, _, _ string) (*domain.ArticleContent, error) {
			return nil, domain.ErrPageNotFound
		},
	}

	_, err := NewWikiExtractRunner(src, 100).Run(context.Background(), domain.NewTopic("Nonexistent", "en"))
	if !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("expected page-not-found to propagate, got %v", err)
	}
}
