package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/pipeline"
	"wiki-comic-web/internal/store"
	"wiki-comic-web/internal/wiki"
)

// apiRouter は本番のルーターと同じパスパターンでハンドラーを束ねます。
func apiRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/search", h.Search)
	r.Post("/api/generate", h.Generate)
	r.Route("/api/topics/{topic}", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/export", h.Export)
	})
	return r
}

func storedPipeline(st store.StageStore) *pipeline.ComicPipeline {
	return pipeline.NewComicPipeline(st, pipeline.Runners{}, nil, "")
}

// seedTopic は既定パラメータのフィンガープリントで全ステージのレコードを
// 保存します。
func seedTopic(t *testing.T, st *store.MemoryStore, topic domain.Topic) {
	t.Helper()
	params := domain.GenerationParams{}.Normalized()

	put := func(stage domain.Stage, status domain.Status, payload any) {
		t.Helper()
		rec, err := domain.NewStageRecord(topic, stage,
			params.FingerprintFor(stage, topic.Language), "run-stored", status, payload)
		if err != nil {
			t.Fatalf("NewStageRecord(%s) returned error: %v", stage, err)
		}
		if err := st.Put(t.Context(), rec); err != nil {
			t.Fatalf("Put(%s) returned error: %v", stage, err)
		}
	}

	articleURL := "https://" + topic.Language + ".wikipedia.org/wiki/" + strings.ReplaceAll(topic.Title, " ", "_")
	put(domain.StageExtract, domain.StatusOK, domain.ExtractResult{Article: &domain.ArticleContent{
		Title:    topic.Title,
		Language: topic.Language,
		URL:      articleURL,
		Summary:  "A short summary.",
		Content:  "A longer body of article text.",
	}})
	put(domain.StageStory, domain.StatusOK, domain.Storyline{Title: "A Story", Scenes: []domain.Scene{
		{Index: 1, Title: "Opening", Text: "It begins."},
		{Index: 2, Title: "Closing", Text: "It ends."},
	}})
	put(domain.StagePrompts, domain.StatusOK, domain.PromptSet{Style: "western comic", Prompts: []domain.ScenePrompt{
		{Index: 1, Title: "Opening", Visual: "a desk by a window", Style: "western comic"},
		{Index: 2, Title: "Closing", Visual: "a sunset over rooftops", Style: "western comic"},
	}})
	put(domain.StageNarration, domain.StatusOK, domain.NarrationSet{Entries: []domain.NarrationEntry{
		{Index: 1, Text: "Scene one.", Style: "documentary", Tone: "neutral"},
		{Index: 2, Text: "Scene two.", Style: "documentary", Tone: "neutral"},
	}})
	put(domain.StageImages, domain.StatusOK, domain.ImageSet{Artifacts: []domain.ImageArtifact{
		{Index: 1, Provider: "gemini", MIMEType: "image/png", ObjectPath: topic.Key() + "/images/abc/scene_01.png"},
		{Index: 2, Provider: "gemini", MIMEType: "image/png", ObjectPath: topic.Key() + "/images/abc/scene_02.png"},
	}})
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body not decodable: %v (%s)", err, w.Body)
	}
	return body["error"]
}

func TestStatusReportsStoredStages(t *testing.T) {
	st := store.NewMemoryStore()
	seedTopic(t, st, domain.NewTopic("Albert Einstein", "en"))
	h := &Handler{pipeline: storedPipeline(st)}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/topics/Albert%20Einstein/status?lang=en", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", got)
	}

	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not decodable: %v", err)
	}
	if resp.Topic.Title != "Albert Einstein" || resp.Topic.Language != "en" {
		t.Errorf("topic = %+v", resp.Topic)
	}
	if resp.State != domain.StateComplete {
		t.Errorf("state = %q, want %q", resp.State, domain.StateComplete)
	}
	if len(resp.Stages) != len(domain.StageOrder) {
		t.Fatalf("len(stages) = %d, want %d", len(resp.Stages), len(domain.StageOrder))
	}
	for i, s := range resp.Stages {
		if s.Stage != domain.StageOrder[i] {
			t.Errorf("stages[%d].stage = %q, want %q", i, s.Stage, domain.StageOrder[i])
		}
		if s.Status != domain.StatusOK || s.Fingerprint == "" || s.RunID != "run-stored" {
			t.Errorf("stages[%d] metadata = %+v", i, s)
		}
	}
	if len(resp.Candidates) != 0 {
		t.Errorf("candidates = %v, want none", resp.Candidates)
	}
}

func TestStatusDecodesEscapedTopic(t *testing.T) {
	st := store.NewMemoryStore()
	seedTopic(t, st, domain.NewTopic("AC/DC", "en"))
	h := &Handler{pipeline: storedPipeline(st)}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/topics/AC%2FDC/status?lang=en", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not decodable: %v", err)
	}
	if resp.Topic.Title != "AC/DC" {
		t.Errorf("topic title = %q, want AC/DC", resp.Topic.Title)
	}
	if resp.State != domain.StateComplete {
		t.Errorf("state = %q", resp.State)
	}
}

func TestStatusSurfacesDisambiguationCandidates(t *testing.T) {
	st := store.NewMemoryStore()
	topic := domain.NewTopic("Mercury", "en")
	params := domain.GenerationParams{}.Normalized()
	candidates := []string{"Mercury (planet)", "Mercury (element)"}

	rec, err := domain.NewStageRecord(topic, domain.StageExtract,
		params.FingerprintFor(domain.StageExtract, topic.Language),
		"run-halt", domain.StatusPartial, domain.ExtractResult{Candidates: candidates})
	if err != nil {
		t.Fatalf("NewStageRecord returned error: %v", err)
	}
	if err := st.Put(t.Context(), rec); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	h := &Handler{pipeline: storedPipeline(st)}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/topics/Mercury/status", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not decodable: %v", err)
	}
	if resp.State != domain.StateExtracted {
		t.Errorf("state = %q, want %q", resp.State, domain.StateExtracted)
	}
	if !reflect.DeepEqual(resp.Candidates, candidates) {
		t.Errorf("candidates = %v, want %v", resp.Candidates, candidates)
	}
}

func TestStatusRequiresTopic(t *testing.T) {
	h := &Handler{pipeline: storedPipeline(store.NewMemoryStore())}

	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if msg := errorMessage(t, w); msg != "topic is required" {
		t.Errorf("error = %q", msg)
	}
}

func TestStatusStoreOutageIs503(t *testing.T) {
	h := &Handler{pipeline: storedPipeline(downStore{})}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/topics/Tokyo/status", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if msg := errorMessage(t, w); msg != "stage store is unreachable" {
		t.Errorf("error = %q", msg)
	}
}

func TestExportCombinesStoredStages(t *testing.T) {
	st := store.NewMemoryStore()
	seedTopic(t, st, domain.NewTopic("Albert Einstein", "en"))
	h := &Handler{pipeline: storedPipeline(st)}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/topics/Albert%20Einstein/export?lang=en", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if got := w.Header().Get("Cache-Control"); got != "private, max-age=300" {
		t.Errorf("cache-control = %q", got)
	}

	var resp exportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not decodable: %v", err)
	}
	if resp.ComicExport == nil {
		t.Fatal("export body is empty")
	}
	if resp.Topic != "Albert Einstein" || resp.Language != "en" {
		t.Errorf("export header = %q / %q", resp.Topic, resp.Language)
	}
	if len(resp.Statuses) != len(domain.StageOrder) {
		t.Errorf("statuses = %v", resp.Statuses)
	}
	if resp.Article == nil || resp.Storyline == nil || resp.Prompts == nil ||
		resp.Narration == nil || resp.Images == nil {
		t.Error("expected every stage payload in the export")
	}
	if resp.ImageURLs != nil {
		t.Errorf("image_urls must be omitted without a signer, got %v", resp.ImageURLs)
	}
}

func TestExportWithoutRecordsIs404(t *testing.T) {
	h := &Handler{pipeline: storedPipeline(store.NewMemoryStore())}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/topics/Nobody/export", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if msg := errorMessage(t, w); msg != "no stored stages for this topic" {
		t.Errorf("error = %q", msg)
	}
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"malformed json", `{"topic":`, "request body is not valid JSON"},
		{"unknown field", `{"topic":"Mars","panels":9}`, "request body is not valid JSON"},
		{"missing topic", `{"topic":"   "}`, "topic is required"},
		{"unknown target", `{"topic":"Mars","target_stage":"render"}`, "target_stage is not a known stage"},
	}

	h := &Handler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			apiRouter(h).ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body)
			}
			if msg := errorMessage(t, w); msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestSearchReturnsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("list") != "search" {
			t.Errorf("list = %q", r.URL.Query().Get("list"))
		}
		if r.URL.Query().Get("srsearch") != "relativity" {
			t.Errorf("srsearch = %q", r.URL.Query().Get("srsearch"))
		}
		fmt.Fprint(w, `{"query":{"search":[
			{"title":"Theory of relativity","snippet":"Einstein's framework","wordcount":120},
			{"title":"General relativity","snippet":"Gravitation","wordcount":300}
		]}}`)
	}))
	defer srv.Close()

	h := &Handler{wiki: wiki.NewClient(wiki.Config{
		EndpointPattern: srv.URL,
		UserAgent:       "handlers-test/1.0",
		MaxAttempts:     1,
		RetryBase:       time.Millisecond,
	}, srv.Client())}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=relativity&lang=en", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not decodable: %v", err)
	}
	if resp.Query != "relativity" || resp.Language != "en" {
		t.Errorf("query/language = %q / %q", resp.Query, resp.Language)
	}
	if len(resp.Results) != 2 || resp.Results[0].Title != "Theory of relativity" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	h := &Handler{}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if msg := errorMessage(t, w); msg != "query parameter q is required" {
		t.Errorf("error = %q", msg)
	}
}

func TestSearchUpstreamFailureIs502(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := &Handler{wiki: wiki.NewClient(wiki.Config{
		EndpointPattern: srv.URL,
		UserAgent:       "handlers-test/1.0",
		MaxAttempts:     1,
		RetryBase:       time.Millisecond,
	}, srv.Client())}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=tokyo", nil)
	apiRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if msg := errorMessage(t, w); msg != "article search failed" {
		t.Errorf("error = %q", msg)
	}
}

func TestParamsFromQuery(t *testing.T) {
	q := url.Values{}
	q.Set("length", "long")
	q.Set("style", "noir")
	q.Set("audience", "adults")
	q.Set("education_level", "university")
	q.Set("narration_style", "dramatic")
	q.Set("tone", "serious")
	q.Set("scene_count", "7")

	p := paramsFromQuery(q)
	want := domain.GenerationParams{
		Length:         "long",
		SceneCount:     7,
		Style:          "noir",
		Audience:       "adults",
		EducationLevel: "university",
		NarrationStyle: "dramatic",
		Tone:           "serious",
	}
	if p != want {
		t.Errorf("params = %+v, want %+v", p, want)
	}

	if empty := paramsFromQuery(url.Values{}); empty != (domain.GenerationParams{}) {
		t.Errorf("empty query must produce zero params, got %+v", empty)
	}

	q.Set("scene_count", "many")
	if p := paramsFromQuery(q); p.SceneCount != 0 {
		t.Errorf("non-numeric scene_count = %d, want 0", p.SceneCount)
	}
}

func TestLanguageFromQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", domain.DefaultLanguage},
		{" JA ", "ja"},
		{"fr", "fr"},
	}
	for _, tt := range tests {
		q := url.Values{}
		if tt.in != "" {
			q.Set("lang", tt.in)
		}
		if got := languageFromQuery(q); got != tt.want {
			t.Errorf("languageFromQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// downStore は常に到達不能エラーを返すステージストアです。
type downStore struct{}

func (downStore) Put(context.Context, domain.StageRecord) error {
	return fmt.Errorf("backend offline: %w", domain.ErrStoreUnavailable)
}

func (downStore) Get(context.Context, domain.Topic, domain.Stage, string) (domain.StageRecord, bool, error) {
	return domain.StageRecord{}, false, fmt.Errorf("backend offline: %w", domain.ErrStoreUnavailable)
}

func (downStore) List(context.Context, domain.Topic) ([]domain.StageRecord, error) {
	return nil, fmt.Errorf("backend offline: %w", domain.ErrStoreUnavailable)
}

func (downStore) WriteObject(context.Context, domain.Topic, string, []byte, string) (string, error) {
	return "", fmt.Errorf("backend offline: %w", domain.ErrStoreUnavailable)
}
