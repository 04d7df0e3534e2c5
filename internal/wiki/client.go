// Package wiki は MediaWiki API から記事本文とメタデータを取得する
// コンテンツソースを実装します。
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"wiki-comic-web/internal/domain"
)

const (
	// 曖昧さ回避ページから候補として拾う最大件数です。
	maxDisambiguationCandidates = 15

	defaultSearchLimit = 10
	categoryLimit      = "10"
)

// 記事候補として意味を持たない名前空間のリンクは除外します。
var skipTitlePrefixes = []string{
	"Help:", "Wikipedia:", "Category:", "Template:", "Portal:", "Talk:", "File:", "Special:",
}

// Config は MediaWiki API への接続設定です。EndpointPattern に %s が
// 含まれる場合は言語コードで展開し、含まれない場合は固定エンドポイント
// として扱います。
type Config struct {
	EndpointPattern string
	UserAgent       string
	MaxAttempts     int
	RetryBase       time.Duration
}

// Client は MediaWiki API クライアントです。一時的な失敗には指数
// バックオフで再試行します。
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Client{cfg: cfg, client: client}
}

// SearchResult は記事検索の一件分です。
type SearchResult struct {
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	WordCount int    `json:"word_count"`
}

type queryPage struct {
	PageID     int               `json:"pageid"`
	Title      string            `json:"title"`
	Missing    bool              `json:"missing"`
	Extract    string            `json:"extract"`
	FullURL    string            `json:"fullurl"`
	PageProps  map[string]string `json:"pageprops"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
}

type searchHit struct {
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	WordCount int    `json:"wordcount"`
}

type queryResponse struct {
	Query struct {
		Pages  []queryPage `json:"pages"`
		Search []searchHit `json:"search"`
	} `json:"query"`
}

type parseResponse struct {
	Parse struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"parse"`
}

// Fetch は記事の本文・要約・メタデータを取得します。ページが存在しない
// 場合は domain.ErrPageNotFound を、曖昧さ回避ページに当たった場合は
// 候補一覧を携えた domain.DisambiguationError を返します。
func (c *Client) Fetch(ctx context.Context, title, language string) (*domain.ArticleContent, error) {
	endpoint := c.endpoint(language)

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("prop", "extracts|info|pageprops|categories")
	params.Set("titles", title)
	params.Set("redirects", "1")
	params.Set("explaintext", "1")
	params.Set("inprop", "url")
	params.Set("cllimit", categoryLimit)

	var parsed queryResponse
	if err := c.getJSON(ctx, endpoint, params, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Query.Pages) == 0 {
		return nil, fmt.Errorf("no page returned for title %q: %w", title, domain.ErrPageNotFound)
	}

	page := parsed.Query.Pages[0]
	if page.Missing {
		return nil, fmt.Errorf("page %q does not exist: %w", title, domain.ErrPageNotFound)
	}
	if _, ok := page.PageProps["disambiguation"]; ok {
		candidates, err := c.disambiguationCandidates(ctx, endpoint, page.Title)
		if err != nil {
			slog.WarnContext(ctx, "Failed to collect disambiguation candidates",
				"title", page.Title, "error", err)
		}
		return nil, &domain.DisambiguationError{Title: page.Title, Candidates: candidates}
	}

	categories := make([]string, 0, len(page.Categories))
	for _, cat := range page.Categories {
		name := cat.Title
		if idx := strings.Index(name, ":"); idx >= 0 {
			name = name[idx+1:]
		}
		if name != "" {
			categories = append(categories, name)
		}
	}

	return &domain.ArticleContent{
		Title:      page.Title,
		Language:   language,
		URL:        page.FullURL,
		Summary:    firstParagraph(page.Extract),
		Content:    strings.TrimSpace(page.Extract),
		Categories: categories,
	}, nil
}

// Search は記事を全文検索し、スニペットからハイライト用のタグを除いた
// 結果一覧を返します。
func (c *Client) Search(ctx context.Context, query, language string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	endpoint := c.endpoint(language)

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))

	var parsed queryResponse
	if err := c.getJSON(ctx, endpoint, params, &parsed); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(parsed.Query.Search))
	for _, hit := range parsed.Query.Search {
		results = append(results, SearchResult{
			Title:     hit.Title,
			Snippet:   stripTags(hit.Snippet),
			WordCount: hit.WordCount,
		})
	}
	return results, nil
}

// disambiguationCandidates は曖昧さ回避ページの本文 HTML からリンク先
// 記事名を収集します。
func (c *Client) disambiguationCandidates(ctx context.Context, endpoint, title string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("page", title)
	params.Set("prop", "text")

	var parsed parseResponse
	if err := c.getJSON(ctx, endpoint, params, &parsed); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(parsed.Parse.Text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse disambiguation page html: %w", err)
	}

	seen := make(map[string]struct{})
	candidates := make([]string, 0, maxDisambiguationCandidates)
	doc.Find("ul li a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		candidate, ok := s.Attr("title")
		if !ok || candidate == "" || candidate == title {
			return true
		}
		if !isArticleTitle(candidate) {
			return true
		}
		if _, dup := seen[candidate]; dup {
			return true
		}
		seen[candidate] = struct{}{}
		candidates = append(candidates, candidate)
		return len(candidates) < maxDisambiguationCandidates
	})
	return candidates, nil
}

func (c *Client) endpoint(language string) string {
	if strings.Contains(c.cfg.EndpointPattern, "%s") {
		return fmt.Sprintf(c.cfg.EndpointPattern, language)
	}
	return c.cfg.EndpointPattern
}

// getJSON はリトライ付きの GET 実行と JSON デコードをまとめた補助です。
// 5xx と 429 とネットワーク障害のみ再試行します。
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build wikipedia request: %w", err))
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(fmt.Errorf("wikipedia request aborted: %w", ctxErr))
			}
			return fmt.Errorf("wikipedia request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("wikipedia returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
			return backoff.Permanent(fmt.Errorf("wikipedia returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode wikipedia response: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryBase
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	var b backoff.BackOff = bo
	b = backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1))
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func isArticleTitle(title string) bool {
	if strings.Contains(title, "(disambiguation)") || strings.Contains(title, "(page does not exist)") {
		return false
	}
	for _, prefix := range skipTitlePrefixes {
		if strings.HasPrefix(title, prefix) {
			return false
		}
	}
	return true
}

func stripTags(snippet string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return snippet
	}
	return strings.TrimSpace(doc.Text())
}

func firstParagraph(extract string) string {
	trimmed := strings.TrimSpace(extract)
	if idx := strings.Index(trimmed, "\n\n"); idx > 0 {
		return strings.TrimSpace(trimmed[:idx])
	}
	return trimmed
}
