package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wiki-comic-web/internal/gateway"
)

// GeminiConfig は Gemini generateContent API への接続設定です。
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiClient は Gemini の画像生成モデルを primary バックエンドとして
// 利用するクライアントです。
type GeminiClient struct {
	cfg    GeminiConfig
	client *http.Client
}

var _ gateway.ImageBackend = (*GeminiClient)(nil)

func NewGeminiClient(cfg GeminiConfig, client *http.Client) *GeminiClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GeminiClient{cfg: cfg, client: client}
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GenerateImage は一枚分の画像生成を実行します。レスポンスの
// candidates から最初の inlineData を画像として取り出します。
func (c *GeminiClient) GenerateImage(ctx context.Context, req gateway.ImageRequest) (gateway.ImageData, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return gateway.ImageData{}, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return gateway.ImageData{}, fmt.Errorf("failed to build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return gateway.ImageData{}, wrapTransport(ctx, c.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.ImageData{}, wrapTransport(ctx, c.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return gateway.ImageData{}, classifyStatus(c.Name(), resp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return gateway.ImageData{}, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return gateway.ImageData{}, fmt.Errorf("failed to decode gemini image payload: %w", err)
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return gateway.ImageData{Bytes: raw, MIMEType: mimeType}, nil
		}
	}
	return gateway.ImageData{}, fmt.Errorf("gemini returned no image data")
}
