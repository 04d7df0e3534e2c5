package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wiki-comic-web/internal/gateway"
)

// GroqConfig は Groq Chat Completions API への接続設定です。
type GroqConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GroqClient は Groq を文章生成バックエンドとして利用するクライアントです。
// OpenAI 互換の chat/completions エンドポイントを呼び出します。
type GroqClient struct {
	cfg    GroqConfig
	client *http.Client
}

var _ gateway.TextBackend = (*GroqClient)(nil)

func NewGroqClient(cfg GroqConfig, client *http.Client) *GroqClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GroqClient{cfg: cfg, client: client}
}

func (c *GroqClient) Name() string { return "groq" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateText は一回分の文章生成を実行します。リトライはこの層では
// 行わず、エラー分類だけを行って呼び出し元へ返します。
func (c *GroqClient) GenerateText(ctx context.Context, req gateway.TextRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	payload := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal groq request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build groq request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", wrapTransport(ctx, c.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTransport(ctx, c.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(c.Name(), resp.StatusCode, respBody)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode groq response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("groq returned an empty completion")
	}
	return text, nil
}
