package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/gateway"
)

// 画像として成立しないほど小さいレスポンスはエラーページとみなします。
const minImageBytes = 100

// PollinationsConfig は Pollinations 画像 API への接続設定です。
// API キーは不要です。
type PollinationsConfig struct {
	BaseURL string
}

// PollinationsClient は Pollinations を fallback バックエンドとして
// 利用するクライアントです。プロンプトを URL パスに埋め込む GET 形式で
// 画像を取得します。
type PollinationsClient struct {
	cfg    PollinationsConfig
	client *http.Client
}

var _ gateway.ImageBackend = (*PollinationsClient)(nil)

func NewPollinationsClient(cfg PollinationsConfig, client *http.Client) *PollinationsClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &PollinationsClient{cfg: cfg, client: client}
}

func (c *PollinationsClient) Name() string { return "pollinations" }

// GenerateImage は一枚分の画像を取得します。seed をシーンごとに変える
// ことで同一プロンプト内でも絵柄が固定されないようにします。
func (c *PollinationsClient) GenerateImage(ctx context.Context, req gateway.ImageRequest) (gateway.ImageData, error) {
	imageURL := fmt.Sprintf("%s/prompt/%s?width=1024&height=1024&nologo=true&model=flux&seed=%d",
		c.cfg.BaseURL, url.PathEscape(req.Prompt), req.Seed)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return gateway.ImageData{}, fmt.Errorf("failed to build pollinations request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return gateway.ImageData{}, wrapTransport(ctx, c.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.ImageData{}, wrapTransport(ctx, c.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return gateway.ImageData{}, classifyStatus(c.Name(), resp.StatusCode, data)
	}
	if len(data) < minImageBytes {
		return gateway.ImageData{}, fmt.Errorf("pollinations returned a suspiciously small response (%d bytes): %w", len(data), domain.ErrTransientProvider)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return gateway.ImageData{Bytes: data, MIMEType: mimeType}, nil
}
