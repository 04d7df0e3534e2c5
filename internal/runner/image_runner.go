package runner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/gateway"
)

// ImageRunner は画像生成ステージのインターフェースです。
type ImageRunner interface {
	Run(ctx context.Context, prompts domain.PromptSet) (ImageOutcome, error)
}

// SceneImage は一シーン分の生成結果です。Placeholder が真の場合、
// Data には代替画像のバイト列が入ります。
type SceneImage struct {
	Index       int
	Title       string
	Data        []byte
	MIMEType    string
	Provider    string
	Placeholder bool
}

// ImageOutcome は画像ステージ全体の集約結果です。
type ImageOutcome struct {
	Images []SceneImage
}

// Status はステージとしての状態を返します。一枚でもプレースホルダに
// 落ちたら partial、全シーン成功で ok です。プロバイダの疲弊だけで
// failed になることはありません。
func (o ImageOutcome) Status() domain.Status {
	for _, img := range o.Images {
		if img.Placeholder {
			return domain.StatusPartial
		}
	}
	return domain.StatusOK
}

// PlaceholderCount はプレースホルダに落ちたシーン数を返します。
func (o ImageOutcome) PlaceholderCount() int {
	n := 0
	for _, img := range o.Images {
		if img.Placeholder {
			n++
		}
	}
	return n
}

// ComicImageRunner はシーンごとにゲートウェイへ画像生成を依頼する
// 実装です。シーン間に依存がないため、ワーカー数を上限に並列で
// 呼び出します。完了順が前後してもシーン番号の対応は保たれます。
type ComicImageRunner struct {
	gw      gateway.Gateway
	workers int
}

func NewComicImageRunner(gw gateway.Gateway, workers int) *ComicImageRunner {
	if workers < 1 {
		workers = 1
	}
	return &ComicImageRunner{gw: gw, workers: workers}
}

func (r *ComicImageRunner) Run(ctx context.Context, prompts domain.PromptSet) (ImageOutcome, error) {
	slog.InfoContext(ctx, "Generating scene images",
		"scenes", len(prompts.Prompts),
		"style", prompts.Style,
		"workers", r.workers,
	)

	images := make([]SceneImage, len(prompts.Prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, p := range prompts.Prompts {
		g.Go(func() error {
			result, err := r.gw.GenerateImage(gctx, gateway.ImageRequest{
				Prompt: imagePromptText(p),
				Seed:   p.Index,
			})
			if err != nil {
				return fmt.Errorf("image generation for scene %d aborted: %w", p.Index, err)
			}

			img := SceneImage{
				Index:       p.Index,
				Title:       p.Title,
				Provider:    result.Provider,
				Placeholder: result.Placeholder,
			}
			if result.Placeholder {
				img.Data = placeholderPNG()
				img.MIMEType = "image/png"
				slog.WarnContext(gctx, "Scene image degraded to placeholder", "scene", p.Index)
			} else {
				img.Data = result.Data
				img.MIMEType = result.MIMEType
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ImageOutcome{}, err
	}

	outcome := ImageOutcome{Images: images}
	if n := outcome.PlaceholderCount(); n > 0 {
		slog.WarnContext(ctx, "Image stage completed with placeholders",
			"placeholders", n,
			"scenes", len(images),
		)
	}
	return outcome, nil
}

const placeholderEdge = 512

var (
	placeholderOnce  sync.Once
	placeholderBytes []byte
)

// placeholderPNG は全プロバイダが疲弊したシーンに差し込む無地の
// グレー画像を返します。生成は一度だけ行い、以後は同じバイト列を
// 使い回します。
func placeholderPNG() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, placeholderEdge, placeholderEdge))
		fill := color.RGBA{R: 0xDD, G: 0xDD, B: 0xDD, A: 0xFF}
		draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			slog.Error("Failed to encode placeholder image", "error", err)
			return
		}
		placeholderBytes = buf.Bytes()
	})
	return placeholderBytes
}
