package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/gen2brain/go-fitz"

	"github.com/tablefold/tablefold/internal/cache"
	"github.com/tablefold/tablefold/internal/observability"
)

// Thumbnailer produces scaled page previews and keeps them in a cache.
// Thumbnails are purely presentational: generation runs off the scheduling
// path and failures are logged, never surfaced as job errors.
type Thumbnailer struct {
	cache    cache.Client
	logger   *observability.Logger
	width    int
	maxPages int
	ttl      time.Duration
}

// NewThumbnailer creates a thumbnailer writing previews of the given width.
func NewThumbnailer(c cache.Client, logger *observability.Logger, width, maxPages int, ttl time.Duration) *Thumbnailer {
	if width <= 0 {
		width = 240
	}
	if maxPages <= 0 {
		maxPages = 5
	}
	return &Thumbnailer{
		cache:    c,
		logger:   logger.WithComponent("thumbnailer"),
		width:    width,
		maxPages: maxPages,
		ttl:      ttl,
	}
}

// Generate renders up to maxPages preview images for the source document and
// stores them in the cache. It returns the number of thumbnails produced.
func (t *Thumbnailer) Generate(ctx context.Context, jobID, path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > t.maxPages {
		pages = t.maxPages
	}

	count := 0
	for i := 0; i < pages; i++ {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		img, err := doc.Image(i)
		if err != nil {
			t.logger.Warn().Str("job_id", jobID).Int("page", i+1).Err(err).Msg("thumbnail render failed")
			continue
		}

		data, err := scaleToJPEG(img, t.width)
		if err != nil {
			t.logger.Warn().Str("job_id", jobID).Int("page", i+1).Err(err).Msg("thumbnail encode failed")
			continue
		}

		if err := t.cache.Set(ctx, thumbKey(jobID, count), data, t.ttl); err != nil {
			t.logger.Warn().Str("job_id", jobID).Err(err).Msg("thumbnail cache write failed")
			continue
		}
		count++
	}

	return count, nil
}

// Lookup returns the cached thumbnail at the given cursor position.
func (t *Thumbnailer) Lookup(ctx context.Context, jobID string, index int) ([]byte, error) {
	return t.cache.Get(ctx, thumbKey(jobID, index))
}

// Drop removes all cached thumbnails for a job.
func (t *Thumbnailer) Drop(ctx context.Context, jobID string) {
	if err := t.cache.DeleteByPrefix(ctx, "thumb:"+jobID+":"); err != nil {
		t.logger.Warn().Str("job_id", jobID).Err(err).Msg("thumbnail cache purge failed")
	}
}

func thumbKey(jobID string, index int) string {
	return fmt.Sprintf("thumb:%s:%d", jobID, index)
}

// scaleToJPEG downscales the image to the target width with nearest-neighbour
// sampling, which is good enough for a preview strip.
func scaleToJPEG(img image.Image, width int) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("empty image")
	}

	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcY := bounds.Min.Y + y*bounds.Dy()/height
		for x := 0; x < width; x++ {
			srcX := bounds.Min.X + x*bounds.Dx()/width
			scaled.Set(x, y, img.At(srcX, srcY))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
