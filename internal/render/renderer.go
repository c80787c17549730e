// Package render converts document pages to images using go-fitz.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"

	"github.com/tablefold/tablefold/internal/domain"
)

// Renderer implements document to image conversion using go-fitz.
type Renderer struct {
	quality int
}

// NewRenderer creates a renderer encoding pages as JPEG at the given quality.
func NewRenderer(quality int) *Renderer {
	if quality < 1 || quality > 100 {
		quality = 85
	}
	return &Renderer{quality: quality}
}

// PageCount reports the true page count of the source document.
func (r *Renderer) PageCount(_ context.Context, path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, domain.ReadError("failed to open document", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPages renders the given 1-based pages as JPEG images, in page order.
func (r *Renderer) RenderPages(ctx context.Context, path string, pages []int) ([]domain.PageImage, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.ReadError("failed to open document", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ReadError("document has no pages", nil)
	}

	images := make([]domain.PageImage, 0, len(pages))
	for _, pageNum := range pages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if pageNum < 1 || pageNum > pageCount {
			continue
		}

		img, err := doc.Image(pageNum - 1)
		if err != nil {
			return nil, domain.ReadError(fmt.Sprintf("failed to render page %d", pageNum), err)
		}

		data, err := encodeJPEG(img, r.quality)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to encode page %d", pageNum), err)
		}

		bounds := img.Bounds()
		images = append(images, domain.PageImage{
			PageNumber: pageNum,
			Data:       data,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	return images, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
