package pdf

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/observability"
)

// RasterizerOptions holds page rendering settings.
type RasterizerOptions struct {
	DPI         float64
	JPEGQuality int
}

// DefaultRasterizerOptions renders at 200 DPI with JPEG quality 95.
func DefaultRasterizerOptions() RasterizerOptions {
	return RasterizerOptions{DPI: 200, JPEGQuality: 95}
}

// Rasterizer implements PDF page to image conversion using go-fitz
type Rasterizer struct {
	opts   RasterizerOptions
	logger *observability.Logger
}

// NewRasterizer creates a new rasterizer instance
func NewRasterizer(opts RasterizerOptions, logger *observability.Logger) *Rasterizer {
	return &Rasterizer{opts: opts, logger: observability.OrDefault(logger)}
}

// Rasterize renders the given 1-based pages (all pages when empty) into
// outDir as page_{n}.jpg. A page outside the document is a conversion error.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath string, pages []int, outDir string) ([]domain.PageImage, error) {
	validator := NewValidator()
	if err := validator.ValidateQuality(r.opts.JPEGQuality); err != nil {
		return nil, err
	}
	if err := validator.ValidateDPI(r.opts.DPI); err != nil {
		return nil, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ConversionError("Failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if len(pages) == 0 {
		pages = make([]int, pageCount)
		for i := range pages {
			pages[i] = i + 1
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, domain.IOError("Failed to create image directory", err)
	}

	images := make([]domain.PageImage, 0, len(pages))
	for _, pageNum := range pages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if pageNum < 1 || pageNum > pageCount {
			return nil, domain.ConversionError(fmt.Sprintf("page %d out of range (document has %d pages)", pageNum, pageCount), nil)
		}

		img, err := doc.ImageDPI(pageNum-1, r.opts.DPI)
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("Failed to convert page %d", pageNum), err)
		}

		outputPath := filepath.Join(outDir, fmt.Sprintf("page_%d.jpg", pageNum))
		outputFile, err := os.Create(outputPath)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("Failed to create output file for page %d", pageNum), err)
		}

		err = jpeg.Encode(outputFile, img, &jpeg.Options{Quality: r.opts.JPEGQuality})
		outputFile.Close()
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("Failed to encode page %d as JPG", pageNum), err)
		}

		bounds := img.Bounds()
		images = append(images, domain.PageImage{
			PageNumber: pageNum,
			ImagePath:  outputPath,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	r.logger.Debug().Str("document", pdfPath).Int("pages", len(images)).Str("dir", outDir).Msg("Rasterized pages")
	return images, nil
}

// Cleanup removes a run's image directory.
func (r *Rasterizer) Cleanup(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return domain.IOError("cleanup image directory", err)
	}
	return nil
}
