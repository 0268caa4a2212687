package pdf

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"

	"golang.org/x/image/draw"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// PreviewQuality is the JPEG quality of the stacked preview.
const PreviewQuality = 85

// GeneratePreview scales every image by scale and stacks them top to bottom
// on a white canvas. Images that fail to decode are skipped; if none decode
// the call fails.
func GeneratePreview(imagePaths []string, outPath string, scale float64) error {
	if scale <= 0 {
		return domain.ValidationError(fmt.Sprintf("preview scale must be positive, got %v", scale), nil)
	}

	var scaled []image.Image
	maxWidth, totalHeight := 0, 0
	for _, p := range imagePaths {
		img, err := decodeFile(p)
		if err != nil {
			continue
		}
		b := img.Bounds()
		w := int(float64(b.Dx()) * scale)
		h := int(float64(b.Dy()) * scale)
		if w < 1 || h < 1 {
			continue
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		scaled = append(scaled, dst)
		if w > maxWidth {
			maxWidth = w
		}
		totalHeight += h
	}

	if len(scaled) == 0 {
		return domain.ConversionError("no valid images could be processed", nil)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, maxWidth, totalHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	y := 0
	for _, img := range scaled {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Over)
		y += b.Dy()
	}

	out, err := os.Create(outPath)
	if err != nil {
		return domain.IOError("create preview file", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, canvas, &jpeg.Options{Quality: PreviewQuality}); err != nil {
		return domain.ConversionError("encode preview", err)
	}
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
