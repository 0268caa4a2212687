package pdf

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// ImageExtensions are the raster formats accepted as single-page input.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

// Validator provides input validation for documents and rendering settings.
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// FileTypeFor maps an extension to the coarse input kind.
func FileTypeFor(path string) (domain.FileType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return domain.FileTypePDF, true
	}
	for _, e := range ImageExtensions {
		if ext == e {
			return domain.FileTypeImage, true
		}
	}
	return "", false
}

// ValidateDocumentPath checks that path is a readable PDF or image file and
// returns its type. Failures are document errors.
func (v *Validator) ValidateDocumentPath(path string) (domain.FileType, error) {
	if strings.TrimSpace(path) == "" {
		return "", domain.DocumentError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.DocumentError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return "", domain.DocumentError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return "", domain.DocumentError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	fileType, ok := FileTypeFor(path)
	if !ok {
		return "", domain.DocumentError(fmt.Sprintf("unsupported file type: %s", strings.ToLower(filepath.Ext(path))), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", domain.DocumentError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return fileType, nil
}

// ValidateQuality validates image quality parameter
func (v *Validator) ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}

// ValidateDPI rejects non-positive render resolutions.
func (v *Validator) ValidateDPI(dpi float64) error {
	if dpi <= 0 {
		return domain.ValidationError(fmt.Sprintf("dpi must be positive, got %v", dpi), nil)
	}
	return nil
}

// ImageSize reads the pixel dimensions of an image without decoding it.
func ImageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, domain.IOError("open image", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, domain.DocumentError(fmt.Sprintf("cannot decode image: %s", path), err)
	}
	return cfg.Width, cfg.Height, nil
}
