package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// DefaultExtensions are scanned when no extension list is given.
var DefaultExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".tiff", ".bmp"}

// NormalizeExtensions lowercases extensions, adds the leading dot and drops
// duplicates. An empty list yields DefaultExtensions.
func NormalizeExtensions(extensions []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !seen[ext] {
			seen[ext] = true
			out = append(out, ext)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultExtensions...)
	}
	return out
}

// Discover returns the files to benchmark. A file path must carry one of the
// extensions; a directory is scanned recursively. The result is sorted and
// free of duplicates.
func Discover(inputPath string, extensions []string) ([]string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, domain.ConfigError("input path must be specified", nil)
	}
	extensions = NormalizeExtensions(extensions)

	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFoundError(fmt.Sprintf("input path not found: %s", inputPath), err)
		}
		return nil, domain.DocumentError(fmt.Sprintf("cannot access input path: %s", inputPath), err)
	}

	var files []string
	switch {
	case info.Mode().IsRegular():
		if !hasExtension(inputPath, extensions) {
			return nil, domain.ValidationError(fmt.Sprintf(
				"file %s has an unsupported extension. Supported: %s", inputPath, strings.Join(extensions, ", ")), nil)
		}
		files = []string{inputPath}
	case info.IsDir():
		seen := make(map[string]bool)
		err := filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !hasExtension(path, extensions) || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("scan %s", inputPath), err)
		}
		sort.Strings(files)
	default:
		return nil, domain.DocumentError(fmt.Sprintf("input path is neither a file nor a directory: %s", inputPath), nil)
	}

	if len(files) == 0 {
		return nil, domain.ValidationError(fmt.Sprintf(
			"no supported files found at %s with extensions %s", inputPath, strings.Join(extensions, ", ")), nil)
	}
	return files, nil
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
