package extraction

import (
	"fmt"
	"strings"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// RenderMarkdown renders digitally extracted elements into one document.
// A "## Page N" header is emitted whenever the page number increases and
// tables are padded by blank lines.
func RenderMarkdown(elements []domain.DocumentElement) string {
	if len(elements) == 0 {
		return ""
	}

	parts := make([]string, 0, len(elements)*2)
	currentPage := 0
	for _, el := range elements {
		if page := el.PageNum(); page > currentPage {
			parts = append(parts, fmt.Sprintf("\n\n## Page %d\n\n", page))
			currentPage = page
		}
		switch el.Type {
		case domain.ElementText:
			parts = append(parts, el.Content)
		case domain.ElementTable:
			parts = append(parts, "\n\n"+el.Content+"\n\n")
		}
	}
	return strings.Join(parts, "\n")
}
