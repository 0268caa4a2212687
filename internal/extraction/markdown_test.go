package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/troyyang/ocr-compare/internal/domain"
)

func element(typ domain.ElementType, content string, pageNum int) domain.DocumentElement {
	return domain.DocumentElement{
		Type:     typ,
		Content:  content,
		Metadata: map[string]interface{}{domain.MetaPageNum: pageNum},
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown([]domain.DocumentElement{
		element(domain.ElementText, "Hello", 1),
		element(domain.ElementTable, "| a | b |", 1),
		element(domain.ElementText, "World", 2),
	})

	want := "\n\n## Page 1\n\n" +
		"\nHello" +
		"\n\n\n| a | b |\n\n" +
		"\n\n\n## Page 2\n\n" +
		"\nWorld"
	assert.Equal(t, want, got)
}

func TestRenderMarkdown_HeaderOnlyWhenPageAdvances(t *testing.T) {
	got := RenderMarkdown([]domain.DocumentElement{
		element(domain.ElementText, "a", 2),
		element(domain.ElementText, "b", 2),
		element(domain.ElementText, "c", 1),
	})
	assert.Equal(t, "\n\n## Page 2\n\n\na\nb\nc", got)
}

func TestRenderMarkdown_Empty(t *testing.T) {
	assert.Equal(t, "", RenderMarkdown(nil))
}
