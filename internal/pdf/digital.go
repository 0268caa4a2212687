package pdf

import (
	"context"
	"fmt"
	"sort"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/observability"
)

// DigitalExtractor pulls text and tables straight from a PDF text layer.
type DigitalExtractor struct {
	logger *observability.Logger
}

// NewDigitalExtractor creates an extractor.
func NewDigitalExtractor(logger *observability.Logger) *DigitalExtractor {
	return &DigitalExtractor{logger: observability.OrDefault(logger)}
}

// Extract returns one text element per non-empty page followed by that
// page's tables. Table failures are logged and skipped.
func (d *DigitalExtractor) Extract(ctx context.Context, path string) (*domain.DigitalDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, domain.DocumentError(fmt.Sprintf("failed to open PDF: %s", path), err)
	}
	defer f.Close()

	doc := &domain.DigitalDocument{TotalPages: r.NumPage()}
	for i := 1; i <= doc.TotalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		lines, err := pageLines(p)
		if err != nil {
			d.logger.Warn().Int("page", i).Err(err).Msg("Text extraction error")
			continue
		}
		doc.Elements = append(doc.Elements, PageElements(i, lines)...)
	}
	return doc, nil
}

// PageElements turns one page's lines into document elements.
func PageElements(pageNum int, lines []Line) []domain.DocumentElement {
	var elements []domain.DocumentElement

	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := l.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	if text := strings.TrimSpace(strings.Join(texts, "\n")); text != "" {
		y0 := 0.0
		if len(lines) > 0 {
			y0 = lines[0].Y
		}
		elements = append(elements, domain.DocumentElement{
			Type:     domain.ElementText,
			Content:  text,
			Y0:       y0,
			Metadata: map[string]interface{}{domain.MetaPageNum: pageNum},
		})
	}

	for idx, t := range DetectTables(lines) {
		elements = append(elements, domain.DocumentElement{
			Type:    domain.ElementTable,
			Content: t.Markdown(),
			Y0:      tableTop(lines, t),
			Metadata: map[string]interface{}{
				domain.MetaPageNum:    pageNum,
				domain.MetaTableIndex: idx,
			},
		})
	}
	return elements
}

func tableTop(lines []Line, t Table) float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	for _, l := range lines {
		if len(l.Cells) == len(t.Rows[0]) && l.Cells[0] == t.Rows[0][0] {
			return l.Y
		}
	}
	return 0
}

// pageLines reads rows top to bottom; parser panics become errors.
func pageLines(p pdf.Page) (lines []Line, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed page content: %v", rec)
		}
	}()

	rows, err := p.GetTextByRow()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })

	lines = make([]Line, 0, len(rows))
	for _, row := range rows {
		glyphs := make([]Glyph, 0, len(row.Content))
		for _, t := range row.Content {
			glyphs = append(glyphs, Glyph{X: t.X, W: t.W, FontSize: t.FontSize, S: t.S})
		}
		line := BuildLine(float64(row.Position), glyphs)
		if len(line.Cells) > 0 {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
