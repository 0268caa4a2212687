package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// word places s at x assuming 5 units per character at font size 10.
func word(x float64, s string) Glyph {
	return Glyph{X: x, W: float64(len(s)) * 5, FontSize: 10, S: s}
}

func TestBuildLine_SpacesAndCells(t *testing.T) {
	line := BuildLine(700, []Glyph{
		word(200, "42"),
		word(10, "Total"),
		word(40, "due"), // gap of 5 after "Total": word space
	})

	require.Len(t, line.Cells, 2)
	assert.Equal(t, "Total due", line.Cells[0])
	assert.Equal(t, "42", line.Cells[1])
	assert.Equal(t, "Total due 42", line.Text())
}

func TestBuildLine_AdjacentGlyphsJoin(t *testing.T) {
	line := BuildLine(0, []Glyph{
		{X: 0, W: 5, FontSize: 10, S: "H"},
		{X: 5, W: 5, FontSize: 10, S: "i"},
	})
	assert.Equal(t, []string{"Hi"}, line.Cells)
}

func TestDetectTables(t *testing.T) {
	lines := []Line{
		{Y: 800, Cells: []string{"Quarterly report"}},
		{Y: 780, Cells: []string{"Item", "Qty", "Price"}},
		{Y: 760, Cells: []string{"Apple", "3", "1.20"}},
		{Y: 740, Cells: []string{"Pear", "1", "0.80"}},
		{Y: 720, Cells: []string{"Notes follow"}},
		{Y: 700, Cells: []string{"lonely", "row"}},
	}

	tables := DetectTables(lines)
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{
		{"Item", "Qty", "Price"},
		{"Apple", "3", "1.20"},
		{"Pear", "1", "0.80"},
	}, tables[0].Rows)
}

func TestTable_Markdown(t *testing.T) {
	table := Table{Rows: [][]string{{"Name", "Value"}, {"a|b", "1"}}}
	want := "| Name | Value |\n| --- | --- |\n| a\\|b | 1 |"
	assert.Equal(t, want, table.Markdown())
	assert.Empty(t, Table{}.Markdown())
}

func TestPageElements(t *testing.T) {
	lines := []Line{
		{Y: 780, Cells: []string{"Header"}},
		{Y: 760, Cells: []string{"k", "v"}},
		{Y: 740, Cells: []string{"x", "1"}},
	}

	elements := PageElements(2, lines)
	require.Len(t, elements, 2)

	assert.Equal(t, domain.ElementText, elements[0].Type)
	assert.Equal(t, "Header\nk v\nx 1", elements[0].Content)
	assert.Equal(t, 2, elements[0].PageNum())
	assert.Equal(t, 780.0, elements[0].Y0)
	assert.Zero(t, elements[0].X0)

	assert.Equal(t, domain.ElementTable, elements[1].Type)
	assert.Equal(t, 0, elements[1].Metadata[domain.MetaTableIndex])
	assert.Equal(t, 760.0, elements[1].Y0)
}

func TestPageElements_EmptyPage(t *testing.T) {
	assert.Empty(t, PageElements(1, nil))
}
