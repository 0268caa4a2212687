package pdf

import (
	"sort"
	"strings"
)

// Glyph is one positioned text run on a row.
type Glyph struct {
	X        float64
	W        float64
	FontSize float64
	S        string
}

// Line is one visual row of a page, split into cells on wide horizontal gaps.
type Line struct {
	Y     float64
	Cells []string
}

// Text joins the cells of a line with single spaces.
func (l Line) Text() string {
	return strings.Join(l.Cells, " ")
}

const (
	defaultFontSize = 10.0
	// gaps wider than wordGap*fontSize insert a space
	wordGap = 0.25
	// gaps wider than cellGap*fontSize start a new cell
	cellGap = 1.5

	minTableRows = 2
	minTableCols = 2
)

// BuildLine sorts glyphs left to right and groups them into cells.
func BuildLine(y float64, glyphs []Glyph) Line {
	sorted := make([]Glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	line := Line{Y: y}
	var cell strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cell.String()); s != "" {
			line.Cells = append(line.Cells, s)
		}
		cell.Reset()
	}

	prevEnd := 0.0
	for i, g := range sorted {
		size := g.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		if i > 0 {
			gap := g.X - prevEnd
			switch {
			case gap > cellGap*size:
				flush()
			case gap > wordGap*size && !strings.HasSuffix(cell.String(), " "):
				cell.WriteByte(' ')
			}
		}
		cell.WriteString(g.S)
		prevEnd = g.X + g.W
	}
	flush()
	return line
}

// Table is a run of column-aligned lines; the first line is the header.
type Table struct {
	Rows [][]string
}

// DetectTables finds runs of at least two consecutive lines that share the
// same cell count of at least two.
func DetectTables(lines []Line) []Table {
	var tables []Table
	i := 0
	for i < len(lines) {
		cols := len(lines[i].Cells)
		if cols < minTableCols {
			i++
			continue
		}
		j := i + 1
		for j < len(lines) && len(lines[j].Cells) == cols {
			j++
		}
		if j-i >= minTableRows {
			t := Table{}
			for _, l := range lines[i:j] {
				row := make([]string, cols)
				copy(row, l.Cells)
				t.Rows = append(t.Rows, row)
			}
			tables = append(tables, t)
		}
		i = j
	}
	return tables
}

// Markdown renders the table as a pipe table with the first row as header.
func (t Table) Markdown() string {
	if len(t.Rows) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(escapeCell(c))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(t.Rows[0])
	b.WriteString("|")
	for range t.Rows[0] {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range t.Rows[1:] {
		writeRow(r)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
