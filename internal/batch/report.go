package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/troyyang/ocr-compare/internal/analysis"
	"github.com/troyyang/ocr-compare/internal/domain"
)

// csvHeader is shared by the CSV and the XLSX summary sheet.
var csvHeader = []string{
	"file_name", "file_type", "file_size_mb", "total_time_s",
	"engine", "text_length", "confidence", "processing_time_ms", "chars_per_second",
}

const (
	summarySheet = "summary"
	enginesSheet = "engines"
)

func (r *Runner) save(report *Report) (Artifacts, error) {
	now := r.opts.Now()
	ts := now.Format("20060102_150405")
	dir := r.opts.OutputDir
	var art Artifacts

	art.JSON = filepath.Join(dir, fmt.Sprintf("benchmark_results_%s.json", ts))
	if err := WriteJSON(art.JSON, report); err != nil {
		return art, err
	}

	rows := Rows(report.Results)
	if len(rows) > 0 {
		art.CSV = filepath.Join(dir, fmt.Sprintf("benchmark_summary_%s.csv", ts))
		if err := WriteCSV(art.CSV, rows); err != nil {
			return art, err
		}
	}

	art.Markdown = filepath.Join(dir, fmt.Sprintf("benchmark_report_%s.md", ts))
	md := MarkdownReport(report.Analysis, now.Format("2006-01-02 15:04:05"))
	if err := os.WriteFile(art.Markdown, []byte(md), 0o644); err != nil {
		return art, domain.IOError("write markdown report", err)
	}

	if r.opts.WriteXLSX {
		art.XLSX = filepath.Join(dir, fmt.Sprintf("benchmark_summary_%s.xlsx", ts))
		if err := WriteXLSX(art.XLSX, rows, report.Analysis.EnginePerformance); err != nil {
			return art, err
		}
	}

	if r.metrics != nil {
		art.Metrics = filepath.Join(dir, fmt.Sprintf("metrics_%s.prom", ts))
		if err := r.metrics.WriteTextfile(art.Metrics); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to write metrics textfile")
			art.Metrics = ""
		}
	}
	return art, nil
}

// WriteJSON dumps the full report with two-space indentation.
func WriteJSON(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.IOError("write json report", err)
	}
	return nil
}

// Row is one file x engine line of the flattened summary.
type Row struct {
	FileName         string
	FileType         string
	FileSizeMB       float64
	TotalTimeS       float64
	Engine           string
	TextLength       int
	Confidence       float64
	ProcessingTimeMS float64
	CharsPerSecond   float64
}

// Rows flattens the per-file results, skipping files that failed.
func Rows(results []FileResult) []Row {
	var rows []Row
	for _, res := range results {
		if res.Error != "" {
			continue
		}
		res.Engines.Each(func(name string, m EngineMetrics) bool {
			rows = append(rows, Row{
				FileName:         res.FileName,
				FileType:         res.FileType,
				FileSizeMB:       float64(res.FileSize) / bytesPerMB,
				TotalTimeS:       res.TotalProcessingTime,
				Engine:           name,
				TextLength:       m.TextLength,
				Confidence:       m.Confidence,
				ProcessingTimeMS: m.ProcessingTimeMS,
				CharsPerSecond:   m.CharsPerSecond,
			})
			return true
		})
	}
	return rows
}

func (row Row) record() []string {
	return []string{
		row.FileName,
		row.FileType,
		formatFloat(row.FileSizeMB),
		formatFloat(row.TotalTimeS),
		row.Engine,
		strconv.Itoa(row.TextLength),
		formatFloat(row.Confidence),
		formatFloat(row.ProcessingTimeMS),
		formatFloat(row.CharsPerSecond),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes the flattened rows with a header line.
func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return domain.IOError("create csv report", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return domain.IOError("write csv report", err)
	}
	for _, row := range rows {
		if err := w.Write(row.record()); err != nil {
			return domain.IOError("write csv report", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return domain.IOError("write csv report", err)
	}
	return nil
}

// MarkdownReport renders the human-readable run report. generated is the
// preformatted report time.
func MarkdownReport(a *Analysis, generated string) string {
	ov := a.Overview
	lines := []string{
		"# OCR Engine Benchmark Report",
		"",
		fmt.Sprintf("**Generated:** %s", generated),
		"",
		"## Overview",
		"",
		fmt.Sprintf("- **Total files processed:** %d", ov.TotalFiles),
		fmt.Sprintf("- **Successful processes:** %d", ov.SuccessfulFiles),
		fmt.Sprintf("- **Success rate:** %s", percent(ov.SuccessRate)),
		fmt.Sprintf("- **Engines tested:** %s", strings.Join(ov.EnginesTested, ", ")),
		"",
		"## Engine Performance Comparison",
		"",
		"| Engine | Confidence | Speed (chars/s) | Success Rate | Cost/Page |",
		"|--------|------------|----------------|--------------|-----------|",
	}

	a.EnginePerformance.Each(func(name string, s analysis.EnginePerformanceStats) bool {
		lines = append(lines, fmt.Sprintf("| %s | %s | %.0f | %s | $%.4f |",
			name, percent(s.AvgConfidence), s.AvgCharsPerSecond, percent(s.SuccessRate), s.EstimatedCostPerPage))
		return true
	})

	if a.Recommendations != nil && a.Recommendations.Summary != "" {
		lines = append(lines, "", a.Recommendations.Summary)
	}
	return strings.Join(lines, "\n")
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// WriteXLSX writes the flattened rows to a "summary" sheet and the
// per-engine statistics to an "engines" sheet.
func WriteXLSX(path string, rows []Row, perf *analysis.Performance) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	writeRow(f, summarySheet, 1, toAny(csvHeader))
	for i, row := range rows {
		writeRow(f, summarySheet, i+2, []any{
			row.FileName, row.FileType, row.FileSizeMB, row.TotalTimeS, row.Engine,
			row.TextLength, row.Confidence, row.ProcessingTimeMS, row.CharsPerSecond,
		})
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 32)
	_ = f.SetColWidth(summarySheet, "E", "E", 14)

	if _, err := f.NewSheet(enginesSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	writeRow(f, enginesSheet, 1, []any{
		"engine", "files_processed", "success_rate", "avg_confidence",
		"avg_processing_time_ms", "avg_chars_per_second", "total_chars_extracted", "estimated_cost_per_page",
	})
	line := 2
	perf.Each(func(name string, s analysis.EnginePerformanceStats) bool {
		writeRow(f, enginesSheet, line, []any{
			name, s.FilesProcessed, s.SuccessRate, s.AvgConfidence,
			s.AvgProcessingTimeMS, s.AvgCharsPerSecond, s.TotalCharsExtracted, s.EstimatedCostPerPage,
		})
		line++
		return true
	})

	if idx, err := f.GetSheetIndex(summarySheet); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.SaveAs(path); err != nil {
		return domain.IOError("write xlsx report", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
