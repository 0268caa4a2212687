package domain

import (
	"unicode/utf8"
)

// Metadata keys understood across the pipeline.
const (
	MetaError          = "error"
	MetaPagesProcessed = "pages_processed"
	MetaPageErrors     = "page_errors"
	MetaEstimatedCost  = "estimated_cost"
	MetaFilePath       = "file_path"
	MetaFileSize       = "file_size"
	MetaTimestamp      = "timestamp"
	MetaPageNum        = "page_num"
	MetaTableIndex     = "table_index"
)

// DefaultConfidence is assigned when an engine reports no confidence of its own.
const DefaultConfidence = 0.5

// FileType is the coarse input kind.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"
)

// ProcessingMethod names the path a document took through the orchestrator.
type ProcessingMethod string

const (
	MethodDigitalExtraction ProcessingMethod = "digital_extraction"
	MethodOCR               ProcessingMethod = "ocr"
)

// ElementType is the kind of a digitally extracted document element.
type ElementType string

const (
	ElementText  ElementType = "text"
	ElementTable ElementType = "table"
)

// OCRResult is one engine's output for one page or for a whole document.
type OCRResult struct {
	EngineName       string                 `json:"engine_name"`
	Text             string                 `json:"text"`
	Confidence       float64                `json:"confidence"`
	ProcessingTimeMS float64                `json:"processing_time_ms"`
	PageNum          int                    `json:"page_num"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Failed reports whether metadata has an error key, whatever its value.
func (r OCRResult) Failed() bool {
	_, ok := r.Metadata[MetaError]
	return ok
}

// Error returns the error tag, or "" for a successful result. A tag without
// a usable message reads "unknown error".
func (r OCRResult) Error() string {
	if !r.Failed() {
		return ""
	}
	if s, ok := r.Metadata[MetaError].(string); ok && s != "" {
		return s
	}
	return "unknown error"
}

// Succeeded is true when the result has text and no error tag.
func (r OCRResult) Succeeded() bool {
	return r.Text != "" && !r.Failed()
}

// TextLength counts characters, not bytes.
func (r OCRResult) TextLength() int {
	return utf8.RuneCountInString(r.Text)
}

// CharsPerSecond is zero when no time was recorded.
func (r OCRResult) CharsPerSecond() float64 {
	if r.ProcessingTimeMS <= 0 {
		return 0
	}
	return float64(r.TextLength()) / (r.ProcessingTimeMS / 1000)
}

// MetaInt reads an integer metadata value, tolerating float64 from decoded JSON.
func (r OCRResult) MetaInt(key string) (int, bool) {
	switch v := r.Metadata[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// MetaFloat reads a numeric metadata value.
func (r OCRResult) MetaFloat(key string) (float64, bool) {
	switch v := r.Metadata[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Results maps engine name to result, preserving insertion order.
type Results = OrderedMap[OCRResult]

// NewResults creates an empty ordered result map.
func NewResults() *Results {
	return NewOrderedMap[OCRResult]()
}

// DocumentElement is a structural unit of a digitally extracted page.
type DocumentElement struct {
	Type     ElementType            `json:"type"`
	Content  string                 `json:"content"`
	Y0       float64                `json:"y0"`
	X0       float64                `json:"x0"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PageNum returns the 1-based page the element came from, or 0.
func (e DocumentElement) PageNum() int {
	switch v := e.Metadata[MetaPageNum].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// PageImage represents a single rasterized page
type PageImage struct {
	PageNumber int    `json:"page_number"`
	ImagePath  string `json:"image_path"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// PageInfo is what the classifier learns about one PDF page.
type PageInfo struct {
	Number     int `json:"number"`
	TextLength int `json:"text_length"`
	ImageCount int `json:"image_count"`
}

// Classification is the classifier verdict for one PDF.
type Classification struct {
	TotalPages   int        `json:"total_pages"`
	Pages        []PageInfo `json:"pages"`
	ScannedPages []int      `json:"scanned_pages"`
	ScannedRatio float64    `json:"scanned_ratio"`
	IsScanned    bool       `json:"is_scanned"`
}

// RequiresOCR is true as soon as one page is scanned; mixed documents are OCR'd whole.
func (c *Classification) RequiresOCR() bool {
	return c.IsScanned || len(c.ScannedPages) > 0
}

// DigitalDocument is the output of direct text-layer extraction.
type DigitalDocument struct {
	TotalPages int               `json:"total_pages"`
	Elements   []DocumentElement `json:"elements"`
}

// ComparisonData summarises competing engine results.
type ComparisonData struct {
	EngineCount       int                  `json:"engine_count"`
	AvgConfidence     float64              `json:"avg_confidence"`
	AvgProcessingTime float64              `json:"avg_processing_time"`
	TextLengths       *OrderedMap[int]     `json:"text_lengths"`
	Confidences       *OrderedMap[float64] `json:"confidences"`
	ProcessingTimes   *OrderedMap[float64] `json:"processing_times"`
}

// ParseOutput is the unified result of parsing one document.
type ParseOutput struct {
	FilePath         string           `json:"file_path"`
	FileType         FileType         `json:"file_type"`
	ProcessingMethod ProcessingMethod `json:"processing_method"`
	TotalPages       int              `json:"total_pages"`
	Results          *Results         `json:"results"`
	BestResult       *OCRResult       `json:"best_result"`
	Summary          *ComparisonData  `json:"summary"`
	PageResults      []OCRResult      `json:"page_results,omitempty"`
	MarkdownPath     string           `json:"markdown_path,omitempty"`
	PreviewPath      string           `json:"preview_path,omitempty"`
}
