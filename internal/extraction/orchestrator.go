// Package extraction routes a document through digital extraction or
// multi-engine OCR and folds the outcome into one ParseOutput.
package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/troyyang/ocr-compare/internal/config"
	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/engine"
	"github.com/troyyang/ocr-compare/internal/metrics"
	"github.com/troyyang/ocr-compare/internal/observability"
	"github.com/troyyang/ocr-compare/internal/pdf"
	"github.com/troyyang/ocr-compare/internal/progress"
	"github.com/troyyang/ocr-compare/internal/selection"
)

// DigitalEngineName keys the single result of the digital extraction path.
const DigitalEngineName = "pdftext"

// pdfSteps is the coarse step count reported for PDF stage transitions.
const pdfSteps = 5

// Classifier decides whether a PDF needs OCR.
type Classifier interface {
	Classify(ctx context.Context, path string) (*domain.Classification, error)
}

// DigitalExtractor reads a PDF text layer.
type DigitalExtractor interface {
	Extract(ctx context.Context, path string) (*domain.DigitalDocument, error)
}

// Rasterizer renders PDF pages to images.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, pages []int, outDir string) ([]domain.PageImage, error)
	Cleanup(dir string) error
}

// Options configures an Orchestrator.
type Options struct {
	Workers      int
	OutputDir    string
	SaveMarkdown bool
	KeepImages   bool
	Preview      bool
	PreviewScale float64
	CallTimeout  time.Duration
}

// DefaultOptions returns two workers writing under "output".
func DefaultOptions() Options {
	return Options{
		Workers:      2,
		OutputDir:    "output",
		SaveMarkdown: true,
		KeepImages:   true,
		PreviewScale: 0.15,
		CallTimeout:  engine.DefaultCallTimeout,
	}
}

// OptionsFromConfig gathers orchestrator settings from the config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:      cfg.Orchestrator.Workers,
		OutputDir:    cfg.Orchestrator.OutputDir,
		SaveMarkdown: cfg.Orchestrator.SaveMarkdown,
		KeepImages:   cfg.Rasterizer.KeepImages,
		Preview:      cfg.Rasterizer.Preview,
		PreviewScale: cfg.Rasterizer.PreviewScale,
		CallTimeout:  cfg.Engines.CallTimeout,
	}
}

// Deps are the collaborators of an Orchestrator. Registry, Classifier,
// Digital and Rasterizer are required.
type Deps struct {
	Registry   *engine.Registry
	Classifier Classifier
	Digital    DigitalExtractor
	Rasterizer Rasterizer
	Selector   *selection.Selector
	Metrics    *metrics.Collector
	Logger     *observability.Logger
}

// Orchestrator parses documents with every registered engine. Engines are
// initialised once in the registry and reused across documents.
type Orchestrator struct {
	registry   *engine.Registry
	classifier Classifier
	digital    DigitalExtractor
	rasterizer Rasterizer
	validator  *pdf.Validator
	selector   *selection.Selector
	metrics    *metrics.Collector
	logger     *observability.Logger
	opts       Options
}

// New validates deps and applies option defaults.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Registry.Len() == 0 {
		return nil, domain.ConfigError("orchestrator requires at least one engine", nil)
	}
	if deps.Classifier == nil || deps.Digital == nil || deps.Rasterizer == nil {
		return nil, domain.ConfigError("orchestrator requires a classifier, digital extractor and rasterizer", nil)
	}

	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.OutputDir == "" {
		opts.OutputDir = def.OutputDir
	}
	if opts.PreviewScale <= 0 {
		opts.PreviewScale = def.PreviewScale
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = def.CallTimeout
	}

	selector := deps.Selector
	if selector == nil {
		selector = selection.New(selection.DefaultOptions())
	}

	return &Orchestrator{
		registry:   deps.Registry,
		classifier: deps.Classifier,
		digital:    deps.Digital,
		rasterizer: deps.Rasterizer,
		validator:  pdf.NewValidator(),
		selector:   selector,
		metrics:    deps.Metrics,
		logger:     observability.OrDefault(deps.Logger),
		opts:       opts,
	}, nil
}

// Engines lists the initialised engine names in request order.
func (o *Orchestrator) Engines() []string {
	return o.registry.Names()
}

// Close releases engine resources.
func (o *Orchestrator) Close() error {
	return o.registry.Close()
}

// Parse runs one document end to end. Engine failures are recorded in the
// results; document failures abort and return an error.
func (o *Orchestrator) Parse(ctx context.Context, path string, notifier progress.Notifier) (*domain.ParseOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notifier = &syncNotifier{n: progress.OrNoop(notifier)}
	if observability.RunIDFromContext(ctx) == "" {
		ctx = observability.ContextWithRunID(ctx, uuid.NewString())
	}
	logger := o.logger.ForRun(ctx).WithDocument(path)

	fileType, err := o.validator.ValidateDocumentPath(path)
	if err != nil {
		return nil, err
	}

	var out *domain.ParseOutput
	switch fileType {
	case domain.FileTypeImage:
		out, err = o.parseImage(ctx, path, notifier, logger)
	default:
		out, err = o.parsePDF(ctx, path, notifier, logger)
	}
	if err != nil {
		return nil, err
	}

	out.BestResult = o.selector.SelectBest(out.Results)
	out.Summary = selection.Compare(out.Results)
	o.metrics.DocumentProcessed(string(out.ProcessingMethod))

	logger.Info().
		Str("method", string(out.ProcessingMethod)).
		Int("pages", out.TotalPages).
		Strs("engines", out.Results.Keys()).
		Msg("Document parsed")
	return out, nil
}

func (o *Orchestrator) parseImage(ctx context.Context, path string, notifier progress.Notifier, logger *observability.Logger) (*domain.ParseOutput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.DocumentError(fmt.Sprintf("cannot stat %s", path), err)
	}
	width, height, err := pdf.ImageSize(path)
	if err != nil {
		logger.Debug().Err(err).Msg("Could not read image dimensions")
	}

	logger.Debug().Str("state", progress.StageOCR).Msg("Processing image")
	page := domain.PageImage{PageNumber: 1, ImagePath: path, Width: width, Height: height}
	pageResults := o.runEngines(ctx, []domain.PageImage{page}, notifier, logger)

	results := domain.NewResults()
	timestamp := time.Now().Format(time.RFC3339)
	for _, r := range pageResults {
		if !r.Failed() {
			if r.Metadata == nil {
				r.Metadata = map[string]interface{}{}
			}
			r.Metadata[domain.MetaFilePath] = path
			r.Metadata[domain.MetaFileSize] = info.Size()
			r.Metadata[domain.MetaTimestamp] = timestamp
			if width > 0 {
				r.Metadata["width"] = width
				r.Metadata["height"] = height
			}
		}
		results.Set(r.EngineName, r)
	}

	return &domain.ParseOutput{
		FilePath:         path,
		FileType:         domain.FileTypeImage,
		ProcessingMethod: domain.MethodOCR,
		TotalPages:       1,
		Results:          results,
		PageResults:      pageResults,
	}, nil
}

func (o *Orchestrator) parsePDF(ctx context.Context, path string, notifier progress.Notifier, logger *observability.Logger) (*domain.ParseOutput, error) {
	logger.Debug().Str("state", progress.StageClassifying).Msg("State transition")
	notifier.Update(ctx, progress.StageClassifying, 1, pdfSteps, "Classifying PDF pages...")

	cls, err := o.classifier.Classify(ctx, path)
	if err != nil {
		return nil, err
	}

	if !cls.RequiresOCR() {
		return o.extractDigital(ctx, path, cls, notifier, logger)
	}
	return o.extractOCR(ctx, path, cls, notifier, logger)
}

func (o *Orchestrator) extractDigital(ctx context.Context, path string, cls *domain.Classification, notifier progress.Notifier, logger *observability.Logger) (*domain.ParseOutput, error) {
	logger.Debug().Str("state", progress.StageDigital).Msg("State transition")
	notifier.Update(ctx, progress.StageDigital, 2, pdfSteps, "Extracting text layer...")

	start := time.Now()
	doc, err := o.digital.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	markdown := RenderMarkdown(doc.Elements)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	totalPages := cls.TotalPages
	if doc.TotalPages > 0 {
		totalPages = doc.TotalPages
	}

	notifier.Update(ctx, progress.StageAggregating, 4, pdfSteps, "Building results...")
	results := domain.NewResults()
	results.Set(DigitalEngineName, domain.OCRResult{
		EngineName:       DigitalEngineName,
		Text:             markdown,
		Confidence:       1.0,
		ProcessingTimeMS: elapsed,
		PageNum:          totalPages,
		Metadata:         map[string]interface{}{domain.MetaPagesProcessed: totalPages},
	})

	out := &domain.ParseOutput{
		FilePath:         path,
		FileType:         domain.FileTypePDF,
		ProcessingMethod: domain.MethodDigitalExtraction,
		TotalPages:       totalPages,
		Results:          results,
	}

	if o.opts.SaveMarkdown {
		mdPath, err := o.saveMarkdown(path, markdown)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to save markdown")
		} else {
			out.MarkdownPath = mdPath
		}
	}
	return out, nil
}

func (o *Orchestrator) extractOCR(ctx context.Context, path string, cls *domain.Classification, notifier progress.Notifier, logger *observability.Logger) (*domain.ParseOutput, error) {
	pages := cls.ScannedPages
	if len(pages) == 0 {
		pages = make([]int, cls.TotalPages)
		for i := range pages {
			pages[i] = i + 1
		}
	}
	logger.Info().Int("scanned_pages", len(cls.ScannedPages)).Msgf("Processing PDF with %d scanned pages using OCR", len(cls.ScannedPages))

	logger.Debug().Str("state", progress.StageRasterizing).Msg("State transition")
	notifier.Update(ctx, progress.StageRasterizing, 2, pdfSteps, fmt.Sprintf("Rendering %d pages...", len(pages)))

	runDir := filepath.Join(o.opts.OutputDir, "images", uuid.NewString())
	images, err := o.rasterizer.Rasterize(ctx, path, pages, runDir)
	if err != nil {
		return nil, err
	}
	o.metrics.PagesRasterized(len(images))
	if !o.opts.KeepImages {
		defer func() {
			if err := o.rasterizer.Cleanup(runDir); err != nil {
				logger.Warn().Err(err).Str("dir", runDir).Msg("Failed to remove page images")
			}
		}()
	}

	out := &domain.ParseOutput{
		FilePath:         path,
		FileType:         domain.FileTypePDF,
		ProcessingMethod: domain.MethodOCR,
		TotalPages:       cls.TotalPages,
	}

	if o.opts.Preview {
		out.PreviewPath = o.writePreview(path, images, logger)
	}

	logger.Debug().Str("state", progress.StageOCR).Msg("State transition")
	out.PageResults = o.runEngines(ctx, images, notifier, logger)

	logger.Debug().Str("state", progress.StageAggregating).Msg("State transition")
	notifier.Update(ctx, progress.StageAggregating, 4, pdfSteps, "Aggregating page results...")
	out.Results = Aggregate(out.PageResults, o.registry.Names(), cls.TotalPages)
	return out, nil
}

// runEngines calls every engine on every page through a bounded pool. The
// returned slice is ordered by page, then by engine registration order.
func (o *Orchestrator) runEngines(ctx context.Context, pages []domain.PageImage, notifier progress.Notifier, logger *observability.Logger) []domain.OCRResult {
	engines := o.registry.Engines()
	total := len(pages) * len(engines)
	results := make([]domain.OCRResult, total)

	notifier.Update(ctx, progress.StageOCR, 0, total,
		fmt.Sprintf("Running %d engines on %d pages...", len(engines), len(pages)))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(o.opts.Workers)

	for i, page := range pages {
		for j, eng := range engines {
			idx := i*len(engines) + j
			page, eng := page, eng
			g.Go(func() error {
				r := engine.Invoke(ctx, eng, page.ImagePath, page.PageNumber, o.opts.CallTimeout)
				elapsed := time.Duration(r.ProcessingTimeMS * float64(time.Millisecond))
				o.metrics.ObserveEngineCall(eng.Name(), r.Failed(), elapsed)
				if r.Failed() {
					logger.Error().
						EngineCall(eng.Name(), page.PageNumber).
						Dur("elapsed", elapsed).
						Str("error", r.Error()).
						Msgf("Error with %s on page %d", eng.Name(), page.PageNumber)
				} else {
					logger.Debug().
						EngineCall(eng.Name(), page.PageNumber).
						Dur("elapsed", elapsed).
						Float64("confidence", r.Confidence).
						Msg("Engine call finished")
				}
				results[idx] = r

				mu.Lock()
				defer mu.Unlock()
				done++
				notifier.Update(ctx, progress.StageOCR, done, total,
					fmt.Sprintf("%s finished page %d", eng.Name(), page.PageNumber))
				return nil
			})
		}
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) saveMarkdown(sourcePath, content string) (string, error) {
	if err := os.MkdirAll(o.opts.OutputDir, 0o755); err != nil {
		return "", domain.IOError("create output directory", err)
	}
	out := filepath.Join(o.opts.OutputDir, stem(sourcePath)+"_converted.md")
	if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		return "", domain.IOError("write markdown", err)
	}
	return out, nil
}

func (o *Orchestrator) writePreview(sourcePath string, images []domain.PageImage, logger *observability.Logger) string {
	paths := make([]string, 0, len(images))
	for _, img := range images {
		paths = append(paths, img.ImagePath)
	}
	out := filepath.Join(o.opts.OutputDir, stem(sourcePath)+"_preview.jpg")
	if err := pdf.GeneratePreview(paths, out, o.opts.PreviewScale); err != nil {
		logger.Warn().Err(err).Msg("Failed to generate preview")
		return ""
	}
	return out
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// syncNotifier serialises calls from pool workers.
type syncNotifier struct {
	mu sync.Mutex
	n  progress.Notifier
}

func (s *syncNotifier) Update(ctx context.Context, stage string, current, total int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n.Update(ctx, stage, current, total, message)
}

func (s *syncNotifier) Complete(ctx context.Context, success bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n.Complete(ctx, success, message)
}
