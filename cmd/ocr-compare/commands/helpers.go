package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/troyyang/ocr-compare/internal/analysis"
	"github.com/troyyang/ocr-compare/internal/cache"
	"github.com/troyyang/ocr-compare/internal/config"
	"github.com/troyyang/ocr-compare/internal/engine"
	"github.com/troyyang/ocr-compare/internal/engine/tesseract"
	"github.com/troyyang/ocr-compare/internal/extraction"
	"github.com/troyyang/ocr-compare/internal/metrics"
	"github.com/troyyang/ocr-compare/internal/observability"
	"github.com/troyyang/ocr-compare/internal/pdf"
	"github.com/troyyang/ocr-compare/internal/progress"
	"github.com/troyyang/ocr-compare/internal/selection"
	"github.com/troyyang/ocr-compare/internal/service"
	"github.com/troyyang/ocr-compare/internal/storage"
)

// loadConfig reads --config and applies --verbose.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		Output:      os.Stderr,
		ServiceName: cfg.Observability.ServiceName,
	})
}

func newAnalyzer(cfg *config.Config) *analysis.Analyzer {
	return analysis.New(analysis.FromConfig(cfg.Analysis))
}

// newOrchestrator builds the engine registry and the extraction pipeline.
func newOrchestrator(cfg *config.Config, collector *metrics.Collector, logger *observability.Logger) (*extraction.Orchestrator, error) {
	factories := engine.Factories(cfg.Engines, tesseract.Factory(tesseract.Options{
		Languages:   cfg.Engines.Languages,
		PageSegMode: cfg.Engines.Tesseract.PageSegMode,
	}))
	registry, err := engine.NewRegistry(cfg.Engines.Requested, factories, logger)
	if err != nil {
		return nil, err
	}

	orch, err := extraction.New(extraction.Deps{
		Registry: registry,
		Classifier: pdf.NewClassifier(pdf.ClassifierOptions{
			TextThreshold:    cfg.Classifier.TextThreshold,
			ScannedThreshold: cfg.Classifier.ScannedThreshold,
		}, logger),
		Digital: pdf.NewDigitalExtractor(logger),
		Rasterizer: pdf.NewRasterizer(pdf.RasterizerOptions{
			DPI:         cfg.Rasterizer.DPI,
			JPEGQuality: cfg.Rasterizer.JPEGQuality,
		}, logger),
		Selector: selection.New(selection.Options{
			ConfidenceWeight: cfg.Selection.ConfidenceWeight,
			LengthWeight:     cfg.Selection.LengthWeight,
			LengthNormalizer: cfg.Selection.LengthNormalizer,
		}),
		Metrics: collector,
		Logger:  logger,
	}, extraction.OptionsFromConfig(cfg))
	if err != nil {
		_ = registry.Close()
		return nil, err
	}
	return orch, nil
}

// app bundles what the doc commands share.
type app struct {
	cfg         *config.Config
	logger      *observability.Logger
	db          *sql.DB
	cacheClient cache.Client
	orch        *extraction.Orchestrator
	svc         *service.Service
}

// openApp connects storage and the cache. Engines are started only when
// withParser is set.
func openApp(ctx context.Context, withParser bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: newLogger(cfg)}

	a.db, err = storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a.cacheClient, err = cache.New(cfg.Cache)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Parse cache disabled")
		a.cacheClient = nil
	}

	var parser service.Parser
	if withParser {
		a.orch, err = newOrchestrator(cfg, metrics.NewCollector(), a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		parser = a.orch
	}

	a.svc = service.New(a.db, parser, newAnalyzer(cfg), cache.NewParseCache(a.cacheClient, cfg.Cache.TTL),
		a.logger, service.Options{UploadDir: cfg.Storage.UploadDir, ExportDir: cfg.Storage.ExportDir})
	return a, nil
}

// notifier returns the configured progress sink for one document and a
// function releasing it.
func (a *app) notifier(docID uuid.UUID) (progress.Notifier, func()) {
	id := docID.String()
	if a.cfg.Progress.Driver != "redis" {
		return progress.NewLog(id, a.logger), func() {}
	}

	if pub, ok := a.cacheClient.(cache.Publisher); ok {
		return progress.NewRedis(pub, a.cfg.Progress.Channel, id, a.logger), func() {}
	}
	r := a.cfg.Cache.Redis
	client, err := cache.NewRedisClient(cache.RedisConfig{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		PoolSize: r.PoolSize,
		Prefix:   r.Prefix,
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("Redis progress unavailable, logging instead")
		return progress.NewLog(id, a.logger), func() {}
	}
	return progress.NewRedis(client, a.cfg.Progress.Channel, id, a.logger), func() { _ = client.Close() }
}

// Close releases engines, the cache and the database.
func (a *app) Close() {
	if a.orch != nil {
		if err := a.orch.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close engines")
		}
	}
	if a.cacheClient != nil {
		_ = a.cacheClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// currentUser is the owner recorded on stored documents.
func currentUser(flag string) string {
	if flag != "" {
		return flag
	}
	if u := os.Getenv("OCR_USER"); u != "" {
		return u
	}
	return "local"
}

func parseDocumentID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid document id %q: %w", s, err)
	}
	return id, nil
}
