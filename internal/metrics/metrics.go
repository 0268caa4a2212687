// Package metrics exposes Prometheus collectors for the extraction pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine call outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Collector owns a private registry so several pipelines can coexist in one
// process. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	engineCalls        *prometheus.CounterVec
	engineCallDuration *prometheus.HistogramVec
	documents          *prometheus.CounterVec
	pagesRasterized    prometheus.Counter
}

// NewCollector creates and registers all collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		engineCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_engine_calls_total",
				Help: "Total number of OCR engine calls",
			},
			[]string{"engine", "status"},
		),
		engineCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocr_engine_call_duration_seconds",
				Help:    "Duration of OCR engine calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"engine"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_documents_total",
				Help: "Total number of documents parsed, by processing method",
			},
			[]string{"method"},
		),
		pagesRasterized: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ocr_pages_rasterized_total",
				Help: "Total number of PDF pages rendered to images",
			},
		),
	}

	c.registry.MustRegister(c.engineCalls, c.engineCallDuration, c.documents, c.pagesRasterized)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveEngineCall records one adapter invocation.
func (c *Collector) ObserveEngineCall(engine string, failed bool, d time.Duration) {
	if c == nil {
		return
	}
	status := StatusSuccess
	if failed {
		status = StatusError
	}
	c.engineCalls.WithLabelValues(engine, status).Inc()
	c.engineCallDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// DocumentProcessed counts one parsed document.
func (c *Collector) DocumentProcessed(method string) {
	if c == nil {
		return
	}
	c.documents.WithLabelValues(method).Inc()
}

// PagesRasterized adds n rendered pages.
func (c *Collector) PagesRasterized(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.pagesRasterized.Add(float64(n))
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
