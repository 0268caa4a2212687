package engine

import (
	"net/http"

	"github.com/troyyang/ocr-compare/internal/config"
)

// ReaderEngines and CloudEngines list the HTTP-backed engine names.
var (
	ReaderEngines = []string{"easyocr", "paddleocr"}
	CloudEngines  = []string{"azure", "google", "aws"}
)

// Factories returns the factory table for every known engine. The native
// tesseract factory lives in its own package and is passed in.
func Factories(cfg config.EnginesConfig, tesseract Factory) map[string]Factory {
	client := &http.Client{Timeout: cfg.CallTimeout}
	out := make(map[string]Factory)

	for _, name := range ReaderEngines {
		name := name
		ep := cfg.Readers[name]
		out[name] = func() (Engine, error) {
			e, err := NewReaderEngine(name, ReaderOptions{
				Endpoint:  ep.Endpoint,
				Languages: cfg.Languages,
				UseGPU:    cfg.UseGPU,
				Client:    client,
			})
			if err != nil {
				return nil, err
			}
			return e, nil
		}
	}

	for _, name := range CloudEngines {
		name := name
		ep := cfg.Cloud[name]
		out[name] = func() (Engine, error) {
			e, err := NewCloudEngine(name, CloudOptions{
				Endpoint:  ep.Endpoint,
				APIKey:    ep.APIKey,
				Languages: cfg.Languages,
				Client:    client,
			})
			if err != nil {
				return nil, err
			}
			return e, nil
		}
	}

	if tesseract != nil {
		out[FallbackEngine] = tesseract
	}
	return out
}
