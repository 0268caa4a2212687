package engine

import (
	"errors"
	"io"
	"strings"

	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/observability"
)

// FallbackEngine is the engine substituted for anything that cannot start.
const FallbackEngine = "tesseract"

// Registry holds the engines actually initialised for an orchestrator.
// It is built once and reused across documents.
type Registry struct {
	engines []Engine
	byName  map[string]Engine
}

// NewRegistry builds engines in request order. Names are lowercased and
// deduplicated. An unknown or unavailable engine is replaced by the
// tesseract factory, which is registered at most once.
func NewRegistry(requested []string, factories map[string]Factory, logger *observability.Logger) (*Registry, error) {
	logger = observability.OrDefault(logger)
	r := &Registry{byName: make(map[string]Engine)}

	seen := make(map[string]bool)
	for _, raw := range requested {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if _, ok := r.byName[name]; ok {
			continue
		}

		factory, ok := factories[name]
		if !ok {
			logger.Warn().Str("engine", name).Msgf("Unknown OCR engine: %s. Using Tesseract.", name)
			r.addFallback(factories, logger)
			continue
		}

		eng, err := factory()
		if err != nil {
			logger.Warn().Str("engine", name).Err(err).Msgf("%s not available. Falling back to Tesseract.", name)
			r.addFallback(factories, logger)
			continue
		}
		r.add(name, eng, logger)
	}

	if len(r.engines) == 0 {
		return nil, domain.ConfigError("no OCR engine could be initialised", nil)
	}
	return r, nil
}

func (r *Registry) addFallback(factories map[string]Factory, logger *observability.Logger) {
	if _, ok := r.byName[FallbackEngine]; ok {
		return
	}
	factory, ok := factories[FallbackEngine]
	if !ok {
		logger.Error().Msg("tesseract fallback is not registered")
		return
	}
	eng, err := factory()
	if err != nil {
		logger.Error().Err(err).Msg("tesseract fallback unavailable")
		return
	}
	r.add(FallbackEngine, eng, logger)
}

func (r *Registry) add(name string, eng Engine, logger *observability.Logger) {
	r.engines = append(r.engines, eng)
	r.byName[name] = eng
	logger.Info().Str("engine", name).Msg("OCR engine initialized")
}

// Engines returns engines in registration order.
func (r *Registry) Engines() []Engine {
	out := make([]Engine, len(r.engines))
	copy(out, r.engines)
	return out
}

// Names returns the registered engine names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for _, e := range r.engines {
		names = append(names, e.Name())
	}
	return names
}

// Get looks an engine up by its lowercased name.
func (r *Registry) Get(name string) (Engine, bool) {
	e, ok := r.byName[strings.ToLower(name)]
	return e, ok
}

// Len returns the number of engines.
func (r *Registry) Len() int { return len(r.engines) }

// Close releases engines that hold native resources.
func (r *Registry) Close() error {
	var errs []error
	for _, e := range r.engines {
		if c, ok := e.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
