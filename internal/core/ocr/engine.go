package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/joseph-ayodele/medextract/internal/record"
)

// Engine recognizes one page image. Implementations must not modify the image.
// Failures are returned as *common.StageError of kind ErrOCR carrying page.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, page int) (record.PageResult, error)
}

// EngineFactory builds an Engine from configuration.
type EngineFactory func(cfg Config, runner Runner, logger *slog.Logger) (Engine, error)

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineFactory{
		"cli": func(cfg Config, runner Runner, logger *slog.Logger) (Engine, error) {
			return NewTesseractEngine(cfg, runner, logger), nil
		},
	}
)

// RegisterEngine makes an engine available to NewEngine under name.
func RegisterEngine(name string, f EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = f
}

// Engines lists registered engine names.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	out := make([]string, 0, len(engines))
	for n := range engines {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NewEngine builds the engine named by cfg.Engine.
func NewEngine(cfg Config, runner Runner, logger *slog.Logger) (Engine, error) {
	cfg = cfg.withDefaults()
	enginesMu.RLock()
	f, ok := engines[cfg.Engine]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ocr engine %q not available (registered: %v)", cfg.Engine, Engines())
	}
	return f(cfg, runner, logger)
}
