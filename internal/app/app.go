package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core"
	"github.com/joseph-ayodele/medextract/internal/core/classify"
	"github.com/joseph-ayodele/medextract/internal/core/extract"
	"github.com/joseph-ayodele/medextract/internal/core/llm"
	"github.com/joseph-ayodele/medextract/internal/core/llm/openai"
	"github.com/joseph-ayodele/medextract/internal/core/llm/vertex"
	"github.com/joseph-ayodele/medextract/internal/core/ocr"
)

// App is the assembled pipeline shared by the daemon and the CLI.
type App struct {
	Processor *core.Processor
	Model     string

	tools   []string
	closers []func() error
}

// Build wires rasterizer, OCR engine, extraction stage, classification
// service and processor from cfg.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	return BuildWithRunner(ctx, cfg, ocr.ExecRunner{}, logger)
}

// BuildWithRunner is Build with an explicit command runner for the external
// OCR tools.
func BuildWithRunner(ctx context.Context, cfg *common.Config, runner ocr.Runner, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ocrCfg := ocr.ConfigFrom(cfg.OCR)
	raster := ocr.NewRasterizer(ocrCfg, runner, logger)
	engine, err := ocr.NewEngine(ocrCfg, runner, logger)
	if err != nil {
		return nil, err
	}
	extractor := extract.NewStage(raster, engine, extract.Config{
		ScratchRoot: cfg.Pipeline.ScratchDir,
		Workers:     cfg.OCR.Workers,
	}, logger)

	svc, model, closeFn, err := NewCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Processor: core.NewProcessor(logger, extractor, classify.NewStage(svc, logger)),
		Model:     model,
		tools:     ocrCfg.Tools(),
	}
	if closeFn != nil {
		a.closers = append(a.closers, closeFn)
	}

	logger.Info("app.ready",
		"ocr_engine", cfg.OCR.Engine,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", model,
		"scratch_dir", cfg.Pipeline.ScratchDir,
	)
	return a, nil
}

// NewCompleter builds the classification service named by cfg.Provider. The
// returned close function may be nil.
func NewCompleter(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, string, func() error, error) {
	switch cfg.Provider {
	case "", "openai":
		c := openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		return c, c.Model(), nil, nil
	case "vertex":
		c, err := vertex.NewClient(ctx, vertex.Config{
			Project:     cfg.Vertex.Project,
			Region:      cfg.Vertex.Region,
			Model:       cfg.Vertex.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, "", nil, err
		}
		return c, c.Model(), c.Close, nil
	default:
		return nil, "", nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// CheckTools reports whether the external OCR binaries are available.
func (a *App) CheckTools() error {
	return ocr.CheckTools(a.tools...)
}

// Close releases the classification client.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
