package extract

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core/ocr"
	"github.com/joseph-ayodele/medextract/internal/record"
)

type Config struct {
	ScratchRoot string // parent of per-request scratch dirs
	Workers     int    // concurrent OCR pages per document, default 1
}

// Stage turns a PDF into per-page OCR results.
type Stage struct {
	raster ocr.Rasterizer
	engine ocr.Engine
	cfg    Config
	logger *slog.Logger
}

func NewStage(raster ocr.Rasterizer, engine ocr.Engine, cfg Config, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Stage{raster: raster, engine: engine, cfg: cfg, logger: logger}
}

// Extract rasterizes pdf into a fresh scratch directory and OCRs every page.
// Results are in page order whatever order the pages finish in. Each page
// image is deleted as soon as it has been recognized, and the scratch
// directory is removed on every return path.
func (s *Stage) Extract(ctx context.Context, pdf []byte) (pages []record.PageResult, err error) {
	start := time.Now()
	ctx, reqID := common.EnsureRequestID(ctx)
	logger := s.logger.With("req_id", reqID)

	scratch, err := AcquireScratch(s.cfg.ScratchRoot, reqID)
	if err != nil {
		return nil, common.NewResourceError("acquire scratch dir", err)
	}
	defer func() {
		if rerr := scratch.Release(); rerr != nil {
			logger.Error("extract.scratch.release_failed", "dir", scratch.Dir, "error", rerr)
			if err == nil {
				pages, err = nil, common.NewResourceError("release scratch dir", rerr)
			}
		}
	}()

	images, err := s.raster.Rasterize(ctx, pdf, scratch.Dir)
	if err != nil {
		logger.Error("extract.rasterize.failed", "error", err)
		if _, ok := common.AsStageError(err); !ok {
			err = common.NewRasterizationError("rasterize", err)
		}
		return nil, err
	}

	pages = make([]record.PageResult, len(images))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Workers)
	for i, img := range images {
		page := i + 1
		eg.Go(func() error {
			defer removeImage(logger, img)
			if err := egCtx.Err(); err != nil {
				return err
			}
			res, err := s.engine.Recognize(egCtx, img, page)
			if err != nil {
				logger.Error("extract.page.failed", "page", page, "error", err)
				if _, ok := common.AsStageError(err); !ok {
					err = common.NewOCRError(page, "recognize", err)
				}
				return err
			}
			pages[i] = cleanPage(res, page)
			logger.Debug("extract.page.ok", "page", page, "words", len(pages[i].Words))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	logger.Info("extract.ok",
		"pages", len(pages),
		"words", wordCount(pages),
		"workers", s.cfg.Workers,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

// cleanPage stamps page on every word, drops blank tokens and orders boxes.
func cleanPage(res record.PageResult, page int) record.PageResult {
	out := record.PageResult{Page: page, Text: res.Text, Words: make([]record.Word, 0, len(res.Words))}
	for _, w := range res.Words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		out.Words = append(out.Words, record.NewWord(text, w.BoundingBox, page))
	}
	return out
}

func removeImage(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("extract.image.remove_failed", "path", path, "error", err)
	}
}

func wordCount(pages []record.PageResult) int {
	n := 0
	for _, p := range pages {
		n += len(p.Words)
	}
	return n
}
