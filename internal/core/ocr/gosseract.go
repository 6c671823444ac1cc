//go:build gosseract

package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/record"
)

func init() {
	RegisterEngine("gosseract", func(cfg Config, _ Runner, logger *slog.Logger) (Engine, error) {
		return NewGosseractEngine(cfg, logger), nil
	})
}

// GosseractEngine recognizes pages in-process through libtesseract.
type GosseractEngine struct {
	cfg    Config
	logger *slog.Logger
}

func NewGosseractEngine(cfg Config, logger *slog.Logger) *GosseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &GosseractEngine{cfg: cfg.withDefaults(), logger: logger}
}

func (e *GosseractEngine) Recognize(ctx context.Context, imagePath string, page int) (record.PageResult, error) {
	if err := ctx.Err(); err != nil {
		return record.PageResult{}, common.NewOCRError(page, "cancelled", err)
	}
	start := time.Now()
	logger := common.LoggerFor(ctx, e.logger).With("page", page)

	client := gosseract.NewClient()
	defer client.Close()

	if e.cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			return record.PageResult{}, common.NewOCRError(page, "set tessdata prefix", err)
		}
	}
	if err := client.SetLanguage(strings.Split(e.cfg.Lang, "+")...); err != nil {
		return record.PageResult{}, common.NewOCRError(page, "set language", err)
	}
	if e.cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return record.PageResult{}, common.NewOCRError(page, "set page segmentation mode", err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return record.PageResult{}, common.NewOCRError(page, "image unreadable", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return record.PageResult{}, common.NewOCRError(page, "recognize words", err)
	}
	text, err := client.Text()
	if err != nil {
		return record.PageResult{}, common.NewOCRError(page, "recognize text", err)
	}

	res := record.PageResult{Page: page, Text: Normalize(text), Words: make([]record.Word, 0, len(boxes))}
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" {
			continue
		}
		box := record.NewBoundingBox(float64(b.Box.Min.X), float64(b.Box.Min.Y), float64(b.Box.Max.X), float64(b.Box.Max.Y))
		res.Words = append(res.Words, record.NewWord(w, box, page))
	}

	logger.Debug("ocr.page.ok",
		"engine", "gosseract",
		"words", len(res.Words),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
