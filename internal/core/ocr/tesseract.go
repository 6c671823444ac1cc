package ocr

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/record"
)

// TesseractEngine runs the tesseract CLI in TSV mode, one invocation per page.
type TesseractEngine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseractEngine(cfg Config, runner Runner, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractEngine{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string, page int) (record.PageResult, error) {
	start := time.Now()
	logger := common.LoggerFor(ctx, e.logger).With("page", page)

	if _, err := os.Stat(imagePath); err != nil {
		return record.PageResult{}, common.NewOCRError(page, "image unreadable", err)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, logger, e.args(imagePath)...)
	if err != nil {
		if ctx.Err() != nil {
			return record.PageResult{}, common.NewOCRError(page, "cancelled", ctx.Err())
		}
		if isNotFound(err) {
			return record.PageResult{}, common.NewOCRError(page, e.cfg.Tesseract+" not available", err)
		}
		msg := strings.TrimSpace(truncate(string(errb), 512))
		if msg == "" {
			msg = "tesseract failed"
		}
		return record.PageResult{}, common.NewOCRError(page, msg, err)
	}

	res, err := ParseTSV(out, page)
	if err != nil {
		return record.PageResult{}, common.NewOCRError(page, "unreadable tesseract output", err)
	}
	logger.Debug("ocr.page.ok",
		"words", len(res.Words),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// tesseract <img> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] tsv
func (e *TesseractEngine) args(imagePath string) []string {
	args := []string{imagePath, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, "tsv")
}
