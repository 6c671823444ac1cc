package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/medextract/internal/common"
)

const (
	inputName  = "input.pdf"
	pagePrefix = "page"
)

// Rasterizer renders a PDF into one image file per page, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, dir string) ([]string, error)
}

// PDFRasterizer shells out to pdftoppm after a pdfcpu structural preflight.
type PDFRasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewRasterizer(cfg Config, runner Runner, logger *slog.Logger) *PDFRasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDFRasterizer{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// Rasterize writes pdf into dir, renders it with pdftoppm and returns the page
// images sorted by page number. dir is created if absent. The copied PDF is
// removed before returning; the images belong to the caller.
func (r *PDFRasterizer) Rasterize(ctx context.Context, pdf []byte, dir string) ([]string, error) {
	start := time.Now()
	logger := common.LoggerFor(ctx, r.logger)

	pages, err := PageCount(pdf)
	if err != nil {
		logger.Warn("rasterize.preflight.failed", "error", err, "bytes", len(pdf))
		return nil, common.NewRasterizationError("malformed, encrypted or unsupported pdf", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, common.NewResourceError("create scratch dir", err)
	}
	in := filepath.Join(dir, inputName)
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, common.NewResourceError("write input pdf", err)
	}
	defer func() {
		if rmErr := os.Remove(in); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("rasterize.cleanup.failed", "path", in, "error", rmErr)
		}
	}()

	prefix := filepath.Join(dir, pagePrefix)
	// pdftoppm -r 300 -png [-l N] <in.pdf> <dir/page>
	args := []string{"-r", strconv.Itoa(r.cfg.DPI), "-png"}
	if r.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(r.cfg.MaxPages))
	}
	args = append(args, in, prefix)

	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, logger, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, common.NewRasterizationError("cancelled", ctx.Err())
		}
		if isNotFound(err) {
			return nil, common.NewRasterizationError(r.cfg.Pdftoppm+" not available", err)
		}
		msg := strings.TrimSpace(truncate(string(errb), 512))
		if msg == "" {
			msg = "pdftoppm failed"
		}
		return nil, common.NewRasterizationError(msg, err)
	}

	images, err := collectPages(prefix)
	if err != nil {
		return nil, common.NewRasterizationError("list rendered pages", err)
	}
	if len(images) == 0 {
		return nil, common.NewRasterizationError("no pages rendered", nil)
	}

	want := pages
	if r.cfg.MaxPages > 0 && r.cfg.MaxPages < want {
		want = r.cfg.MaxPages
	}
	if want > 0 && len(images) != want {
		logger.Warn("rasterize.page_count.mismatch", "expected", want, "rendered", len(images))
	}

	logger.Info("rasterize.ok",
		"pages", len(images),
		"dpi", r.cfg.DPI,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return images, nil
}

// PageCount parses pdf with pdfcpu in relaxed mode and returns its page count.
func PageCount(pdf []byte) (int, error) {
	if len(pdf) == 0 {
		return 0, fmt.Errorf("empty document")
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("document has no pages")
	}
	return n, nil
}

// collectPages globs prefix-N.png and sorts by N. pdftoppm zero-pads N to the
// width of the last page number, so lexical order is not enough.
func collectPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	type numbered struct {
		path string
		n    int
	}
	var pages []numbered
	for _, m := range matches {
		n, ok := pageNumber(prefix, m)
		if !ok {
			continue
		}
		pages = append(pages, numbered{path: m, n: n})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

func pageNumber(prefix, path string) (int, bool) {
	s := strings.TrimPrefix(path, prefix+"-")
	s = strings.TrimSuffix(s, ".png")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
