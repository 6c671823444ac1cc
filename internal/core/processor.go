package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/medextract/constants"
	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core/assemble"
	"github.com/joseph-ayodele/medextract/internal/metrics"
	"github.com/joseph-ayodele/medextract/internal/record"
)

// Extractor turns a PDF into per-page OCR results in page order.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) ([]record.PageResult, error)
}

// Classifier maps document words onto the structured record.
type Classifier interface {
	Classify(ctx context.Context, words record.DocumentWords) (record.StructuredRecord, error)
}

// Processor coordinates page extraction then field classification, and
// decides whether a failure is fatal or degrades to raw words.
type Processor struct {
	logger     *slog.Logger
	extractor  Extractor
	classifier Classifier
}

func NewProcessor(logger *slog.Logger, extractor Extractor, classifier Classifier) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, extractor: extractor, classifier: classifier}
}

// Process runs the pipeline on one PDF. Rasterization, OCR and scratch
// failures are returned as errors. A classification failure yields a
// Degraded outcome carrying the raw words.
func (p *Processor) Process(ctx context.Context, pdf []byte) (assemble.Outcome, error) {
	ctx, _ = common.EnsureRequestID(ctx)
	log := common.LoggerFor(ctx, p.logger)
	start := time.Now()

	pages, err := p.extractor.Extract(ctx, pdf)
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("processor.extract.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		metrics.DocumentsTotal.WithLabelValues(string(constants.ResultFailed)).Inc()
		return assemble.Outcome{}, err
	}
	metrics.PagesTotal.Add(float64(len(pages)))

	words := record.Flatten(pages)
	log.Debug("processor.extract.ok", "pages", len(pages), "words", len(words))

	classifyStart := time.Now()
	rec, err := p.classifier.Classify(ctx, words)
	metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(classifyStart).Seconds())
	if err != nil {
		// a cancelled request is not worth a degraded answer
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("processor.cancelled", "error", ctxErr)
			metrics.DocumentsTotal.WithLabelValues(string(constants.ResultFailed)).Inc()
			return assemble.Outcome{}, ctxErr
		}
		if common.IsFatal(err) {
			log.Error("processor.classify.failed", "error", err)
			metrics.DocumentsTotal.WithLabelValues(string(constants.ResultFailed)).Inc()
			return assemble.Outcome{}, err
		}
		log.Warn("processor.degraded",
			"error", err,
			"words", len(words),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		metrics.DocumentsTotal.WithLabelValues(string(constants.ResultDegraded)).Inc()
		return assemble.Degraded(words, err), nil
	}

	log.Info("processor.ok",
		"pages", len(pages),
		"words", len(words),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	metrics.DocumentsTotal.WithLabelValues(string(constants.ResultStructured)).Inc()
	return assemble.Structured(rec), nil
}

// ProcessDocument runs Process and assembles the caller-facing response.
func (p *Processor) ProcessDocument(ctx context.Context, pdf []byte) assemble.Response {
	out, err := p.Process(ctx, pdf)
	if err != nil {
		return assemble.Failure(err)
	}
	return assemble.Assemble(out)
}
