// Package classify maps the document word stream onto the structured record
// using a language-model service, then grounds every field in the words it
// came from.
package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core/llm"
	"github.com/joseph-ayodele/medextract/internal/record"
)

type Stage struct {
	svc    llm.Completer
	logger *slog.Logger
}

func NewStage(svc llm.Completer, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{svc: svc, logger: logger}
}

// Classify returns a record whose every non-empty field is enclosed by the
// boxes of its contributing words. Any service, parse or schema failure is a
// ClassificationError; a partially shaped record is never returned.
func (s *Stage) Classify(ctx context.Context, words record.DocumentWords) (record.StructuredRecord, error) {
	log := common.LoggerFor(ctx, s.logger)
	start := time.Now()

	if len(words) == 0 {
		log.Info("classify.no_words")
		return record.Empty(), nil
	}

	user, err := llm.BuildUserPrompt(words)
	if err != nil {
		return record.StructuredRecord{}, common.NewClassificationError("build prompt", err)
	}

	log.Info("classify.start", "words", len(words), "prompt_len", len(user))
	resp, err := s.svc.Complete(ctx, llm.BuildSystemPrompt(), user)
	if err != nil {
		log.Error("classify.service_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return record.StructuredRecord{}, common.NewClassificationError("service call failed", err)
	}

	raw, err := parseResponse(resp, log)
	if err != nil {
		log.Error("classify.bad_response", "error", err, "response_len", len(resp),
			"elapsed_ms", time.Since(start).Milliseconds())
		return record.StructuredRecord{}, err
	}

	res := newResolver(words)
	out := record.Normalize(record.Map(raw, res.resolve))
	if err := record.Check(out); err != nil {
		return record.StructuredRecord{}, common.NewClassificationError("resolved record is inconsistent", err)
	}

	log.Info("classify.ok",
		"by_ids", res.byIDs,
		"by_text", res.byText,
		"dropped", res.dropped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func parseResponse(resp string, log *slog.Logger) (llm.RawRecord, error) {
	body := llm.StripCodeFence(resp)
	cleaned, _, err := llm.NormalizeAndSanitizeJSON([]byte(body), log)
	if err != nil {
		return llm.RawRecord{}, common.NewClassificationError("malformed response", err)
	}
	if err := llm.ValidateRecordJSON(cleaned); err != nil {
		return llm.RawRecord{}, common.NewClassificationError("response violates record schema", err)
	}
	var raw llm.RawRecord
	if err := json.Unmarshal(cleaned, &raw); err != nil {
		return llm.RawRecord{}, common.NewClassificationError("decode response", err)
	}
	return raw, nil
}
