// Package assemble turns a pipeline outcome into the caller-facing response.
package assemble

import (
	"context"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/medextract/constants"
	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/record"
)

// Outcome is the result of a document run that did not fail fatally: either
// a classified record or the raw words with the reason classification failed.
type Outcome struct {
	Kind   constants.ResultKind
	Record record.StructuredRecord
	Words  record.DocumentWords
	Reason string
}

func Structured(rec record.StructuredRecord) Outcome {
	return Outcome{Kind: constants.ResultStructured, Record: rec}
}

func Degraded(words record.DocumentWords, reason error) Outcome {
	if words == nil {
		words = record.DocumentWords{}
	}
	o := Outcome{Kind: constants.ResultDegraded, Words: words}
	if reason != nil {
		o.Reason = reason.Error()
	}
	return o
}

func (o Outcome) IsDegraded() bool { return o.Kind == constants.ResultDegraded }

// Response is the JSON payload returned to callers.
type Response struct {
	Success  bool                 `json:"success"`
	Message  string               `json:"message,omitempty"`
	Kind     constants.ResultKind `json:"kind"`
	Degraded bool                 `json:"degraded"`
	Data     any                  `json:"data,omitempty"`
}

// Assemble builds the response for an outcome. Degraded outcomes are
// successful responses carrying the raw words and flagged as degraded.
func Assemble(o Outcome) Response {
	switch o.Kind {
	case constants.ResultStructured:
		return Response{
			Success: true,
			Message: "Document processed",
			Kind:    constants.ResultStructured,
			Data:    o.Record,
		}
	case constants.ResultDegraded:
		words := o.Words
		if words == nil {
			words = record.DocumentWords{}
		}
		return Response{
			Success:  true,
			Message:  "Field classification failed, returning raw OCR words",
			Kind:     constants.ResultDegraded,
			Degraded: true,
			Data:     words,
		}
	default:
		return Response{
			Success: false,
			Message: fmt.Sprintf("internal error: unknown outcome %q", o.Kind),
			Kind:    constants.ResultFailed,
		}
	}
}

// Failure builds the response for a fatal error. It carries no data.
func Failure(err error) Response {
	return Response{Success: false, Message: Message(err), Kind: constants.ResultFailed}
}

// Message is a human-readable description of a fatal error.
func Message(err error) string {
	switch {
	case err == nil:
		return "Processing failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing timed out"
	case errors.Is(err, context.Canceled):
		return "Request was cancelled"
	}

	se, ok := common.AsStageError(err)
	if !ok {
		return "Processing failed"
	}
	switch se.Kind {
	case common.ErrRasterization:
		return "Could not read the PDF: " + se.Message
	case common.ErrOCR:
		return fmt.Sprintf("Text recognition failed on page %d", se.Page)
	case common.ErrResource:
		return "Could not allocate temporary storage for the document"
	case common.ErrClassification:
		return "Field classification failed"
	}
	return "Processing failed"
}
