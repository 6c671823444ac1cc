package llm

import (
	"context"

	"github.com/joseph-ayodele/medextract/internal/record"
)

// Completer is a language-model completion service: a system instruction and a
// user message in, free-form text out.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// RawField is a leaf as the model returns it after sanitising. WordIDs index
// into the document word list the prompt was built from.
type RawField struct {
	Value       string              `json:"value"`
	WordIDs     []int               `json:"wordIds"`
	BoundingBox *record.BoundingBox `json:"boundingBox"`
	Page        *int                `json:"page"`
}

// RawRecord is the decoded model response.
type RawRecord = record.Record[RawField]
