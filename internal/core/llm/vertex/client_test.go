package vertex

import (
	"context"
	"testing"

	"cloud.google.com/go/vertexai/genai"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text(` {"patientInfo":`),
				genai.Blob{MIMEType: "image/png"},
				genai.Text(`{}} `),
			}},
		}},
	}
	if got := responseText(resp); got != `{"patientInfo":{}}` {
		t.Errorf("responseText = %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("empty response = %q", got)
	}
	if got := responseText(nil); got != "" {
		t.Errorf("nil response = %q", got)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}, nil); err == nil {
		t.Fatal("expected error")
	}
}
