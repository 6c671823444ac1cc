package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/medextract/internal/record"
)

// PromptWord is the serialised form of one OCR word. ID is its index in the
// document word list and is what the model cites back in wordIds.
type PromptWord struct {
	ID          int                `json:"id"`
	Text        string             `json:"text"`
	BoundingBox record.BoundingBox `json:"boundingBox"`
	Page        int                `json:"page"`
}

// BuildSystemPrompt describes the target structure and the field rules.
func BuildSystemPrompt() string {
	parts := []string{
		"You are an AI that extracts structured medical information from OCR words and organises it into a fixed JSON format.",
		"",
		"Every leaf field is an object with:",
		`- "value": the phrase derived from one or more input words, copied as written.`,
		`- "wordIds": the ids of every input word that contributed to the value, in reading order.`,
		`- "boundingBox": the box enclosing all contributing words: "x0" is the minimum x0, "y0" the minimum y0, "x1" the maximum x1 and "y1" the maximum y1 of those words.`,
		`- "page": the page number the contributing words come from.`,
		"",
		"The output must follow exactly this structure:",
		FormatSkeleton(),
		"",
		"Rules:",
		`1. If a field cannot be derived, set "value" to "", "wordIds" to [], "boundingBox" to null and "page" to null.`,
		"2. List sections hold one entry per distinct item, in document order. Use [] when nothing matches.",
		"3. Use only the input words. Do not invent, translate or normalise values.",
		"4. A value should come from words on a single page.",
		"5. Return only the JSON object, with no commentary and no code fences.",
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt serialises words with their ids, boxes and pages.
func BuildUserPrompt(words record.DocumentWords) (string, error) {
	pw := make([]PromptWord, len(words))
	for i, w := range words {
		pw[i] = PromptWord{ID: i, Text: w.Text, BoundingBox: w.BoundingBox, Page: w.Page}
	}
	b, err := json.Marshal(pw)
	if err != nil {
		return "", fmt.Errorf("encode words: %w", err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Input words with pages (%d words):\n", len(words))
	sb.Write(b)
	sb.WriteString("\n\nReturn ONLY JSON in the structure described.")
	return sb.String(), nil
}

// FormatSkeleton renders RecordShape as an indented JSON example whose leaves
// carry their descriptions.
func FormatSkeleton() string {
	var b strings.Builder
	writeObject(&b, RecordShape, 0)
	return b.String()
}

func writeObject(b *strings.Builder, nodes []Node, depth int) {
	b.WriteString("{\n")
	for i, n := range nodes {
		indent(b, depth+1)
		fmt.Fprintf(b, "%q: ", n.Name)
		switch n.Kind {
		case KindField:
			writeLeaf(b, n.Desc)
		case KindFieldList:
			b.WriteString("[")
			writeLeaf(b, n.Desc)
			b.WriteString("]")
		case KindObject:
			writeObject(b, n.Children, depth+1)
		case KindObjectList:
			b.WriteString("[")
			writeObject(b, n.Children, depth+1)
			b.WriteString("]")
		}
		if i < len(nodes)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	indent(b, depth)
	b.WriteString("}")
}

func writeLeaf(b *strings.Builder, desc string) {
	fmt.Fprintf(b, `{"value": %q, "wordIds": [ids], "boundingBox": {"x0": n, "y0": n, "x1": n, "y1": n}, "page": n}`, desc)
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

// StripCodeFence removes a surrounding markdown code fence such as ```json ... ```.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
