package classify

import (
	"slices"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/medextract/internal/core/llm"
	"github.com/joseph-ayodele/medextract/internal/record"
)

// resolver grounds model fields in the document words. Boxes and pages
// reported by the model are ignored.
type resolver struct {
	words record.DocumentWords
	toks  []string // normalised text per word, "" for punctuation-only words

	byIDs, byText, dropped int
}

func newResolver(words record.DocumentWords) *resolver {
	toks := make([]string, len(words))
	for i, w := range words {
		toks[i] = normToken(w.Text)
	}
	return &resolver{words: words, toks: toks}
}

func (r *resolver) resolve(_ string, f llm.RawField) record.Field {
	value := strings.TrimSpace(f.Value)
	if value == "" {
		return record.Field{}
	}
	if box, page, ok := r.fromIDs(value, f.WordIDs); ok {
		r.byIDs++
		return record.NewField(value, box, page)
	}
	hint := 0
	if f.Page != nil {
		hint = *f.Page
	}
	if box, page, ok := r.locate(value, hint); ok {
		r.byText++
		return record.NewField(value, box, page)
	}
	r.dropped++
	return record.Field{}
}

// fromIDs encloses the cited words whose text occurs in value. When they span
// pages, the page holding most of them wins and ties go to the earliest page.
// Citations that share no text with value are ignored.
func (r *resolver) fromIDs(value string, ids []int) (record.BoundingBox, int, bool) {
	text := strings.Join(tokens(value), "")
	byPage := map[int][]record.BoundingBox{}
	seen := map[int]bool{}
	for _, id := range ids {
		if id < 0 || id >= len(r.words) || seen[id] {
			continue
		}
		seen[id] = true
		if r.toks[id] == "" || !strings.Contains(text, r.toks[id]) {
			continue
		}
		w := r.words[id]
		byPage[w.Page] = append(byPage[w.Page], w.BoundingBox)
	}
	if len(byPage) == 0 {
		return record.BoundingBox{}, 0, false
	}

	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	slices.Sort(pages)
	best := pages[0]
	for _, p := range pages[1:] {
		if len(byPage[p]) > len(byPage[best]) {
			best = p
		}
	}
	box, ok := record.Enclose(byPage[best]...)
	return box, best, ok
}

// locate finds the first run of words on a single page whose normalised
// tokens equal the value's. The hinted page is searched first.
func (r *resolver) locate(value string, hint int) (record.BoundingBox, int, bool) {
	want := tokens(value)
	if len(want) == 0 {
		return record.BoundingBox{}, 0, false
	}
	if hint > 0 {
		if box, page, ok := r.search(want, hint); ok {
			return box, page, true
		}
	}
	return r.search(want, 0)
}

func (r *resolver) search(want []string, onlyPage int) (record.BoundingBox, int, bool) {
	for start := range r.words {
		if r.toks[start] != want[0] || (onlyPage > 0 && r.words[start].Page != onlyPage) {
			continue
		}
		page := r.words[start].Page
		boxes := []record.BoundingBox{r.words[start].BoundingBox}
		matched := 1
		for i := start + 1; i < len(r.words) && matched < len(want); i++ {
			if r.words[i].Page != page {
				break
			}
			if r.toks[i] == "" {
				continue
			}
			if r.toks[i] != want[matched] {
				break
			}
			boxes = append(boxes, r.words[i].BoundingBox)
			matched++
		}
		if matched == len(want) {
			box, _ := record.Enclose(boxes...)
			return box, page, true
		}
	}
	return record.BoundingBox{}, 0, false
}

func tokens(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if t := normToken(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normToken lowercases s and keeps only letters and digits.
func normToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
