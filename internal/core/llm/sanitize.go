package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// wordIds synonyms seen in model output
var wordIDKeys = []string{"wordIds", "wordIDs", "word_ids", "ids"}

// NormalizeAndSanitizeJSON reshapes a model response towards RecordShape:
//   - missing or null sections become "" fields, [] lists or {} objects
//   - bare strings and numbers become {"value": ...}
//   - a single object or string where a list is expected is wrapped
//   - numeric strings in page, wordIds and coordinates are coerced
//   - a page below 1 becomes null
//   - list entries with an empty value are dropped
//   - unknown keys are removed
//
// Values of the wrong type are kept as they are so that schema validation
// rejects them. A response whose record sections are all missing or null is
// an error. The returned notes describe every change made.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	m, ok := top.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("sanitize: top level is %T, want object", top)
	}
	if !hasAnySection(m) {
		return nil, nil, fmt.Errorf("sanitize: response has no non-null record section")
	}

	s := &sanitizer{}
	out := s.object("", RecordShape, m)

	b, err := json.Marshal(out)
	if err != nil {
		return nil, s.notes, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(s.notes) > 0 {
		logger.Warn("llm.sanitize.applied", "changes", len(s.notes), "notes", s.notes)
	}
	return b, s.notes, nil
}

type sanitizer struct {
	notes []string
}

func (s *sanitizer) note(path, what string) {
	s.notes = append(s.notes, path+"("+what+")")
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func (s *sanitizer) object(path string, nodes []Node, m map[string]any) map[string]any {
	out := make(map[string]any, len(nodes))
	known := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.Name] = struct{}{}
		p := join(path, n.Name)
		v, present := m[n.Name]
		if !present || v == nil {
			if present {
				s.note(p, "null")
			} else {
				s.note(p, "missing")
			}
		}
		switch n.Kind {
		case KindField:
			out[n.Name] = s.field(p, v)
		case KindFieldList:
			out[n.Name] = s.fieldList(p, v)
		case KindObject:
			child, ok := v.(map[string]any)
			if !ok && v != nil {
				s.note(p, "type")
				out[n.Name] = v
				break
			}
			out[n.Name] = s.object(p, n.Children, child)
		case KindObjectList:
			out[n.Name] = s.objectList(p, n.Children, v)
		}
	}
	for k := range m {
		if _, ok := known[k]; !ok {
			s.note(join(path, k), "unknown")
		}
	}
	return out
}

func (s *sanitizer) objectList(path string, children []Node, v any) any {
	items, ok := s.asList(path, v)
	if !ok {
		return v
	}
	out := make([]any, 0, len(items))
	for i, it := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		m, ok := it.(map[string]any)
		if !ok {
			s.note(p, "type")
			out = append(out, it)
			continue
		}
		obj := s.object(p, children, m)
		if allEmpty(obj) {
			s.note(p, "empty")
			continue
		}
		out = append(out, obj)
	}
	return out
}

func (s *sanitizer) fieldList(path string, v any) any {
	items, ok := s.asList(path, v)
	if !ok {
		return v
	}
	out := make([]any, 0, len(items))
	for i, it := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		f := s.field(p, it)
		if m, ok := f.(map[string]any); ok && m["value"] == "" {
			s.note(p, "empty")
			continue
		}
		out = append(out, f)
	}
	return out
}

// asList reports false when v cannot stand for a list at all.
func (s *sanitizer) asList(path string, v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case []any:
		return t, true
	case map[string]any, string:
		s.note(path, "wrapped")
		return []any{t}, true
	default:
		s.note(path, "type")
		return nil, false
	}
}

// field returns a leaf object with only value, wordIds, boundingBox and page,
// or v itself when v is not a leaf of any recognisable form.
func (s *sanitizer) field(path string, v any) any {
	out := map[string]any{"value": "", "wordIds": []any{}, "boundingBox": nil, "page": nil}
	m, ok := v.(map[string]any)
	if !ok {
		switch t := v.(type) {
		case nil:
		case string:
			out["value"] = strings.TrimSpace(t)
			s.note(path, "bare")
		case float64:
			out["value"] = strconv.FormatFloat(t, 'f', -1, 64)
			s.note(path, "bare")
		default:
			s.note(path, "type")
			return v
		}
		return out
	}

	switch val := m["value"].(type) {
	case string:
		out["value"] = strings.TrimSpace(val)
	case float64:
		out["value"] = strconv.FormatFloat(val, 'f', -1, 64)
		s.note(path+".value", "coerced")
	case nil:
	default:
		out["value"] = val
		s.note(path+".value", "type")
	}

	for _, k := range wordIDKeys {
		if raw, ok := m[k]; ok {
			if k != "wordIds" {
				s.note(path+"."+k, "renamed")
			}
			out["wordIds"] = s.ids(path+".wordIds", raw)
			break
		}
	}

	if bb, ok := m["boundingBox"]; ok && bb != nil {
		if box, ok := s.box(bb); ok {
			out["boundingBox"] = box
		} else {
			out["boundingBox"] = bb
			s.note(path+".boundingBox", "type")
		}
	}

	if pg, ok := m["page"]; ok && pg != nil {
		n, ok := toInt(pg)
		switch {
		case !ok:
			out["page"] = pg
			s.note(path+".page", "type")
		case n >= 1:
			out["page"] = n
		default:
			s.note(path+".page", "invalid")
		}
	}

	for k := range m {
		switch k {
		case "value", "boundingBox", "page":
		default:
			if !isWordIDKey(k) {
				s.note(path+"."+k, "unknown")
			}
		}
	}
	return out
}

// ids coerces numeric ids and keeps everything else for the schema to reject.
func (s *sanitizer) ids(path string, v any) any {
	if v == nil {
		return []any{}
	}
	list, ok := v.([]any)
	if !ok {
		if n, ok := toInt(v); ok {
			s.note(path, "wrapped")
			return []any{n}
		}
		s.note(path, "type")
		return v
	}
	out := make([]any, 0, len(list))
	for _, it := range list {
		n, ok := toInt(it)
		if !ok {
			s.note(path, "type")
			out = append(out, it)
			continue
		}
		out = append(out, n)
	}
	return out
}

func (s *sanitizer) box(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]any, 4)
	for _, k := range []string{"x0", "y0", "x1", "y1"} {
		f, ok := toFloat(m[k])
		if !ok {
			return nil, false
		}
		out[k] = f
	}
	return out, true
}

func hasAnySection(m map[string]any) bool {
	for _, n := range RecordShape {
		if v, ok := m[n.Name]; ok && v != nil {
			return true
		}
	}
	return false
}

func isWordIDKey(k string) bool {
	for _, w := range wordIDKeys {
		if k == w {
			return true
		}
	}
	return false
}

// allEmpty reports whether every leaf of a group has an empty value. A leaf
// left in a foreign type counts as content so the schema still sees it.
func allEmpty(obj map[string]any) bool {
	for _, v := range obj {
		f, ok := v.(map[string]any)
		if !ok || f["value"] != "" {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
