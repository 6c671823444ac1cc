package record

import (
	"fmt"
	"math"
)

// BoundingBox is an axis-aligned rectangle in page-pixel coordinates.
// Origin is the top-left corner of the rendered page image.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// NewBoundingBox orders the corners so that X0 <= X1 and Y0 <= Y1.
func NewBoundingBox(x0, y0, x1, y1 float64) BoundingBox {
	return BoundingBox{
		X0: math.Min(x0, x1),
		Y0: math.Min(y0, y1),
		X1: math.Max(x0, x1),
		Y1: math.Max(y0, y1),
	}
}

// Valid reports whether the box is well-ordered and finite.
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.X0, b.Y0, b.X1, b.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X0 <= b.X1 && b.Y0 <= b.Y1
}

// Union returns the smallest box enclosing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// Enclose returns the coordinate-wise min(x0,y0) / max(x1,y1) over boxes.
// ok is false when no boxes are given.
func Enclose(boxes ...BoundingBox) (BoundingBox, bool) {
	if len(boxes) == 0 {
		return BoundingBox{}, false
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Union(b)
	}
	return out, true
}

// Word is one OCR token with its page-pixel box. Page is 1-based.
type Word struct {
	Text        string      `json:"text"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Page        int         `json:"page"`
}

// NewWord builds a Word with an ordered bounding box.
func NewWord(text string, box BoundingBox, page int) Word {
	return Word{
		Text:        text,
		BoundingBox: NewBoundingBox(box.X0, box.Y0, box.X1, box.Y1),
		Page:        page,
	}
}

// PageResult is the OCR output for one rasterized page.
type PageResult struct {
	Page  int    `json:"page"`
	Text  string `json:"text"`
	Words []Word `json:"words"`
}

// DocumentWords is every word of a document in page order, then in-page reading order.
type DocumentWords []Word

// Flatten concatenates the words of pages, which must already be in page order.
func Flatten(pages []PageResult) DocumentWords {
	n := 0
	for _, p := range pages {
		n += len(p.Words)
	}
	out := make(DocumentWords, 0, n)
	for _, p := range pages {
		out = append(out, p.Words...)
	}
	return out
}

// Field is a leaf of the structured record.
// BoundingBox and Page are nil exactly when Value is empty.
type Field struct {
	Value       string       `json:"value"`
	BoundingBox *BoundingBox `json:"boundingBox"`
	Page        *int         `json:"page"`
}

// NewField returns a grounded field, or an empty one when value is blank.
func NewField(value string, box BoundingBox, page int) Field {
	if value == "" {
		return Field{}
	}
	b := NewBoundingBox(box.X0, box.Y0, box.X1, box.Y1)
	p := page
	return Field{Value: value, BoundingBox: &b, Page: &p}
}

// IsEmpty reports whether the field carries no value.
func (f Field) IsEmpty() bool { return f.Value == "" }

// Check verifies the Field invariant.
func (f Field) Check() error {
	switch {
	case f.Value == "" && (f.BoundingBox != nil || f.Page != nil):
		return fmt.Errorf("empty value with location")
	case f.Value != "" && (f.BoundingBox == nil || f.Page == nil):
		return fmt.Errorf("value %q without location", f.Value)
	case f.BoundingBox != nil && !f.BoundingBox.Valid():
		return fmt.Errorf("invalid bounding box %+v", *f.BoundingBox)
	case f.Page != nil && *f.Page < 1:
		return fmt.Errorf("invalid page %d", *f.Page)
	}
	return nil
}

func (f Field) normalized() Field {
	if f.Value == "" || f.BoundingBox == nil || f.Page == nil {
		return Field{}
	}
	return NewField(f.Value, *f.BoundingBox, *f.Page)
}
