package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core/assemble"
	"github.com/joseph-ayodele/medextract/internal/record"
)

// Sheet names. A degraded outcome has no fields, only words.
const (
	SheetFields = "Fields"
	SheetWords  = "Words"
)

// excel refuses longer cell text
const maxCellLen = 32767

var headers = []string{"Path", "Value", "Page", "x0", "y0", "x1", "y1"}

// Service produces XLSX bytes for pipeline outcomes.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportXLSX is FieldsXLSX with logging.
func (s *Service) ExportXLSX(ctx context.Context, o assemble.Outcome) ([]byte, error) {
	start := time.Now()
	b, err := FieldsXLSX(o)
	if err != nil {
		common.LoggerFor(ctx, s.logger).Error("export.xlsx.failed", "error", err)
		return nil, err
	}
	common.LoggerFor(ctx, s.logger).Info("export.xlsx.ok",
		"kind", o.Kind,
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

type row struct {
	path, value string
	page        *int
	box         *record.BoundingBox
}

// FieldsXLSX writes one row per record leaf (sheet "Fields") or, for a
// degraded outcome, one row per OCR word (sheet "Words").
func FieldsXLSX(o assemble.Outcome) ([]byte, error) {
	sheet := SheetFields
	var rows []row
	if o.IsDegraded() {
		sheet = SheetWords
		for i, w := range o.Words {
			page, box := w.Page, w.BoundingBox
			rows = append(rows, row{path: fmt.Sprintf("words[%d]", i), value: w.Text, page: &page, box: &box})
		}
	} else {
		for _, pf := range record.Fields(o.Record) {
			rows = append(rows, row{path: pf.Path, value: pf.Field.Value, page: pf.Field.Page, box: pf.Field.BoundingBox})
		}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range rows {
		n := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, n)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.path)
		write(2, truncate(r.value, maxCellLen))
		if r.page != nil {
			write(3, *r.page)
		}
		if r.box != nil {
			write(4, r.box.X0)
			write(5, r.box.Y0)
			write(6, r.box.X1)
			write(7, r.box.Y1)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 36) // path
	_ = f.SetColWidth(sheet, "B", "B", 48) // value
	_ = f.SetColWidth(sheet, "C", "G", 10)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
