package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medextract/internal/core/assemble"
	"github.com/joseph-ayodele/medextract/internal/record"
)

func open(t *testing.T, b []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestFieldsXLSXStructured(t *testing.T) {
	rec := record.Empty()
	rec.PatientInfo.Name = record.NewField("Jane Doe", record.BoundingBox{X0: 10, Y0: 10, X1: 100, Y1: 30}, 1)
	rec.Medications = []record.Medication[record.Field]{{Name: record.NewField("Aspirin", record.BoundingBox{X1: 5, Y1: 5}, 2)}}

	b, err := NewService(nil).ExportXLSX(context.Background(), assemble.Structured(rec))
	if err != nil {
		t.Fatal(err)
	}
	rows := open(t, b, SheetFields)
	if strings.Join(rows[0], ",") != "Path,Value,Page,x0,y0,x1,y1" {
		t.Errorf("header = %v", rows[0])
	}
	if strings.Join(rows[1], ",") != "patientInfo.name,Jane Doe,1,10,10,100,30" {
		t.Errorf("first row = %v", rows[1])
	}
	found := false
	for _, r := range rows {
		if len(r) > 2 && r[0] == "medications[0].name" && r[1] == "Aspirin" && r[2] == "2" {
			found = true
		}
	}
	if !found {
		t.Error("medication row missing")
	}
	if want := len(record.Fields(rec)) + 1; len(rows) != want {
		t.Errorf("rows = %d, want %d", len(rows), want)
	}
}

func TestFieldsXLSXDegraded(t *testing.T) {
	words := record.DocumentWords{
		{Text: "Jane", BoundingBox: record.BoundingBox{X0: 1, Y0: 2, X1: 3, Y1: 4}, Page: 1},
		{Text: "Doe", BoundingBox: record.BoundingBox{X0: 5, Y0: 2, X1: 9, Y1: 4}, Page: 2},
	}
	b, err := FieldsXLSX(assemble.Degraded(words, errors.New("bad json")))
	if err != nil {
		t.Fatal(err)
	}
	rows := open(t, b, SheetWords)
	if len(rows) != 3 || strings.Join(rows[2], ",") != "words[1],Doe,2,5,2,9,4" {
		t.Errorf("rows = %v", rows)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 3); got != "hé…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
