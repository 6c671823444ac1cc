package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/testutil"
)

type call struct {
	name string
	args []string
}

// fakeRunner renders `pages` PNG placeholders for pdftoppm and returns tsv for tesseract.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	pages  int
	pad    int
	tsv    []byte
	err    error
	stderr string
	sawPDF bool
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	if f.err != nil {
		return nil, []byte(f.stderr), f.err
	}
	switch name {
	case "pdftoppm":
		in, prefix := args[len(args)-2], args[len(args)-1]
		if _, err := os.Stat(in); err == nil {
			f.sawPDF = true
		}
		// write in reverse so directory order differs from page order
		for i := f.pages; i >= 1; i-- {
			p := fmt.Sprintf("%s-%0*d.png", prefix, f.pad, i)
			if err := os.WriteFile(p, []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		return f.tsv, nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected command %s", name)
}

func TestRasterizeOrdersPagesNumerically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "job")
	fr := &fakeRunner{pages: 12, pad: 2}
	r := NewRasterizer(Config{}, fr, nil)

	images, err := r.Rasterize(context.Background(), testutil.PDF(12), dir)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if len(images) != 12 {
		t.Fatalf("got %d images", len(images))
	}
	for i, img := range images {
		want := fmt.Sprintf("page-%02d.png", i+1)
		if filepath.Base(img) != want {
			t.Errorf("images[%d] = %s, want %s", i, filepath.Base(img), want)
		}
	}
	if !fr.sawPDF {
		t.Error("pdftoppm did not see the input pdf")
	}
	if _, err := os.Stat(filepath.Join(dir, inputName)); !os.IsNotExist(err) {
		t.Error("input pdf left in scratch dir")
	}
	args := fr.calls[0].args
	if !slices.Equal(args[:3], []string{"-r", "300", "-png"}) {
		t.Errorf("args = %v", args)
	}
	if slices.Contains(args, "-l") {
		t.Error("-l passed without MaxPages")
	}
}

func TestRasterizePassesPageLimitAndDPI(t *testing.T) {
	fr := &fakeRunner{pages: 2}
	r := NewRasterizer(Config{DPI: 150, MaxPages: 2}, fr, nil)
	if _, err := r.Rasterize(context.Background(), testutil.PDF(5), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	got := strings.Join(fr.calls[0].args, " ")
	if !strings.Contains(got, "-r 150 -png -l 2") {
		t.Errorf("args = %s", got)
	}
}

func TestRasterizeMalformedPDF(t *testing.T) {
	fr := &fakeRunner{pages: 1}
	r := NewRasterizer(Config{}, fr, nil)
	_, err := r.Rasterize(context.Background(), []byte("%PDF-1.4 this is not really a pdf"), t.TempDir())
	if !errors.Is(err, common.ErrRasterization) {
		t.Fatalf("want ErrRasterization, got %v", err)
	}
	if len(fr.calls) != 0 {
		t.Error("external tool should not run for a malformed pdf")
	}
}

func TestRasterizeZeroPages(t *testing.T) {
	r := NewRasterizer(Config{}, &fakeRunner{pages: 0}, nil)
	_, err := r.Rasterize(context.Background(), testutil.PDF(1), t.TempDir())
	if !errors.Is(err, common.ErrRasterization) {
		t.Fatalf("want ErrRasterization, got %v", err)
	}
}

func TestRasterizeToolFailure(t *testing.T) {
	dir := t.TempDir()
	fr := &fakeRunner{err: errors.New("exit status 1"), stderr: "Syntax Error: Couldn't read xref table"}
	r := NewRasterizer(Config{}, fr, nil)
	_, err := r.Rasterize(context.Background(), testutil.PDF(1), dir)
	if !errors.Is(err, common.ErrRasterization) {
		t.Fatalf("want ErrRasterization, got %v", err)
	}
	if !strings.Contains(err.Error(), "xref table") {
		t.Errorf("stderr not surfaced: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("scratch dir not clean: %v", entries)
	}
}

func TestParseTSV(t *testing.T) {
	data := testutil.TSV(
		[]string{"Patient", "Name:"},
		[]string{"Jane", "Doe"},
	)
	res, err := ParseTSV(data, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Page != 2 || len(res.Words) != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Text != "Patient Name:\nJane Doe" {
		t.Errorf("text = %q", res.Text)
	}
	w := res.Words[2]
	if w.Text != "Jane" || w.Page != 2 {
		t.Errorf("word = %+v", w)
	}
	if b := w.BoundingBox; b.X0 != 10 || b.Y0 != 40 || b.X1 != 50 || b.Y1 != 60 {
		t.Errorf("box = %+v", b)
	}
	for _, w := range res.Words {
		if !w.BoundingBox.Valid() {
			t.Errorf("invalid box %+v", w.BoundingBox)
		}
	}
}

func TestParseTSVSkipsBlankWordsAndSeparatesParagraphs(t *testing.T) {
	data := strings.Join([]string{
		"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext",
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tBP",
		"5\t1\t1\t1\t1\t2\t12\t0\t10\t10\t90\t ",
		"5\t1\t2\t1\t1\t1\t0\t50\t10\t10\t90\t120/80",
		"",
	}, "\n")
	res, err := ParseTSV([]byte(data), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Words) != 2 {
		t.Fatalf("words = %+v", res.Words)
	}
	if res.Text != "BP\n\n120/80" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestParseTSVRejectsGarbage(t *testing.T) {
	bad := "5\tx\t1\t1\t1\t1\t0\t0\t10\t10\t90\tword\n"
	if _, err := ParseTSV([]byte(bad), 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestTesseractEngineRecognize(t *testing.T) {
	img := filepath.Join(t.TempDir(), "page-1.png")
	if err := os.WriteFile(img, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	fr := &fakeRunner{tsv: testutil.TSV([]string{"Aspirin", "81mg"})}
	e := NewTesseractEngine(Config{Lang: "eng", PSM: 6, TessdataDir: "/td"}, fr, nil)

	res, err := e.Recognize(context.Background(), img, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Words) != 2 || res.Words[1].Text != "81mg" {
		t.Fatalf("words = %+v", res.Words)
	}
	want := []string{img, "stdout", "-l", "eng", "--psm", "6", "--tessdata-dir", "/td", "tsv"}
	if !slices.Equal(fr.calls[0].args, want) {
		t.Errorf("args = %v", fr.calls[0].args)
	}
	if b, _ := os.ReadFile(img); string(b) != "png" {
		t.Error("image modified")
	}
}

func TestTesseractEngineErrorsCarryPage(t *testing.T) {
	img := filepath.Join(t.TempDir(), "page-3.png")
	if err := os.WriteFile(img, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	e := NewTesseractEngine(Config{}, &fakeRunner{err: errors.New("exit status 1")}, nil)
	_, err := e.Recognize(context.Background(), img, 3)
	if !errors.Is(err, common.ErrOCR) {
		t.Fatalf("want ErrOCR, got %v", err)
	}
	se, ok := common.AsStageError(err)
	if !ok || se.Page != 3 {
		t.Fatalf("page not attached: %+v", se)
	}

	_, err = e.Recognize(context.Background(), filepath.Join(t.TempDir(), "missing.png"), 4)
	if se, ok := common.AsStageError(err); !ok || se.Page != 4 || !errors.Is(err, common.ErrOCR) {
		t.Fatalf("missing image: %v", err)
	}
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(Config{}, &fakeRunner{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*TesseractEngine); !ok {
		t.Fatalf("default engine = %T", e)
	}
	if _, err := NewEngine(Config{Engine: "nope"}, nil, nil); err == nil {
		t.Fatal("unknown engine should fail")
	}
}

func TestNormalize(t *testing.T) {
	in := "Dose:\t\t5mg  daily\r\n-----\r\n\r\n\r\n\r\nDOB 01/02/1980   "
	got := Normalize(in)
	want := "Dose: 5mg daily\n\nDOB 01/02/1980"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
