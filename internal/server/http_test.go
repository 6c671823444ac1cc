package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/medextract/constants"
	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core/assemble"
	"github.com/joseph-ayodele/medextract/internal/core/async"
	"github.com/joseph-ayodele/medextract/internal/record"
)

type fakeSubmitter struct {
	out   assemble.Outcome
	err   error
	calls int
	reqID string
}

func (f *fakeSubmitter) Submit(ctx context.Context, _ []byte) (assemble.Outcome, error) {
	f.calls++
	f.reqID = common.RequestIDFromContext(ctx)
	return f.out, f.err
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(content)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, path, field, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, name, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return m
}

var pdf = []byte("%PDF-1.4\n...")

func TestUploadStatuses(t *testing.T) {
	words := record.DocumentWords{{Text: "Jane", Page: 1}}
	tests := []struct {
		name     string
		sub      *fakeSubmitter
		status   int
		success  bool
		degraded bool
	}{
		{"structured", &fakeSubmitter{out: assemble.Structured(record.Empty())}, 200, true, false},
		{"degraded", &fakeSubmitter{out: assemble.Degraded(words, errors.New("bad json"))}, 200, true, true},
		{"rasterization", &fakeSubmitter{err: common.NewRasterizationError("encrypted", nil)}, 422, false, false},
		{"ocr", &fakeSubmitter{err: common.NewOCRError(2, "recognize", nil)}, 500, false, false},
		{"resource", &fakeSubmitter{err: common.NewResourceError("mkdir", nil)}, 500, false, false},
		{"shutting down", &fakeSubmitter{err: async.ErrQueueClosed}, 503, false, false},
		{"timeout", &fakeSubmitter{err: context.DeadlineExceeded}, 504, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHTTPServer(tt.sub, nil, nil, 1, nil).Routes()
			rr := do(t, h, "/upload", "file", "chart.pdf", pdf)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body)
			}
			m := decode(t, rr)
			if m["success"] != tt.success || m["degraded"] != tt.degraded {
				t.Errorf("body = %v", m)
			}
			if !tt.success && m["data"] != nil {
				t.Errorf("failure carries data: %v", m)
			}
			if tt.sub.reqID == "" || rr.Header().Get("X-Request-ID") != tt.sub.reqID {
				t.Errorf("request id %q not propagated (header %q)", tt.sub.reqID, rr.Header().Get("X-Request-ID"))
			}
		})
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		file    string
		content []byte
		status  int
	}{
		{"missing file field", "document", "chart.pdf", pdf, 400},
		{"wrong extension", "file", "chart.png", pdf, 400},
		{"not a pdf", "file", "chart.pdf", []byte("\x89PNG\r\n"), 400},
		{"too large", "file", "chart.pdf", append([]byte("%PDF-"), bytes.Repeat([]byte("x"), 2<<20)...), 413},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{out: assemble.Structured(record.Empty())}
			h := NewHTTPServer(sub, nil, nil, 1, nil).Routes()
			rr := do(t, h, "/upload", tt.field, tt.file, tt.content)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body)
			}
			if sub.calls != 0 {
				t.Error("pipeline ran on rejected input")
			}
		})
	}
}

func TestUploadNotMultipart(t *testing.T) {
	h := NewHTTPServer(&fakeSubmitter{}, nil, nil, 1, nil).Routes()
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(pdf))
	req.Header.Set("Content-Type", constants.ContentTypePDF)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestExportReturnsWorkbook(t *testing.T) {
	h := NewHTTPServer(&fakeSubmitter{out: assemble.Structured(record.Empty())}, nil, nil, 1, nil).Routes()
	rr := do(t, h, "/export", "file", "visit notes.pdf", pdf)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != constants.ContentTypeXLSX {
		t.Errorf("content type = %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `visit notes-structured.xlsx`) {
		t.Errorf("content disposition = %s", cd)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Error("body is not a zip container")
	}
}

func TestHealthz(t *testing.T) {
	healthy := NewHTTPServer(&fakeSubmitter{}, nil, func() error { return nil }, 1, nil).Routes()
	rr := httptest.NewRecorder()
	healthy.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rr.Code)
	}

	sick := NewHTTPServer(&fakeSubmitter{}, nil, func() error { return errors.New("pdftoppm: not found") }, 1, nil).Routes()
	rr = httptest.NewRecorder()
	sick.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "pdftoppm") {
		t.Errorf("sick = %d %s", rr.Code, rr.Body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHTTPServer(&fakeSubmitter{}, nil, nil, 1, nil).Routes()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	body, _ := io.ReadAll(rr.Body)
	if rr.Code != http.StatusOK || !strings.Contains(string(body), "medextract_http_requests_total") {
		t.Errorf("metrics = %d", rr.Code)
	}
}
