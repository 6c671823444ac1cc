package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/medextract/constants"
	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core/assemble"
	"github.com/joseph-ayodele/medextract/internal/core/async"
	"github.com/joseph-ayodele/medextract/internal/export"
	"github.com/joseph-ayodele/medextract/internal/metrics"
)

// multipart parts above this size spill to temp files
const formMemory = 8 << 20

// Submitter runs one document through the pipeline.
type Submitter interface {
	Submit(ctx context.Context, pdf []byte) (assemble.Outcome, error)
}

// HTTPServer is the upload endpoint in front of the pipeline.
type HTTPServer struct {
	docs      Submitter
	export    *export.Service
	health    func() error
	logger    *slog.Logger
	maxUpload int64
}

// NewHTTPServer wires the handlers. health reports whether the external
// tools are usable. maxUploadMB bounds the request body.
func NewHTTPServer(docs Submitter, exp *export.Service, health func() error, maxUploadMB int, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if exp == nil {
		exp = export.NewService(logger)
	}
	if health == nil {
		health = func() error { return nil }
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	return &HTTPServer{
		docs:      docs,
		export:    exp,
		health:    health,
		logger:    logger,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

// Routes builds the chi router.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(metrics.Middleware())

	r.Post("/upload", s.handleUpload)
	r.Post("/export", s.handleExport)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// requestLogger carries the chi request id into the pipeline context and
// emits one line per request.
func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := chiMiddleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		ctx := common.WithRequestID(r.Context(), id)

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		s.logger.Info("http.request",
			"req_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	pdf, _, ok := s.readPDF(w, r)
	if !ok {
		return
	}
	out, err := s.docs.Submit(r.Context(), pdf)
	if err != nil {
		writeJSON(w, statusFor(err), assemble.Failure(err))
		return
	}
	writeJSON(w, http.StatusOK, assemble.Assemble(out))
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	pdf, name, ok := s.readPDF(w, r)
	if !ok {
		return
	}
	out, err := s.docs.Submit(r.Context(), pdf)
	if err != nil {
		writeJSON(w, statusFor(err), assemble.Failure(err))
		return
	}
	xlsx, err := s.export.ExportXLSX(r.Context(), out)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, assemble.Failure(err))
		return
	}

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "document"
	}
	w.Header().Set("Content-Type", constants.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"-"+string(out.Kind)+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if err := s.health(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readPDF extracts the "file" part of a multipart upload. On failure it has
// already written the response.
func (s *HTTPServer) readPDF(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	log := common.LoggerFor(r.Context(), s.logger)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		if isTooLarge(err) {
			writeBad(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", s.maxUpload>>20))
			return nil, "", false
		}
		writeBad(w, http.StatusBadRequest, "expected a multipart/form-data upload")
		return nil, "", false
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("upload.cleanup.failed", "error", err)
		}
	}()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeBad(w, http.StatusBadRequest, `missing "file" field`)
		return nil, "", false
	}
	defer file.Close()

	if ext := filepath.Ext(hdr.Filename); ext != "" && !constants.IsAllowedExt(ext) {
		writeBad(w, http.StatusBadRequest, "only PDF files are accepted")
		return nil, "", false
	}
	pdf, err := io.ReadAll(file)
	if err != nil {
		if isTooLarge(err) {
			writeBad(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", s.maxUpload>>20))
			return nil, "", false
		}
		writeBad(w, http.StatusBadRequest, "could not read upload")
		return nil, "", false
	}
	if !constants.LooksLikePDF(pdf) {
		writeBad(w, http.StatusBadRequest, "file is not a PDF")
		return nil, "", false
	}
	log.Info("upload.received", "filename", hdr.Filename, "bytes", len(pdf))
	return pdf, hdr.Filename, true
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// statusFor maps a fatal pipeline error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrRasterization):
		return http.StatusUnprocessableEntity
	case errors.Is(err, async.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeBad(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, assemble.Response{Success: false, Message: msg, Kind: constants.ResultFailed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
