package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OCR_DPI", "200")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("REQUEST_TIMEOUT", "30s")
	t.Setenv("OCR_WORKERS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OCR.DPI != 200 {
		t.Errorf("DPI = %d", cfg.OCR.DPI)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Pipeline.RequestTimeout != 30*time.Second {
		t.Errorf("timeout = %s", cfg.Pipeline.RequestTimeout)
	}
	if cfg.OCR.Workers != 1 {
		t.Errorf("unparsable env should keep default, got %d", cfg.OCR.Workers)
	}
	if cfg.Server.HTTPAddr != ":3000" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("defaults not applied: %+v", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  http_addr: ":8081"
ocr:
  dpi: 150
  lang: deu
llm:
  provider: vertex
  vertex:
    project: ${TEST_VERTEX_PROJECT}
pipeline:
  request_timeout: 2m
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TEST_VERTEX_PROJECT", "proj-123")
	t.Setenv("OCR_LANG", "fra")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.HTTPAddr != ":8081" || cfg.OCR.DPI != 150 {
		t.Errorf("yaml not applied: %+v %+v", cfg.Server, cfg.OCR)
	}
	if cfg.OCR.Lang != "fra" {
		t.Errorf("env should override yaml, got %q", cfg.OCR.Lang)
	}
	if cfg.LLM.Vertex.Project != "proj-123" {
		t.Errorf("expansion failed: %q", cfg.LLM.Vertex.Project)
	}
	if cfg.LLM.Vertex.Region != "us-central1" {
		t.Errorf("default lost: %q", cfg.LLM.Vertex.Region)
	}
	if cfg.Pipeline.RequestTimeout != 2*time.Minute {
		t.Errorf("timeout = %s", cfg.Pipeline.RequestTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	t.Setenv("CONFIG_FILE", path)

	_, err := LoadConfig()
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("want *AppError, got %v", err)
	}
	if appErr.Code != "CONFIG_ERROR" || !strings.Contains(appErr.Message, path) {
		t.Errorf("appErr = %+v", appErr)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cause lost: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "CONFIG_ERROR: read ") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.OCR.DPI = 10
	cfg.OCR.Workers = 0
	cfg.OCR.Engine = "abbyy"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Fatalf("want CONFIG_ERROR, got %v", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("should wrap ErrInvalidInput")
	}
	for _, key := range []string{"OPENAI_API_KEY", "OCR_DPI", "OCR_WORKERS", "OCR_ENGINE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("message missing %s: %v", key, err)
		}
	}
}

func TestStageErrorKinds(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("extract: %w", NewOCRError(3, "tesseract failed", cause))

	if !errors.Is(err, ErrOCR) {
		t.Fatal("should match ErrOCR")
	}
	if errors.Is(err, ErrRasterization) {
		t.Fatal("should not match ErrRasterization")
	}
	if !errors.Is(err, cause) {
		t.Fatal("should unwrap to cause")
	}
	se, ok := AsStageError(err)
	if !ok || se.Page != 3 || se.Stage != StageOCR {
		t.Fatalf("unexpected stage error %+v", se)
	}
	if !strings.Contains(err.Error(), "ocr page 3") {
		t.Errorf("message = %q", err.Error())
	}

	if IsFatal(NewClassificationError("bad json", nil)) {
		t.Error("classification errors are not fatal")
	}
	if !IsFatal(NewResourceError("mkdir", nil)) {
		t.Error("resource errors are fatal")
	}
}

func TestEnsureRequestID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" || RequestIDFromContext(ctx) != id {
		t.Fatalf("id not stored: %q", id)
	}
	ctx2, id2 := EnsureRequestID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatal("existing id should be kept")
	}
}
