package common

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// OCRConfig holds rasterizer and recognizer configuration
type OCRConfig struct {
	Engine      string `yaml:"engine"` // "cli" | "gosseract"
	Pdftoppm    string `yaml:"pdftoppm"`
	Tesseract   string `yaml:"tesseract"`
	Lang        string `yaml:"lang"`
	DPI         int    `yaml:"dpi"`
	MaxPages    int    `yaml:"max_pages"` // 0 = no limit
	PSM         int    `yaml:"psm"`       // 0 = tesseract default
	OEM         int    `yaml:"oem"`       // 0 = tesseract default
	TessdataDir string `yaml:"tessdata_dir"`
	Workers     int    `yaml:"workers"`
}

// LLMConfig holds classification-service configuration
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // "openai" | "vertex"
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Vertex      VertexConfig  `yaml:"vertex"`
}

// VertexConfig holds Vertex AI configuration
type VertexConfig struct {
	Project string `yaml:"project"`
	Region  string `yaml:"region"`
	Model   string `yaml:"model"`
}

// PipelineConfig holds per-request pipeline configuration
type PipelineConfig struct {
	ScratchDir     string        `yaml:"scratch_dir"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:    ":3000",
			GRPCAddr:    ":9090",
			MaxUploadMB: 25,
		},
		OCR: OCRConfig{
			Engine:    "cli",
			Pdftoppm:  "pdftoppm",
			Tesseract: "tesseract",
			Lang:      "eng",
			DPI:       300,
			Workers:   1,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			Timeout:  90 * time.Second,
			Vertex: VertexConfig{
				Region: "us-central1",
				Model:  "gemini-1.5-pro",
			},
		},
		Pipeline: PipelineConfig{
			ScratchDir:     filepath.Join(os.TempDir(), "medextract"),
			Workers:        4,
			QueueSize:      64,
			RequestTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read "+path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", cfg.Server.MaxUploadMB)

	cfg.OCR.Engine = getEnv("OCR_ENGINE", cfg.OCR.Engine)
	cfg.OCR.Pdftoppm = getEnv("PDFTOPPM", cfg.OCR.Pdftoppm)
	cfg.OCR.Tesseract = getEnv("TESSERACT", cfg.OCR.Tesseract)
	cfg.OCR.Lang = getEnv("OCR_LANG", cfg.OCR.Lang)
	cfg.OCR.DPI = getEnvAsInt("OCR_DPI", cfg.OCR.DPI)
	cfg.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", cfg.OCR.MaxPages)
	cfg.OCR.PSM = getEnvAsInt("OCR_PSM", cfg.OCR.PSM)
	cfg.OCR.OEM = getEnvAsInt("OCR_OEM", cfg.OCR.OEM)
	cfg.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", cfg.OCR.TessdataDir)
	cfg.OCR.Workers = getEnvAsInt("OCR_WORKERS", cfg.OCR.Workers)

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.BaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", cfg.LLM.Timeout)
	cfg.LLM.Vertex.Project = getEnv("VERTEX_PROJECT", cfg.LLM.Vertex.Project)
	cfg.LLM.Vertex.Region = getEnv("VERTEX_REGION", cfg.LLM.Vertex.Region)
	cfg.LLM.Vertex.Model = getEnv("VERTEX_MODEL", cfg.LLM.Vertex.Model)

	cfg.Pipeline.ScratchDir = getEnv("SCRATCH_DIR", cfg.Pipeline.ScratchDir)
	cfg.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", cfg.Pipeline.Workers)
	cfg.Pipeline.QueueSize = getEnvAsInt("PIPELINE_QUEUE", cfg.Pipeline.QueueSize)
	cfg.Pipeline.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", cfg.Pipeline.RequestTimeout)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.OCR.Engine = strings.ToLower(cfg.OCR.Engine)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("HTTP_ADDR", c.Server.HTTPAddr, Required)
	v.Field("GRPC_ADDR", c.Server.GRPCAddr, Required)
	v.Field("MAX_UPLOAD_MB", c.Server.MaxUploadMB, Between(1, 1024))
	v.Field("OCR_ENGINE", c.OCR.Engine, OneOf("cli", "gosseract"))
	v.Field("OCR_LANG", c.OCR.Lang, Required)
	v.Field("OCR_DPI", c.OCR.DPI, Between(72, 1200))
	v.Field("OCR_MAX_PAGES", c.OCR.MaxPages, Between(0, 10000))
	v.Field("OCR_WORKERS", c.OCR.Workers, Between(1, 64))
	v.Field("LLM_PROVIDER", c.LLM.Provider, OneOf("openai", "vertex"))
	switch c.LLM.Provider {
	case "openai":
		v.Field("OPENAI_API_KEY", c.LLM.APIKey, Required)
		v.Field("OPENAI_MODEL", c.LLM.Model, Required)
	case "vertex":
		v.Field("VERTEX_PROJECT", c.LLM.Vertex.Project, Required)
		v.Field("VERTEX_REGION", c.LLM.Vertex.Region, Required)
		v.Field("VERTEX_MODEL", c.LLM.Vertex.Model, Required)
	}
	v.Field("SCRATCH_DIR", c.Pipeline.ScratchDir, Required)
	v.Field("PIPELINE_WORKERS", c.Pipeline.Workers, Between(1, 256))
	v.Field("PIPELINE_QUEUE", c.Pipeline.QueueSize, Between(0, 1<<16))
	v.Field("LOG_FORMAT", c.Log.Format, OneOf("text", "json"))
	if _, err := ParseLevel(c.Log.Level); err != nil {
		v.Field("LOG_LEVEL", c.Log.Level, OneOf("debug", "info", "warn", "error"))
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, err
	}
	return lvl, nil
}
