package ocr

import "github.com/joseph-ayodele/medextract/internal/common"

type Config struct {
	Engine    string // "cli" (default) | "gosseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang     string // default "eng"
	DPI      int    // rasterization DPI, default 300
	MaxPages int    // 0 = no limit

	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text; 0 leaves tesseract's default
	OEM int // 1 = LSTM; leave 0 to use default
}

// ConfigFrom maps the application OCR section onto Config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Engine:      c.Engine,
		Pdftoppm:    c.Pdftoppm,
		Tesseract:   c.Tesseract,
		Lang:        c.Lang,
		DPI:         c.DPI,
		MaxPages:    c.MaxPages,
		TessdataDir: c.TessdataDir,
		PSM:         c.PSM,
		OEM:         c.OEM,
	}
}

func (c Config) withDefaults() Config {
	if c.Engine == "" {
		c.Engine = "cli"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Lang == "" {
		c.Lang = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.MaxPages < 0 {
		c.MaxPages = 0
	}
	return c
}

// Tools lists the external binaries the configured engine needs.
func (c Config) Tools() []string {
	c = c.withDefaults()
	if c.Engine == "cli" {
		return []string{c.Pdftoppm, c.Tesseract}
	}
	return []string{c.Pdftoppm}
}
