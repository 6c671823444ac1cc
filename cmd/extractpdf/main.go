// Command extractpdf runs one PDF through the pipeline and prints the JSON
// response, optionally writing the fields workbook too.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/medextract/internal/app"
	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core/assemble"
	"github.com/joseph-ayodele/medextract/internal/export"
)

func main() {
	xlsxOut := flag.String("xlsx", "", "also write the fields workbook to this path")
	pretty := flag.Bool("pretty", false, "indent JSON output")
	timeout := flag.Duration("timeout", 0, "overall timeout (default: REQUEST_TIMEOUT)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: extractpdf [flags] <file.pdf>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	_ = godotenv.Load()
	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	// logs go to stderr so stdout stays valid JSON
	logger := common.NewLogger(os.Stderr, cfg.Log)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	pdf, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read pdf", "path", path, "error", err)
		os.Exit(1)
	}

	d := cfg.Pipeline.RequestTimeout
	if *timeout > 0 {
		d = *timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	ctx, reqID := common.EnsureRequestID(ctx)
	logger = logger.With("req_id", reqID)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	start := time.Now()
	out, procErr := a.Processor.Process(ctx, pdf)
	resp := assemble.Assemble(out)
	if procErr != nil {
		resp = assemble.Failure(procErr)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		logger.Error("write json", "error", err)
		os.Exit(1)
	}
	if procErr != nil {
		logger.Error("document failed", "path", path, "error", procErr,
			"elapsed_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	if *xlsxOut != "" {
		if err := writeWorkbook(*xlsxOut, out); err != nil {
			logger.Error("write xlsx", "path", *xlsxOut, "error", err)
			os.Exit(1)
		}
		logger.Info("xlsx written", "path", *xlsxOut)
	}

	logger.Info("document processed",
		"path", path,
		"kind", out.Kind,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if out.IsDegraded() {
		// degraded still printed a usable response
		os.Exit(3)
	}
}

func writeWorkbook(path string, out assemble.Outcome) error {
	b, err := export.FieldsXLSX(out)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return errors.New("empty workbook")
	}
	return os.WriteFile(path, b, 0o644)
}
