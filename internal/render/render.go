// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns an HTML document plus a stylesheet into a PDF.
// Engines are pluggable; chrome (go-rod) and weasyprint (container) ship
// with the package.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/techcare/ops/pkg/types"
)

// Default document locations, relative to the base directory.
var (
	DefaultHTML       = filepath.Join("docs", "relatorio.html")
	DefaultStylesheet = filepath.Join("docs", "relatorio.css")
	DefaultOutput     = filepath.Join("docs", "relatorio.pdf")
)

// ErrEmptyOutput is returned when an engine produces no bytes.
var ErrEmptyOutput = errors.New("engine produced an empty PDF")

// Document is the input handed to an engine.
type Document struct {
	// HTMLPath is an absolute path to the source document.
	HTMLPath string

	// StylesheetPath is an absolute path to the stylesheet.
	StylesheetPath string

	// Stylesheet holds the stylesheet contents, already loaded.
	Stylesheet string

	// PresentationalHints asks the engine to honour HTML styling
	// attributes in addition to CSS.
	PresentationalHints bool
}

// Engine converts a document to PDF bytes.
type Engine interface {
	Name() string
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// NewEngine returns the engine selected by cfg.
func NewEngine(cfg types.RenderConfig) (Engine, error) {
	switch cfg.Engine {
	case "", types.EngineChrome:
		return &ChromeEngine{Bin: cfg.ChromeBin, NoSandbox: cfg.NoSandbox}, nil
	case types.EngineWeasyPrint:
		return &WeasyPrintEngine{Image: cfg.Image}, nil
	default:
		return nil, fmt.Errorf("unknown render engine %q (want %s or %s)",
			cfg.Engine, types.EngineChrome, types.EngineWeasyPrint)
	}
}

// Render loads the stylesheet, renders cfg.HTMLPath once with eng, and
// writes the PDF to cfg.OutputPath, replacing any existing file. The
// success line is written to w only after the PDF is in place.
func Render(ctx context.Context, eng Engine, cfg types.RenderConfig, w io.Writer) error {
	doc, err := load(cfg)
	if err != nil {
		return err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	pdf, err := eng.Render(ctx, doc)
	if err != nil {
		return fmt.Errorf("rendering %s with %s: %w", cfg.HTMLPath, eng.Name(), err)
	}
	if len(pdf) == 0 {
		return fmt.Errorf("rendering %s with %s: %w", cfg.HTMLPath, eng.Name(), ErrEmptyOutput)
	}

	if err := writeAtomic(cfg.OutputPath, pdf); err != nil {
		return err
	}

	fmt.Fprintf(w, "PDF gerado com sucesso: %s\n", cfg.OutputPath)
	return nil
}

func load(cfg types.RenderConfig) (Document, error) {
	css, err := os.ReadFile(cfg.StylesheetPath)
	if err != nil {
		return Document{}, fmt.Errorf("reading stylesheet: %w", err)
	}

	htmlPath, err := filepath.Abs(cfg.HTMLPath)
	if err != nil {
		return Document{}, fmt.Errorf("resolving %s: %w", cfg.HTMLPath, err)
	}
	info, err := os.Stat(htmlPath)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("reading document: %s is a directory", cfg.HTMLPath)
	}

	cssPath, err := filepath.Abs(cfg.StylesheetPath)
	if err != nil {
		return Document{}, fmt.Errorf("resolving %s: %w", cfg.StylesheetPath, err)
	}

	return Document{
		HTMLPath:            htmlPath,
		StylesheetPath:      cssPath,
		Stylesheet:          string(css),
		PresentationalHints: cfg.PresentationalHints,
	}, nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
