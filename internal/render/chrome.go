// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/techcare/ops/pkg/types"
)

// ChromeEngine prints the document with headless Chromium. Chromium applies
// presentational HTML attributes natively, so PresentationalHints needs no
// extra switch here.
//
// When Bin is empty go-rod looks for a local browser and downloads a managed
// Chromium on first use. Set ROD_NO_SANDBOX=1 inside containers.
type ChromeEngine struct {
	Bin       string
	NoSandbox bool
}

func (e *ChromeEngine) Name() string { return string(types.EngineChrome) }

func (e *ChromeEngine) Render(ctx context.Context, doc Document) ([]byte, error) {
	l := launcher.New().Headless(true).Context(ctx)
	if e.Bin != "" {
		l = l.Bin(e.Bin)
	}
	if e.NoSandbox {
		l = l.NoSandbox(true)
	}
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: fileURL(doc.HTMLPath)})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", doc.HTMLPath, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", doc.HTMLPath, err)
	}
	if doc.Stylesheet != "" {
		if err := page.AddStyleTag("", doc.Stylesheet); err != nil {
			return nil, fmt.Errorf("applying stylesheet: %w", err)
		}
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("printing to PDF: %w", err)
	}
	return io.ReadAll(stream)
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
