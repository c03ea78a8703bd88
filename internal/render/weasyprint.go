// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/techcare/ops/internal/container"
	"github.com/techcare/ops/pkg/types"
)

// ErrNoImage is returned when the weasyprint engine has no image configured.
var ErrNoImage = errors.New("weasyprint engine needs a container image (--image)")

// weasyprintBin is run as the container entrypoint, whatever the image
// declares.
const weasyprintBin = "weasyprint"

const (
	docMount   = "/doc"
	styleMount = "/style"
)

// WeasyPrintEngine runs the WeasyPrint CLI inside a container. The HTML and
// stylesheet directories are mounted read-only and the PDF is read from
// stdout. Image must provide the weasyprint CLI on PATH.
type WeasyPrintEngine struct {
	Image string

	// Runtime overrides container detection.
	Runtime container.Runtime
}

func (e *WeasyPrintEngine) Name() string { return string(types.EngineWeasyPrint) }

func (e *WeasyPrintEngine) Render(ctx context.Context, doc Document) ([]byte, error) {
	if e.Image == "" {
		return nil, ErrNoImage
	}
	rt := e.Runtime
	if rt == nil {
		var err error
		if rt, err = container.DetectRuntime(ctx); err != nil {
			return nil, err
		}
	}
	if err := rt.ImageExists(ctx, e.Image); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := rt.Run(ctx, weasyprintSpec(e.Image, doc), nil, &out); err != nil {
		return nil, fmt.Errorf("weasyprint: %w", err)
	}
	return out.Bytes(), nil
}

func weasyprintSpec(image string, doc Document) container.RunSpec {
	var args []string
	if doc.PresentationalHints {
		args = append(args, "--presentational-hints")
	}
	args = append(args,
		"--base-url", docMount+"/",
		"--stylesheet", styleMount+"/"+filepath.Base(doc.StylesheetPath),
		docMount+"/"+filepath.Base(doc.HTMLPath),
		"-",
	)

	return container.RunSpec{
		Image:      image,
		Entrypoint: weasyprintBin,
		Args:       args,
		Mounts: []container.Mount{
			{Source: filepath.Dir(doc.HTMLPath), Target: docMount, ReadOnly: true},
			{Source: filepath.Dir(doc.StylesheetPath), Target: styleMount, ReadOnly: true},
		},
	}
}
