// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/techcare/ops/internal/render"
	"github.com/techcare/ops/pkg/types"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the HTML report and its stylesheet to PDF",
	Long: `Render loads docs/relatorio.html and docs/relatorio.css, renders them
once with presentational HTML hints enabled, and writes docs/relatorio.pdf,
replacing any previous copy. Paths are relative to --base-dir.

Engines:
  chrome      headless Chromium through the DevTools protocol (default)
  weasyprint  the WeasyPrint CLI in a docker or podman container

The weasyprint engine has no default image: pass --image (or set
render.image) to an image with the weasyprint CLI on PATH. It is run as
the container entrypoint, so images that already use it as their
ENTRYPOINT work too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd.Context(), viper.GetViper(), cmd.OutOrStdout())
	},
}

func init() {
	f := renderCmd.Flags()
	f.String("engine", string(types.EngineChrome), "rendering engine: chrome or weasyprint")
	f.String("html", render.DefaultHTML, "HTML source, relative to --base-dir")
	f.String("css", render.DefaultStylesheet, "stylesheet, relative to --base-dir")
	f.StringP("output", "o", render.DefaultOutput, "PDF output, relative to --base-dir")
	f.String("image", "", "container image providing the weasyprint CLI (required for the weasyprint engine)")
	f.String("chrome-bin", "", "browser binary for the chrome engine (default: auto-detect)")
	f.Bool("no-sandbox", false, "disable the Chromium sandbox")
	f.Duration("timeout", 0, "maximum time for one render (default 2m)")

	for flag, key := range map[string]string{
		"engine":     "render.engine",
		"html":       "render.html",
		"css":        "render.css",
		"output":     "render.output",
		"image":      "render.image",
		"chrome-bin": "render.chrome_bin",
		"no-sandbox": "render.no_sandbox",
		"timeout":    "render.timeout",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(renderCmd)
}

func runRender(ctx context.Context, v *viper.Viper, out io.Writer) error {
	cfg, err := renderConfig(v)
	if err != nil {
		return err
	}
	eng, err := render.NewEngine(cfg)
	if err != nil {
		return configError("render", err)
	}
	return render.Render(ctx, eng, cfg, out)
}
