// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/techcare/ops/internal/migrate"
	"github.com/techcare/ops/internal/render"
	"github.com/techcare/ops/internal/secrets"
	"github.com/techcare/ops/pkg/types"
)

// defaultJournal is the apply journal location relative to the base dir.
var defaultJournal = filepath.Join(".techcare", "journal.db")

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_dir", ".")
	v.SetDefault("secrets_dir", secrets.DefaultDir)

	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("backend.rate_limit_retries", 0)

	v.SetDefault("migrate.dir", migrate.DefaultSubdir)
	v.SetDefault("migrate.target", string(types.TargetRPC))
	v.SetDefault("migrate.function", migrate.DefaultFunction)
	v.SetDefault("migrate.driver", "pgx")
	v.SetDefault("migrate.fail_on_error", false)
	v.SetDefault("migrate.journal", defaultJournal)

	v.SetDefault("render.engine", string(types.EngineChrome))
	v.SetDefault("render.html", render.DefaultHTML)
	v.SetDefault("render.css", render.DefaultStylesheet)
	v.SetDefault("render.output", render.DefaultOutput)
	v.SetDefault("render.presentational_hints", true)
	v.SetDefault("render.timeout", 2*time.Minute)
}

// bindEnv maps TECHCARE_* variables onto config keys and accepts the
// backend's conventional variable names for the credentials.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("TECHCARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("backend.url", "TECHCARE_BACKEND_URL", "SUPABASE_URL")
	_ = v.BindEnv("backend.service_key", "TECHCARE_BACKEND_SERVICE_KEY", "SUPABASE_SERVICE_ROLE_KEY")
}

// resolvePath anchors a relative path at base. Empty and absolute paths are
// returned unchanged.
func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// backendConfig reads the backend settings. Credentials missing from
// flags, environment and config file are taken from the secrets set.
func backendConfig(v *viper.Viper, s secrets.Set) types.BackendConfig {
	cfg := types.BackendConfig{
		URL:              strings.TrimSpace(v.GetString("backend.url")),
		ServiceKey:       strings.TrimSpace(v.GetString("backend.service_key")),
		Timeout:          v.GetDuration("backend.timeout"),
		UserAgent:        v.GetString("backend.user_agent"),
		RateLimitRetries: v.GetInt("backend.rate_limit_retries"),
	}
	return s.Apply(cfg)
}

// journalPath returns the resolved journal path, or "" when disabled.
func journalPath(v *viper.Viper) string {
	return resolvePath(v.GetString("base_dir"), v.GetString("migrate.journal"))
}

func migrationConfig(v *viper.Viper) (types.MigrationConfig, error) {
	base := v.GetString("base_dir")
	cfg := types.MigrationConfig{
		Dir:         resolvePath(base, v.GetString("migrate.dir")),
		Target:      types.MigrationTarget(v.GetString("migrate.target")),
		Function:    v.GetString("migrate.function"),
		Driver:      v.GetString("migrate.driver"),
		DSN:         v.GetString("migrate.dsn"),
		FailOnError: v.GetBool("migrate.fail_on_error"),
		JournalPath: journalPath(v),
		ReportPath:  resolvePath(base, v.GetString("migrate.report")),
	}

	switch cfg.Target {
	case types.TargetRPC, types.TargetDryRun:
	case types.TargetSQL:
		if cfg.DSN == "" {
			return cfg, configError("sql target", fmt.Errorf("--dsn (or TECHCARE_MIGRATE_DSN) is required"))
		}
		if !slices.Contains(migrate.Drivers, cfg.Driver) {
			return cfg, configError("sql target", fmt.Errorf("unsupported driver %q: use one of %v", cfg.Driver, migrate.Drivers))
		}
	default:
		return cfg, configError("migrate", fmt.Errorf("unknown target %q: use %s, %s or %s",
			cfg.Target, types.TargetRPC, types.TargetSQL, types.TargetDryRun))
	}
	return cfg, nil
}

func renderConfig(v *viper.Viper) (types.RenderConfig, error) {
	base := v.GetString("base_dir")
	cfg := types.RenderConfig{
		Engine:              types.RenderEngine(v.GetString("render.engine")),
		HTMLPath:            resolvePath(base, v.GetString("render.html")),
		StylesheetPath:      resolvePath(base, v.GetString("render.css")),
		OutputPath:          resolvePath(base, v.GetString("render.output")),
		PresentationalHints: v.GetBool("render.presentational_hints"),
		Image:               v.GetString("render.image"),
		Timeout:             v.GetDuration("render.timeout"),
		ChromeBin:           v.GetString("render.chrome_bin"),
		NoSandbox:           v.GetBool("render.no_sandbox"),
	}

	switch cfg.Engine {
	case types.EngineChrome, types.EngineWeasyPrint:
	default:
		return cfg, configError("render", fmt.Errorf("unknown engine %q: use %s or %s",
			cfg.Engine, types.EngineChrome, types.EngineWeasyPrint))
	}
	if cfg.Engine == types.EngineWeasyPrint && cfg.Image == "" {
		return cfg, configError("render", render.ErrNoImage)
	}
	if cfg.HTMLPath == "" || cfg.StylesheetPath == "" || cfg.OutputPath == "" {
		return cfg, configError("render", fmt.Errorf("html, css and output paths must not be empty"))
	}
	return cfg, nil
}
