// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techcare/ops/internal/render"
	"github.com/techcare/ops/internal/secrets"
	"github.com/techcare/ops/pkg/types"
)

func newTestViper(t *testing.T, base string) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.Set("base_dir", base)
	return v
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		base, p, want string
	}{
		{"/proj", "supabase/migrations", "/proj/supabase/migrations"},
		{"/proj", "/abs/dir", "/abs/dir"},
		{"/proj", "", ""},
		{".", "docs/relatorio.pdf", "docs/relatorio.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolvePath(tt.base, tt.p), "%s + %s", tt.base, tt.p)
	}
}

func TestMigrationConfig_Defaults(t *testing.T) {
	v := newTestViper(t, "/proj")

	cfg, err := migrationConfig(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/proj", "supabase", "migrations"), cfg.Dir)
	assert.Equal(t, types.TargetRPC, cfg.Target)
	assert.Equal(t, "exec_sql", cfg.Function)
	assert.Equal(t, filepath.Join("/proj", ".techcare", "journal.db"), cfg.JournalPath)
	assert.Empty(t, cfg.ReportPath)
	assert.False(t, cfg.FailOnError)
}

func TestMigrationConfig_JournalDisabled(t *testing.T) {
	v := newTestViper(t, "/proj")
	v.Set("migrate.journal", "")

	cfg, err := migrationConfig(v)
	require.NoError(t, err)
	assert.Empty(t, cfg.JournalPath)
}

func TestMigrationConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{"unknown target", map[string]any{"migrate.target": "ftp"}, "unknown target"},
		{"sql without dsn", map[string]any{"migrate.target": "sql"}, "--dsn"},
		{"sql unknown driver", map[string]any{"migrate.target": "sql", "migrate.dsn": "x", "migrate.driver": "oracle"}, "unsupported driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper(t, "/proj")
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := migrationConfig(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, exitConfig, exitCode(err))
		})
	}
}

func TestRenderConfig(t *testing.T) {
	v := newTestViper(t, "/proj")

	cfg, err := renderConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.EngineChrome, cfg.Engine)
	assert.Equal(t, filepath.Join("/proj", "docs", "relatorio.html"), cfg.HTMLPath)
	assert.Equal(t, filepath.Join("/proj", "docs", "relatorio.css"), cfg.StylesheetPath)
	assert.Equal(t, filepath.Join("/proj", "docs", "relatorio.pdf"), cfg.OutputPath)
	assert.True(t, cfg.PresentationalHints)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)

	v.Set("render.engine", "latex")
	_, err = renderConfig(v)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestRenderConfig_WeasyPrintNeedsImage(t *testing.T) {
	v := newTestViper(t, "/proj")
	v.Set("render.engine", "weasyprint")

	_, err := renderConfig(v)
	assert.Equal(t, exitConfig, exitCode(err))
	assert.ErrorIs(t, err, render.ErrNoImage)

	v.Set("render.image", "my/weasy:62")
	cfg, err := renderConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "my/weasy:62", cfg.Image)
}

func TestBackendConfig_Precedence(t *testing.T) {
	s := secrets.Set{
		secrets.KeyBackendURL:        "https://from-file.supabase.co",
		secrets.KeyBackendServiceKey: "file-key",
	}

	t.Run("secrets fill the gaps", func(t *testing.T) {
		v := newTestViper(t, ".")
		cfg := backendConfig(v, s)
		assert.Equal(t, "https://from-file.supabase.co", cfg.URL)
		assert.Equal(t, "file-key", cfg.ServiceKey)
		assert.Equal(t, 60*time.Second, cfg.Timeout)
		assert.Zero(t, cfg.RateLimitRetries)
	})

	t.Run("backend env names win over secrets", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "https://from-env.supabase.co")
		t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "env-key")
		v := newTestViper(t, ".")
		bindEnv(v)

		cfg := backendConfig(v, s)
		assert.Equal(t, "https://from-env.supabase.co", cfg.URL)
		assert.Equal(t, "env-key", cfg.ServiceKey)
	})

	t.Run("prefixed env wins over backend env names", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "https://from-env.supabase.co")
		t.Setenv("TECHCARE_BACKEND_URL", "https://prefixed.supabase.co")
		t.Setenv("TECHCARE_BACKEND_RATE_LIMIT_RETRIES", "3")
		v := newTestViper(t, ".")
		bindEnv(v)

		cfg := backendConfig(v, nil)
		assert.Equal(t, "https://prefixed.supabase.co", cfg.URL)
		assert.Equal(t, 3, cfg.RateLimitRetries)
	})
}
