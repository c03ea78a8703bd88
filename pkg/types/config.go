// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds configuration shared between the CLI and the
// internal packages.
package types

import "time"

// BackendConfig holds the hosted database backend settings used by the
// rpc migration target.
type BackendConfig struct {
	// URL is the project base URL (e.g. "https://xyz.supabase.co").
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// ServiceKey is sent both as the apikey header and as a bearer token.
	ServiceKey string `json:"-" yaml:"-" mapstructure:"service_key"`

	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with every call.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RateLimitRetries is the number of backoff retries on HTTP 429.
	// Zero disables retrying.
	RateLimitRetries int `json:"rate_limit_retries" yaml:"rate_limit_retries" mapstructure:"rate_limit_retries"`
}

// MigrationTarget selects where migration fragments are sent.
type MigrationTarget string

const (
	TargetRPC    MigrationTarget = "rpc"
	TargetSQL    MigrationTarget = "sql"
	TargetDryRun MigrationTarget = "dry-run"
)

// MigrationConfig holds settings for the migrate command.
type MigrationConfig struct {
	// Dir is the migrations directory (default <base-dir>/supabase/migrations).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Target selects the executor: rpc, sql, or dry-run.
	Target MigrationTarget `json:"target" yaml:"target" mapstructure:"target"`

	// Function is the remote procedure that executes SQL (default "exec_sql").
	Function string `json:"function" yaml:"function" mapstructure:"function"`

	// Driver is the database/sql driver name for the sql target
	// (pgx, postgres, mysql, sqlite3).
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// DSN is the connection string for the sql target.
	DSN string `json:"-" yaml:"-" mapstructure:"dsn"`

	// FailOnError stops the run after the first file with a failed fragment.
	FailOnError bool `json:"fail_on_error" yaml:"fail_on_error" mapstructure:"fail_on_error"`

	// JournalPath is the SQLite apply journal. Empty disables journaling.
	JournalPath string `json:"journal" yaml:"journal" mapstructure:"journal"`

	// ReportPath receives a YAML run report when set.
	ReportPath string `json:"report" yaml:"report" mapstructure:"report"`
}

// RenderEngine identifies the HTML-to-PDF engine.
type RenderEngine string

const (
	EngineChrome     RenderEngine = "chrome"
	EngineWeasyPrint RenderEngine = "weasyprint"
)

// RenderConfig holds settings for the render command.
type RenderConfig struct {
	// Engine selects the rendering engine: chrome or weasyprint.
	Engine RenderEngine `json:"engine" yaml:"engine" mapstructure:"engine"`

	// HTMLPath is the source document.
	HTMLPath string `json:"html" yaml:"html" mapstructure:"html"`

	// StylesheetPath is the CSS applied on top of the document.
	StylesheetPath string `json:"css" yaml:"css" mapstructure:"css"`

	// OutputPath is where the PDF is written. An existing file is replaced.
	OutputPath string `json:"output" yaml:"output" mapstructure:"output"`

	// PresentationalHints makes the engine honour HTML styling attributes
	// (width, bgcolor, align, ...) in addition to CSS.
	PresentationalHints bool `json:"presentational_hints" yaml:"presentational_hints" mapstructure:"presentational_hints"`

	// Image is the container image for the weasyprint engine.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// Timeout bounds a single render.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// ChromeBin points the chrome engine at a specific browser binary.
	ChromeBin string `json:"chrome_bin" yaml:"chrome_bin" mapstructure:"chrome_bin"`

	// NoSandbox disables the Chromium sandbox (needed in most containers).
	NoSandbox bool `json:"no_sandbox" yaml:"no_sandbox" mapstructure:"no_sandbox"`
}
