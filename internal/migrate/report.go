// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

type report struct {
	RunID      string       `yaml:"run_id"`
	Target     string       `yaml:"target,omitempty"`
	Dir        string       `yaml:"dir"`
	StartedAt  string       `yaml:"started_at"`
	FinishedAt string       `yaml:"finished_at"`
	Succeeded  int          `yaml:"succeeded"`
	Failed     int          `yaml:"failed"`
	Files      []reportFile `yaml:"files"`
}

type reportFile struct {
	Path       string           `yaml:"path"`
	Outcome    Outcome          `yaml:"outcome"`
	Error      string           `yaml:"error,omitempty"`
	Skipped    int              `yaml:"skipped,omitempty"`
	Statements []reportFragment `yaml:"statements,omitempty"`
}

type reportFragment struct {
	Index    int    `yaml:"index"`
	Kind     string `yaml:"kind"`
	SQL      string `yaml:"sql"`
	Response string `yaml:"response,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// MarshalReport renders the summary as YAML.
func MarshalReport(s Summary) ([]byte, error) {
	ok, failed := s.Counts()
	r := report{
		RunID:      s.RunID,
		Target:     s.Target,
		Dir:        s.Dir,
		StartedAt:  s.StartedAt.Format(time.RFC3339),
		FinishedAt: s.FinishedAt.Format(time.RFC3339),
		Succeeded:  ok,
		Failed:     failed,
	}
	for _, f := range s.Files {
		rf := reportFile{Path: f.Path, Outcome: f.Outcome, Error: f.Error, Skipped: f.Skipped}
		for _, frag := range f.Fragments {
			rf.Statements = append(rf.Statements, reportFragment{
				Index:    frag.Index,
				Kind:     frag.Kind,
				SQL:      frag.Statement,
				Response: string(frag.Response),
				Error:    frag.Error,
			})
		}
		r.Files = append(r.Files, rf)
	}
	return yaml.Marshal(r)
}

// WriteReport writes the YAML report to path, creating parent directories.
func WriteReport(path string, s Summary) error {
	data, err := MarshalReport(s)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
