// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads backend credentials from a directory of plain-text
// files, one secret per file: the filename is the key and the trimmed file
// contents are the value. The directory is meant to stay out of version
// control.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/techcare/ops/pkg/types"
)

// DefaultDir is the secrets directory relative to the working directory.
const DefaultDir = ".secrets"

// Key files understood by Apply.
const (
	KeyBackendURL        = "supabase-url"
	KeyBackendServiceKey = "supabase-service-key"
)

// Set is a loaded secrets directory.
type Set map[string]string

// Load reads the regular, non-hidden files of dir. A missing directory
// yields an empty Set. Unreadable files are reported to warn and skipped;
// empty files are ignored.
func Load(dir string, warn io.Writer) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	set := make(Set)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if warn != nil {
				fmt.Fprintf(warn, "warning: could not read secret %s: %v\n", name, err)
			}
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			set[name] = v
		}
	}
	return set, nil
}

// Keys returns the loaded key names in sorted order. Values are never listed.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply fills blank credential fields of cfg from the set. Values already
// present in cfg win.
func (s Set) Apply(cfg types.BackendConfig) types.BackendConfig {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = s[KeyBackendURL]
	}
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		cfg.ServiceKey = s[KeyBackendServiceKey]
	}
	return cfg
}
