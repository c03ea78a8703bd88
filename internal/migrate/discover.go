// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSubdir is the migrations directory relative to the project root.
var DefaultSubdir = filepath.Join("supabase", "migrations")

var (
	// ErrDirNotFound is returned when the migrations directory does not exist.
	ErrDirNotFound = errors.New("migrations directory not found")
	// ErrNoMigrations is returned when the directory holds no .sql files.
	ErrNoMigrations = errors.New("no migration files found")
)

// Discover lists the .sql files directly under dir, sorted by filename.
// Subdirectories are not descended into.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return nil, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoMigrations, dir)
	}

	sort.Strings(names)
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}
