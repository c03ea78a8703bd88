// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

// Package main contains Mage build targets for techcare developer tooling.
package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/techcare/ops/internal/migrate"
)

// projectDirs lists the working directories the CLI expects.
var projectDirs = []string{
	"supabase/migrations",
	"docs",
	".secrets",
}

// Init creates the project directory structure.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "techcare"
	cmdPkg  = "./cmd/techcare"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Lint runs go vet over the module.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the unit tests.
func Test() error {
	mg.Deps(Lint)
	return sh.RunV("go", "test", "-short", "./...")
}

// Integration runs the container-backed tests (needs docker or podman).
func Integration() error {
	return sh.RunV("go", "test", "-tags", "integration", "-run", "Postgres", "./internal/migrate/...")
}

// Migrate builds the CLI and prints the pending statements without
// executing them.
func Migrate() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "migrate", "--target", "dry-run")
}

// Stats prints project metrics: Go production/test LOC and migration statement count.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	files, statements, err := countMigrations(filepath.Join("supabase", "migrations"))
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Migration files:                %d\n", files)
	fmt.Printf("Migration statements:           %d\n", statements)
	return nil
}

// countGoLines walks the tree and counts non-blank lines in Go files.
// Only _test.go files are counted when testOnly is set, only the others
// otherwise. Directories starting with "_" are skipped.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) != "" {
				total++
			}
		}
		return sc.Err()
	})
	return total, err
}

// countMigrations counts .sql files and the statements the runner would
// send for them.
func countMigrations(dir string) (files, statements int, err error) {
	paths, err := migrate.Discover(dir)
	if err != nil {
		if errors.Is(err, migrate.ErrDirNotFound) || errors.Is(err, migrate.ErrNoMigrations) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return 0, 0, fmt.Errorf("reading %s: %w", p, err)
		}
		statements += len(migrate.Split(string(data)))
	}
	return len(paths), statements, nil
}
