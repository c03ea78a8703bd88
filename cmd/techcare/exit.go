// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/techcare/ops/internal/migrate"
	"github.com/techcare/ops/internal/rpc"
)

// Exit codes.
const (
	exitSuccess        = 0
	exitGeneral        = 1
	exitConfig         = 2
	exitDirNotFound    = 3
	exitNoMigrations   = 4
	exitReadFailure    = 5
	exitPartialFailure = 6
)

// exitError carries an explicit exit code.
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitError) Unwrap() error { return e.err }

// configError marks a configuration problem (bad flag, missing credentials).
func configError(msg string, err error) *exitError {
	return &exitError{code: exitConfig, msg: msg, err: err}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var readErr *migrate.ReadError
	switch {
	case errors.Is(err, rpc.ErrMissingCredentials):
		return exitConfig
	case errors.Is(err, migrate.ErrDirNotFound):
		return exitDirNotFound
	case errors.Is(err, migrate.ErrNoMigrations):
		return exitNoMigrations
	case errors.As(err, &readErr):
		return exitReadFailure
	case errors.Is(err, migrate.ErrPartialFailure):
		return exitPartialFailure
	default:
		return exitGeneral
	}
}
