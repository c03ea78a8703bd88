// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package migrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultFunction is the remote procedure that executes a SQL string.
const DefaultFunction = "exec_sql"

// Executor runs one SQL statement and returns the raw response payload.
// RPC, direct database, and dry-run targets implement it.
type Executor interface {
	Exec(ctx context.Context, query string) (json.RawMessage, error)
}

// Caller invokes a named remote function. *rpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, function string, params any) (json.RawMessage, error)
}

// RPCExecutor sends each statement as the "query" argument of Function.
type RPCExecutor struct {
	Caller   Caller
	Function string
}

// NewRPCExecutor returns an executor calling function (DefaultFunction
// when empty) through c.
func NewRPCExecutor(c Caller, function string) *RPCExecutor {
	if function == "" {
		function = DefaultFunction
	}
	return &RPCExecutor{Caller: c, Function: function}
}

func (e *RPCExecutor) Exec(ctx context.Context, query string) (json.RawMessage, error) {
	return e.Caller.Call(ctx, e.Function, map[string]string{"query": query})
}

// Execer is the part of *sql.DB, *sql.Tx and *sql.Conn the SQL target needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLExecutor applies statements straight to a database/sql connection.
// Each statement runs on its own, outside any transaction.
type SQLExecutor struct {
	DB Execer
}

func (e *SQLExecutor) Exec(ctx context.Context, query string) (json.RawMessage, error) {
	res, err := e.DB.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers do not report affected rows for DDL.
		n = 0
	}
	return json.Marshal(struct {
		RowsAffected int64 `json:"rows_affected"`
	}{n})
}

// Drivers lists the database/sql drivers registered for the SQL target.
var Drivers = []string{"pgx", "postgres", "mysql", "sqlite3"}

// OpenDatabase opens and pings a database for the SQL target.
func OpenDatabase(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a DSN is required for the sql target")
	}
	known := false
	for _, d := range Drivers {
		if d == driver {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unsupported driver %q: use one of %v", driver, Drivers)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}
	return db, nil
}

// DryRunExecutor prints each statement instead of executing it.
type DryRunExecutor struct {
	Out io.Writer
	n   int
}

func (e *DryRunExecutor) Exec(_ context.Context, query string) (json.RawMessage, error) {
	e.n++
	fmt.Fprintln(e.Out)
	fmt.Fprintf(e.Out, "-- Statement %d (%s)\n", e.n, Kind(query))
	fmt.Fprintln(e.Out, query)
	fmt.Fprintln(e.Out)
	return nil, nil
}
