package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/gaborage/go-sqltx/database/internal/tracking"
	"github.com/gaborage/go-sqltx/database/template"
)

// Statement is a compiled template bound to a transaction. Compilation
// happens when the statement is created; a compilation error is reported by
// every execution method.
type Statement struct {
	tx       *Transaction
	compiled *template.Compiled
	err      error
}

// SQL compiles text, in which every "{}" marks a slot filled by the
// matching argument. See package template for the slot kinds.
func (t *Transaction) SQL(text string, args ...any) *Statement {
	tpl, err := template.New(text, args...)
	if err != nil {
		return &Statement{tx: t, err: err}
	}
	return t.Template(tpl)
}

// Template compiles tpl for execution in t.
func (t *Transaction) Template(tpl template.Template) *Statement {
	compiled, err := template.Compile(tpl, t.chain.db.registry)
	return &Statement{tx: t, compiled: compiled, err: err}
}

// SQL returns the compiled SQL text with "?" placeholders, or "" if
// compilation failed.
func (s *Statement) SQL() string {
	if s.compiled == nil {
		return ""
	}
	return s.compiled.SQL()
}

// Err returns the compilation error, if any.
func (s *Statement) Err() error {
	return s.err
}

// Compiled returns the compiled statement, or nil if compilation failed.
func (s *Statement) Compiled() *template.Compiled {
	return s.compiled
}

// prepare checks the transaction, connects it if needed and rebinds the
// SQL for the driver.
func (s *Statement) prepare(ctx context.Context) (*sql.Tx, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	tx, err := s.tx.connection(ctx)
	if err != nil {
		return nil, "", err
	}
	query, err := s.tx.chain.db.dialect.Rebind(s.compiled)
	if err != nil {
		return nil, "", newError(s.tx, "failed to rebind statement", s.compiled.SQL(), err)
	}
	return tx, query, nil
}

// Exec executes the statement once per batch row and discards the results.
func (s *Statement) Exec(ctx context.Context) error {
	return s.exec(ctx, nil)
}

// ExecUpdate executes the statement and returns the number of affected rows,
// summed over all batch rows.
func (s *Statement) ExecUpdate(ctx context.Context) (int64, error) {
	var total int64
	err := s.exec(ctx, func(res sql.Result) error {
		n, err := res.RowsAffected()
		total += n
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// GeneratedKeys executes the statement and returns the key generated for
// each batch row. It requires a driver supporting LastInsertId; with
// PostgreSQL use a RETURNING clause and Rows instead.
func (s *Statement) GeneratedKeys(ctx context.Context) ([]int64, error) {
	keys := make([]int64, 0, s.width())
	err := s.exec(ctx, func(res sql.Result) error {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		keys = append(keys, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Statement) width() int {
	if s.compiled == nil {
		return 0
	}
	return s.compiled.Width()
}

// exec runs every batch row, passing each result to collect.
func (s *Statement) exec(ctx context.Context, collect func(sql.Result) error) (err error) {
	tx, query, err := s.prepare(ctx)
	if err != nil {
		return err
	}

	rows := s.compiled.Rows()
	start := time.Now()
	var affected int64
	defer func() {
		tracking.TrackDBOperation(ctx, s.tx.chain.db.tracking, s.tx.String(), query, rows[0], start, affected, err)
	}()

	run := func(args []any) (sql.Result, error) {
		return tx.ExecContext(ctx, query, args...)
	}
	if len(rows) > 1 {
		stmt, perr := tx.PrepareContext(ctx, query)
		if perr != nil {
			return newError(s.tx, "failed to prepare statement", query, perr)
		}
		defer stmt.Close()
		run = func(args []any) (sql.Result, error) {
			return stmt.ExecContext(ctx, args...)
		}
	}

	for _, args := range rows {
		res, xerr := run(args)
		if xerr != nil {
			return newError(s.tx, "failed to execute statement", query, xerr)
		}
		if n, nerr := res.RowsAffected(); nerr == nil {
			affected += n
		}
		if collect != nil {
			if cerr := collect(res); cerr != nil {
				return newError(s.tx, "failed to read statement result", query, cerr)
			}
		}
	}
	return nil
}

// Rows returns a lazy source over the rows produced by the statement. The
// statement runs each time a terminal operation of the source is called.
func (s *Statement) Rows() *RowSource {
	return &RowSource{stmt: s}
}
