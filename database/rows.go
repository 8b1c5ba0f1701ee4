package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gaborage/go-sqltx/database/internal/tracking"
	"github.com/gaborage/go-sqltx/database/mapping"
	"github.com/gaborage/go-sqltx/database/types"
)

// RowSource is a lazy cursor over the rows of a statement. Nothing runs
// until a terminal operation is called; each terminal operation executes
// the statement again. A batch statement is queried once per batch row and
// the rows are yielded in batch order.
type RowSource struct {
	stmt *Statement
}

// errStop ends an iteration early without reporting an error.
var errStop = errors.New("stop iteration")

// visitError marks errors returned by caller callbacks so they are passed
// through without translation.
type visitError struct {
	err error
}

func (e *visitError) Error() string { return e.err.Error() }

func (e *visitError) Unwrap() error { return e.err }

// each runs the statement and calls visit for every row until visit returns
// errStop or an error.
func (r *RowSource) each(ctx context.Context, visit func(types.Row) error) error {
	s := r.stmt
	tx, query, err := s.prepare(ctx)
	if err != nil {
		return err
	}

	batches := s.compiled.Rows()
	start := time.Now()
	err = r.query(ctx, tx, query, batches, visit)

	var ve *visitError
	switch {
	case errors.Is(err, errStop):
		err = nil
	case errors.As(err, &ve):
		// callback errors are not database failures
		tracking.TrackDBOperation(ctx, s.tx.chain.db.tracking, s.tx.String(), query, batches[0], start, 0, nil)
		return ve.err
	}
	tracking.TrackDBOperation(ctx, s.tx.chain.db.tracking, s.tx.String(), query, batches[0], start, 0, err)
	return err
}

func (r *RowSource) query(ctx context.Context, tx *sql.Tx, query string, batches [][]any, visit func(types.Row) error) error {
	s := r.stmt
	run := func(args []any) (*sql.Rows, error) {
		return tx.QueryContext(ctx, query, args...)
	}
	if len(batches) > 1 {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return newError(s.tx, "failed to prepare statement", query, err)
		}
		defer stmt.Close()
		run = func(args []any) (*sql.Rows, error) {
			return stmt.QueryContext(ctx, args...)
		}
	}

	for _, args := range batches {
		rows, err := run(args)
		if err != nil {
			return newError(s.tx, "failed to execute query", query, err)
		}
		if err := r.scan(rows, query, visit); err != nil {
			return err
		}
	}
	return nil
}

func (r *RowSource) scan(rows *sql.Rows, query string, visit func(types.Row) error) error {
	s := r.stmt
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return newError(s.tx, "failed to read result columns", query, err)
	}

	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return newError(s.tx, "failed to read row", query, err)
		}

		if err := visit(types.NewStaticRow(columns, values, s.tx.chain.db.registry)); err != nil {
			if errors.Is(err, errStop) {
				return err
			}
			return &visitError{err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return newError(s.tx, "failed to read rows", query, err)
	}
	return nil
}

// Consume passes at most limit rows to fn and reports whether more rows were
// available. An error returned by fn stops the iteration and is returned
// unchanged.
func (r *RowSource) Consume(ctx context.Context, fn func(types.Row) error, limit int) (bool, error) {
	if limit <= 0 {
		return false, ErrInvalidMax
	}
	count := 0
	more := false
	err := r.each(ctx, func(row types.Row) error {
		if count == limit {
			more = true
			return errStop
		}
		count++
		return fn(row)
	})
	if err != nil {
		return false, err
	}
	return more, nil
}

// ConsumeAll passes every row to fn.
func (r *RowSource) ConsumeAll(ctx context.Context, fn func(types.Row) error) error {
	return r.each(ctx, fn)
}

// List returns all rows.
func (r *RowSource) List(ctx context.Context) ([]types.Row, error) {
	var out []types.Row
	err := r.each(ctx, func(row types.Row) error {
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// First returns the first row, or sql.ErrNoRows when there is none.
func (r *RowSource) First(ctx context.Context) (types.Row, error) {
	var first types.Row
	if _, err := r.Consume(ctx, func(row types.Row) error {
		first = row
		return nil
	}, 1); err != nil {
		return nil, err
	}
	if first == nil {
		return nil, sql.ErrNoRows
	}
	return first, nil
}

// Get returns the only row. It fails with sql.ErrNoRows when there is none
// and with ErrTooManyRows when there is more than one.
func (r *RowSource) Get(ctx context.Context) (types.Row, error) {
	var only types.Row
	more, err := r.Consume(ctx, func(row types.Row) error {
		only = row
		return nil
	}, 1)
	switch {
	case err != nil:
		return nil, err
	case more:
		return nil, ErrTooManyRows
	case only == nil:
		return nil, sql.ErrNoRows
	}
	return only, nil
}

// Mapped is a RowSource whose rows are converted to T.
type Mapped[T any] struct {
	src *RowSource
	fn  func(types.Row) (T, error)
}

// Map converts the rows of src with m.
func Map[T any](src *RowSource, m mapping.Mapper[T]) *Mapped[T] {
	return &Mapped[T]{src: src, fn: m}
}

// MapMapped applies f to every value produced by m.
func MapMapped[T, U any](m *Mapped[T], f func(T) (U, error)) *Mapped[U] {
	return &Mapped[U]{src: m.src, fn: func(row types.Row) (U, error) {
		v, err := m.fn(row)
		if err != nil {
			var zero U
			return zero, err
		}
		return f(v)
	}}
}

func (m *Mapped[T]) visit(fn func(T) error) func(types.Row) error {
	return func(row types.Row) error {
		v, err := m.fn(row)
		if err != nil {
			return err
		}
		return fn(v)
	}
}

// Consume passes at most limit values to fn and reports whether more rows
// were available.
func (m *Mapped[T]) Consume(ctx context.Context, fn func(T) error, limit int) (bool, error) {
	return m.src.Consume(ctx, m.visit(fn), limit)
}

// ConsumeAll passes every value to fn.
func (m *Mapped[T]) ConsumeAll(ctx context.Context, fn func(T) error) error {
	return m.src.ConsumeAll(ctx, m.visit(fn))
}

// List returns all values.
func (m *Mapped[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	err := m.src.ConsumeAll(ctx, m.visit(func(v T) error {
		out = append(out, v)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// First returns the first value, or sql.ErrNoRows when there is none.
func (m *Mapped[T]) First(ctx context.Context) (T, error) {
	var zero T
	row, err := m.src.First(ctx)
	if err != nil {
		return zero, err
	}
	return m.fn(row)
}

// Get returns the only value. See RowSource.Get.
func (m *Mapped[T]) Get(ctx context.Context) (T, error) {
	var zero T
	row, err := m.src.Get(ctx)
	if err != nil {
		return zero, err
	}
	return m.fn(row)
}
