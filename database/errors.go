package database

import (
	"errors"
	"strings"
)

// Usage errors. They report programmer mistakes and are never retried.
var (
	// ErrTransactionFinished is returned when a committed or rolled back
	// transaction is used again.
	ErrTransactionFinished = errors.New("transaction already finished")
	// ErrNestedTransactionsActive is returned when a transaction is used
	// while one of its nested transactions is still open.
	ErrNestedTransactionsActive = errors.New("nested transactions are still active")
	// ErrTooManyRows is returned by Get when the result has more than one row.
	ErrTooManyRows = errors.New("expected a single result, but more than one result was available")
	// ErrInvalidMax is returned by Consume for a non-positive row limit.
	ErrInvalidMax = errors.New("row limit must be positive")
)

// Error is a failure reported by the database while a transaction acquired
// its connection, managed a savepoint, or prepared, executed or read a
// statement. It is the only error kind the retrying executor inspects.
type Error struct {
	// Tx is the name of the transaction, as returned by Transaction.String.
	Tx string
	// Message describes the failed step.
	Message string
	// SQL is the offending statement, if any.
	SQL string
	// Err is the driver error.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Tx != "" {
		b.WriteString(e.Tx)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.SQL != "" {
		b.WriteString(" [")
		b.WriteString(e.SQL)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(tx *Transaction, message, query string, err error) *Error {
	e := &Error{Message: message, SQL: query, Err: err}
	if tx != nil {
		e.Tx = tx.String()
	}
	return e
}

// IsDatabaseError reports whether err is or wraps an *Error.
func IsDatabaseError(err error) bool {
	var dbErr *Error
	return errors.As(err, &dbErr)
}

// RootCause follows the Unwrap chain of err to its innermost error. Joined
// errors stop the walk.
func RootCause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}
