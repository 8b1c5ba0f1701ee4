package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormat(t *testing.T) {
	cause := errors.New("syntax error")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"full", &Error{Tx: "T0001", Message: "failed to execute statement", SQL: "SELEC 1", Err: cause}, "T0001: failed to execute statement [SELEC 1]: syntax error"},
		{"no_sql", &Error{Tx: "T0002 (T0001)", Message: "failed to commit", Err: cause}, "T0002 (T0001): failed to commit: syntax error"},
		{"message_only", &Error{Message: "failed to obtain connection"}, "failed to obtain connection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRootCause(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("attempt 2: %w", &Error{Message: "failed to read rows", Err: fmt.Errorf("scan: %w", cause)})

	assert.Same(t, cause, RootCause(wrapped))
	assert.Same(t, cause, RootCause(cause))
	assert.NoError(t, RootCause(nil))

	joined := errors.Join(cause, errors.New("other"))
	assert.Same(t, joined, RootCause(joined))
}

func TestIsDatabaseError(t *testing.T) {
	assert.True(t, IsDatabaseError(&Error{Message: "failed to commit"}))
	assert.True(t, IsDatabaseError(fmt.Errorf("ctx: %w", &Error{})))
	assert.False(t, IsDatabaseError(ErrTransactionFinished))
	assert.False(t, IsDatabaseError(nil))
}
