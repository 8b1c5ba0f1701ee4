package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-sqltx/database/template"
)

func TestDialectRebind(t *testing.T) {
	compiled := mustCompile(t, "SELECT a FROM t WHERE b = {} AND c IN ({})", 1, pair{2, 3})
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{PostgreSQLDialect{}, "SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)"},
		{OracleDialect{}, "SELECT a FROM t WHERE b = :1 AND c IN (:2, :3)"},
		{GenericDialect{}, "SELECT a FROM t WHERE b = ? AND c IN (?, ?)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			got, err := tt.dialect.Rebind(compiled)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialectRebindKeepsLiteralQuestionMarks(t *testing.T) {
	tests := []struct {
		name     string
		compiled *template.Compiled
		want     map[string]string
	}{
		{
			name:     "quoted literal",
			compiled: mustCompile(t, "SELECT * FROM t WHERE note = 'why?' AND id = {}", 7),
			want: map[string]string{
				PostgreSQL: "SELECT * FROM t WHERE note = 'why?' AND id = $1",
				Oracle:     "SELECT * FROM t WHERE note = 'why?' AND id = :1",
				"generic":  "SELECT * FROM t WHERE note = 'why?' AND id = ?",
			},
		},
		{
			name:     "doubled question mark",
			compiled: mustCompile(t, "SELECT '??' AS x, {}", 1),
			want: map[string]string{
				PostgreSQL: "SELECT '??' AS x, $1",
				Oracle:     "SELECT '??' AS x, :1",
				"generic":  "SELECT '??' AS x, ?",
			},
		},
		{
			name:     "no placeholders",
			compiled: mustCompile(t, "SELECT '?' FROM dual"),
			want: map[string]string{
				PostgreSQL: "SELECT '?' FROM dual",
				Oracle:     "SELECT '?' FROM dual",
				"generic":  "SELECT '?' FROM dual",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, d := range []Dialect{PostgreSQLDialect{}, OracleDialect{}, GenericDialect{}} {
				got, err := d.Rebind(tt.compiled)
				require.NoError(t, err)
				assert.Equal(t, tt.want[d.Name()], got, d.Name())
			}
		})
	}
}

func TestStatementSendsLiteralTextUnchanged(t *testing.T) {
	db, mock, _ := newMockDatabase(t, WithDialect(PostgreSQLDialect{}))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notes SET body = 'why?' WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(okResult())

	tx, ctx := db.Begin(context.Background())
	require.NoError(t, tx.SQL("UPDATE notes SET body = 'why?' WHERE id = {}", int64(3)).Exec(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

type pair struct{ first, second any }

func (p pair) Components() []any { return []any{p.first, p.second} }

func mustCompile(t *testing.T, text string, args ...any) *template.Compiled {
	t.Helper()
	compiled, err := template.Compile(template.MustNew(text, args...), nil)
	require.NoError(t, err)
	return compiled
}

func TestDialectSavepointSQL(t *testing.T) {
	pg := PostgreSQLDialect{}
	assert.Equal(t, "SAVEPOINT sp_1", pg.SavepointSQL("sp_1"))
	assert.Equal(t, "RELEASE SAVEPOINT sp_1", pg.ReleaseSavepointSQL("sp_1"))
	assert.Equal(t, "ROLLBACK TO SAVEPOINT sp_1", pg.RollbackToSavepointSQL("sp_1"))
	assert.Equal(t, "SET TRANSACTION READ ONLY", pg.ReadOnlySQL())

	ora := OracleDialect{}
	assert.Empty(t, ora.ReleaseSavepointSQL("sp_1"))
	assert.Equal(t, "ROLLBACK TO SAVEPOINT sp_1", ora.RollbackToSavepointSQL("sp_1"))

	assert.Empty(t, GenericDialect{}.ReadOnlySQL())
}

func TestDialectFor(t *testing.T) {
	assert.IsType(t, PostgreSQLDialect{}, DialectFor(PostgreSQL))
	assert.IsType(t, OracleDialect{}, DialectFor(Oracle))
	assert.IsType(t, GenericDialect{}, DialectFor("sqlite"))
}

func TestOracleNestedCommitIssuesNoRelease(t *testing.T) {
	db, mock, _ := newMockDatabase(t, WithDialect(OracleDialect{}))

	mock.ExpectBegin()
	mock.ExpectExec(savepointPattern).WillReturnResult(okResult())
	mock.ExpectExec(`^INSERT INTO audit \(msg\) VALUES \(:1\)$`).WithArgs("hello").WillReturnResult(okResult())
	mock.ExpectCommit()

	root, ctx := db.Begin(context.Background())
	child, childCtx := db.Begin(ctx)
	require.NoError(t, child.SQL("INSERT INTO audit (msg) VALUES ({})", "hello").Exec(childCtx))
	require.NoError(t, child.Commit(childCtx))
	require.NoError(t, root.Commit(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadOnlyStatementIssuedOnConnect(t *testing.T) {
	db, mock, _ := newMockDatabase(t, WithDialect(PostgreSQLDialect{}))

	mock.ExpectBegin()
	mock.ExpectExec(`^SET TRANSACTION READ ONLY$`).WillReturnResult(okResult())
	mock.ExpectQuery(`^SELECT 1$`).WillReturnRows(intRows(1))
	mock.ExpectCommit()

	tx, ctx := db.BeginReadOnly(context.Background())
	_, err := tx.SQL("SELECT 1").Rows().List(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Close(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadOnlyStatementFailureIsCached(t *testing.T) {
	db, mock, counter := newMockDatabase(t, WithDialect(PostgreSQLDialect{}))

	mock.ExpectBegin()
	mock.ExpectExec(`^SET TRANSACTION READ ONLY$`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	tx, ctx := db.BeginReadOnly(context.Background())
	err := tx.SQL("SELECT 1").Exec(ctx)
	var dbErr *Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "failed to set transaction read-only", dbErr.Message)

	assert.Same(t, err, tx.SQL("SELECT 2").Exec(ctx))
	assert.Equal(t, int32(1), counter.calls.Load())
	require.NoError(t, mock.ExpectationsWereMet())
}
