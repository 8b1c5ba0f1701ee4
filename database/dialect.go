package database

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gaborage/go-sqltx/database/template"
	"github.com/gaborage/go-sqltx/database/types"
)

// Dialect supplies the vendor specific SQL the transaction state machine
// issues on its own, and rewrites the "?" placeholders of compiled
// statements into the driver's format.
type Dialect interface {
	// Name is the vendor identifier used for logging and telemetry.
	Name() string
	// Rebind rewrites the placeholders emitted by the compiler into the
	// driver's format. Literal SQL text is left untouched.
	Rebind(c *template.Compiled) (string, error)
	// ReadOnlySQL marks the current physical transaction read-only.
	// Empty means the vendor has no such statement.
	ReadOnlySQL() string
	SavepointSQL(name string) string
	// ReleaseSavepointSQL returns "" when savepoints cannot be released
	// explicitly; they then live until the enclosing transaction ends.
	ReleaseSavepointSQL(name string) string
	RollbackToSavepointSQL(name string) string
}

const readOnlySQL = "SET TRANSACTION READ ONLY"

// rebind asks format for the tokens of a run of bare placeholders and
// substitutes them at the positions the compiler recorded, so format never
// sees caller text.
func rebind(c *template.Compiled, format sq.PlaceholderFormat) (string, error) {
	n := c.Placeholders()
	if n == 0 {
		return c.SQL(), nil
	}
	run, err := format.ReplacePlaceholders(strings.Repeat("?,", n))
	if err != nil {
		return "", err
	}
	return c.Replace(strings.Split(run, ",")[:n])
}

// PostgreSQLDialect targets PostgreSQL through pgx ($1 placeholders).
type PostgreSQLDialect struct{}

func (PostgreSQLDialect) Name() string { return types.PostgreSQL }

func (PostgreSQLDialect) Rebind(c *template.Compiled) (string, error) {
	return rebind(c, sq.Dollar)
}

func (PostgreSQLDialect) ReadOnlySQL() string { return readOnlySQL }

func (PostgreSQLDialect) SavepointSQL(name string) string { return "SAVEPOINT " + name }

func (PostgreSQLDialect) ReleaseSavepointSQL(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (PostgreSQLDialect) RollbackToSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

// OracleDialect targets Oracle through go-ora (:1 placeholders). Oracle has
// no RELEASE SAVEPOINT.
type OracleDialect struct{}

func (OracleDialect) Name() string { return types.Oracle }

func (OracleDialect) Rebind(c *template.Compiled) (string, error) {
	return rebind(c, sq.Colon)
}

func (OracleDialect) ReadOnlySQL() string { return readOnlySQL }

func (OracleDialect) SavepointSQL(name string) string { return "SAVEPOINT " + name }

func (OracleDialect) ReleaseSavepointSQL(string) string { return "" }

func (OracleDialect) RollbackToSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

// GenericDialect keeps "?" placeholders and uses standard savepoint SQL.
// It issues no read-only statement.
type GenericDialect struct{}

func (GenericDialect) Name() string { return "generic" }

func (GenericDialect) Rebind(c *template.Compiled) (string, error) {
	return rebind(c, sq.Question)
}

func (GenericDialect) ReadOnlySQL() string { return "" }

func (GenericDialect) SavepointSQL(name string) string { return "SAVEPOINT " + name }

func (GenericDialect) ReleaseSavepointSQL(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (GenericDialect) RollbackToSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

// DialectFor returns the built-in dialect of vendor, falling back to
// GenericDialect.
func DialectFor(vendor string) Dialect {
	switch vendor {
	case types.PostgreSQL:
		return PostgreSQLDialect{}
	case types.Oracle:
		return OracleDialect{}
	default:
		return GenericDialect{}
	}
}
