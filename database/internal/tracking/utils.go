package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-sqltx/logger"
)

const (
	// Default operation type for unidentified statements
	defaultOperation = "query"

	// Database vendor normalization constants
	dbVendorPostgreSQL = "postgresql"
	dbVendorOracle     = "oracle"

	// OpenTelemetry instrumentation constants
	dbTracerName      = "go-sqltx/database"
	maxDBQueryAttrLen = 2000 // Maximum length for db.query.text attribute

	attrSystemName  = "db.system.name"
	attrTransaction = "db.transaction.name"
)

// TrackDBOperation records metrics, a span and a log event for a completed
// statement executed by transaction tx.
//
// It is a no-op if tc or its Logger is nil. The query is clamped to the
// configured maximum length and parameters are logged only when enabled.
// Errors are logged at error level except sql.ErrNoRows, which is logged at
// debug. Successful statements slower than the threshold are logged at warn.
//
// rowsAffected is the number of rows written; pass 0 for reads.
func TrackDBOperation(ctx context.Context, tc *Context, tx, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}

	elapsed := time.Since(start)

	logger.IncrementDBCounter(ctx)
	logger.AddDBElapsed(ctx, elapsed.Nanoseconds())

	createDBSpan(ctx, tc, tx, query, start, err)
	recordDBMetrics(ctx, tc, query, elapsed, rowsAffected, err)

	fields := map[string]any{
		"vendor":      tc.Vendor,
		"tx":          tx,
		"duration_ms": elapsed.Milliseconds(),
		"query":       TruncateString(query, tc.Settings.MaxQueryLength()),
	}
	if rowsAffected > 0 {
		fields["rows_affected"] = rowsAffected
	}
	if tc.Settings.LogQueryParameters() && len(args) > 0 {
		fields["args"] = SanitizeArgs(args, tc.Settings.MaxQueryLength())
	}
	log := tc.Logger.WithContext(ctx).WithFields(fields)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		log.Debug().Msg("Database operation returned no rows")
	case err != nil:
		log.Error().Err(err).Msg("Database operation error")
	case tc.Settings.SlowQueryEnabled() && elapsed > tc.Settings.SlowQueryThreshold():
		log.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		log.Debug().Msg("Database operation executed")
	}
}

// TruncateString truncates value to at most maxLen runes, adding "..." when
// space allows. maxLen <= 0 leaves value unchanged.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a copy of args suitable for logging. Strings are
// truncated to maxLen runes, byte slices are replaced by "<bytes len=N>" and
// other values are formatted with %v and truncated.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
			sanitized[i] = nil
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// createDBSpan creates a client span for a statement, backdated to start.
func createDBSpan(ctx context.Context, tc *Context, tx, query string, start time.Time, err error) {
	operation := extractDBOperation(query)

	_, span := otel.Tracer(dbTracerName).Start(ctx, "db."+operation,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String(attrSystemName, normalizeDBVendor(tc.Vendor)),
		attribute.String(attrTransaction, tx),
		semconv.DBQueryText(TruncateString(query, maxDBQueryAttrLen)),
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}
	if table := extractTableName(query); table != unknownTable {
		attrs = append(attrs, semconv.DBCollectionName(table))
	}
	span.SetAttributes(attrs...)

	// sql.ErrNoRows is an empty result, not a failure
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// extractDBOperation returns the lowercase operation of a statement
// (select, insert, savepoint, release, ...).
func extractDBOperation(query string) string {
	parts := strings.Fields(strings.ToLower(query))
	if len(parts) == 0 {
		return defaultOperation
	}

	switch parts[0] {
	case "select", "insert", "update", "delete", "merge", "create", "drop", "alter", "truncate",
		"savepoint", "release", "commit", "begin", "with":
		return parts[0]
	case "rollback":
		if len(parts) > 1 && parts[1] == "to" {
			return "rollback_to"
		}
		return "rollback"
	case "set":
		if len(parts) > 1 && parts[1] == "transaction" {
			return "set_transaction"
		}
	}
	return defaultOperation
}

// normalizeDBVendor normalizes the database vendor name to match OTel semantic conventions.
func normalizeDBVendor(vendor string) string {
	vendor = strings.ToLower(vendor)
	switch vendor {
	case "postgres", "pgx", dbVendorPostgreSQL:
		return dbVendorPostgreSQL
	case "oracle.db", dbVendorOracle:
		return dbVendorOracle
	default:
		return vendor
	}
}
