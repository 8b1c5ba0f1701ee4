package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for database metrics instrumentation
	dbMeterName = "go-sqltx/database"

	// Metric names following OpenTelemetry semantic conventions
	metricDBCalls        = "db.client.calls"
	metricDBDuration     = "db.client.operation.duration"
	metricRowsAffected   = "db.rows.affected"
	metricTransactions   = "db.client.transactions"
	metricTxDuration     = "db.client.transaction.duration"
	metricRetries        = "db.client.transaction.retries"
	metricPoolInUse      = "db.client.connection.count"
	metricPoolMax        = "db.client.connection.max"
	metricPoolWaitCount  = "db.client.connection.wait_count"
	attrDBOperation      = "db.operation.name"
	attrDBCollection     = "db.collection.name"
	attrTxOutcome        = "db.transaction.outcome"
	attrConnectionState  = "db.client.connection.state"
	unknownTable         = "unknown"
	connectionStateUsed  = "used"
	connectionStateIdle  = "idle"
	durationMillisFactor = 1e6
)

type instruments struct {
	calls        metric.Int64Counter
	duration     metric.Float64Histogram
	rowsAffected metric.Int64Counter
	transactions metric.Int64Counter
	txDuration   metric.Float64Histogram
	retries      metric.Int64Counter
}

var (
	meterMu sync.Mutex
	// meterProvider is the provider the instruments were created from;
	// instruments are rebuilt when the global provider changes.
	meterProvider metric.MeterProvider
	dbInstruments *instruments
)

// logMetricError logs a metric initialization or registration error to stderr.
// Metrics failures never break database operations.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

func getInstruments() *instruments {
	meterMu.Lock()
	defer meterMu.Unlock()

	provider := otel.GetMeterProvider()
	if dbInstruments != nil && provider == meterProvider {
		return dbInstruments
	}

	meter := provider.Meter(dbMeterName)
	inst := &instruments{}
	var err error

	inst.calls, err = meter.Int64Counter(metricDBCalls,
		metric.WithDescription("Total number of database client calls"))
	logMetricError(metricDBCalls, err)

	inst.duration, err = meter.Float64Histogram(metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"))
	logMetricError(metricDBDuration, err)

	inst.rowsAffected, err = meter.Int64Counter(metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"))
	logMetricError(metricRowsAffected, err)

	inst.transactions, err = meter.Int64Counter(metricTransactions,
		metric.WithDescription("Number of finished root transactions by outcome"))
	logMetricError(metricTransactions, err)

	inst.txDuration, err = meter.Float64Histogram(metricTxDuration,
		metric.WithDescription("Duration of root transactions in milliseconds"),
		metric.WithUnit("ms"))
	logMetricError(metricTxDuration, err)

	inst.retries, err = meter.Int64Counter(metricRetries,
		metric.WithDescription("Number of retried transactional operations"))
	logMetricError(metricRetries, err)

	meterProvider = provider
	dbInstruments = inst
	return inst
}

// recordDBMetrics records call count, duration and rows affected of a statement.
func recordDBMetrics(ctx context.Context, tc *Context, query string, duration time.Duration, rowsAffected int64, err error) {
	inst := getInstruments()

	// sql.ErrNoRows is an empty result, not a failure
	isError := err != nil && !errors.Is(err, sql.ErrNoRows)

	attrs := []attribute.KeyValue{
		attribute.String(attrSystemName, normalizeDBVendor(tc.Vendor)),
		attribute.String(attrDBOperation, extractDBOperation(query)),
		attribute.String(attrDBCollection, extractTableName(query)),
	}

	if inst.calls != nil {
		inst.calls.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Bool("error", isError))...))
	}
	if inst.duration != nil {
		inst.duration.Record(ctx, float64(duration.Nanoseconds())/durationMillisFactor, metric.WithAttributes(attrs...))
	}
	if inst.rowsAffected != nil && rowsAffected > 0 && !isError {
		inst.rowsAffected.Add(ctx, rowsAffected, metric.WithAttributes(attrs...))
	}
}

var (
	// Table name patterns; schema qualified names yield the table part
	selectTableRegex = regexp.MustCompile("(?i)FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	insertTableRegex = regexp.MustCompile("(?i)INSERT\\s+INTO\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	updateTableRegex = regexp.MustCompile("(?i)UPDATE\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	deleteTableRegex = regexp.MustCompile("(?i)DELETE\\s+FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
)

// extractTableName returns the primary table of a DML statement, or
// "unknown". For joins the first table wins.
func extractTableName(query string) string {
	var pattern *regexp.Regexp
	switch extractDBOperation(query) {
	case "select":
		pattern = selectTableRegex
	case "insert":
		pattern = insertTableRegex
	case "update":
		pattern = updateTableRegex
	case "delete":
		pattern = deleteTableRegex
	default:
		return unknownTable
	}

	if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return unknownTable
}

// RegisterConnectionPoolMetrics registers gauges reporting the pool returned
// by stats: connections in use, idle connections, the configured maximum and
// the number of waits for a free connection. The returned function
// unregisters the callback.
func RegisterConnectionPoolMetrics(stats func() sql.DBStats, vendor string) func() {
	meter := otel.GetMeterProvider().Meter(dbMeterName)
	noop := func() {}

	count, err := meter.Int64ObservableGauge(metricPoolInUse,
		metric.WithDescription("Number of pooled connections by state"))
	logMetricError(metricPoolInUse, err)
	if err != nil {
		return noop
	}
	maxOpen, err := meter.Int64ObservableGauge(metricPoolMax,
		metric.WithDescription("Maximum number of open connections allowed"))
	logMetricError(metricPoolMax, err)
	if err != nil {
		return noop
	}
	waits, err := meter.Int64ObservableCounter(metricPoolWaitCount,
		metric.WithDescription("Total number of waits for a free connection"))
	logMetricError(metricPoolWaitCount, err)
	if err != nil {
		return noop
	}

	system := attribute.String(attrSystemName, normalizeDBVendor(vendor))
	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(count, int64(s.InUse), metric.WithAttributes(system, attribute.String(attrConnectionState, connectionStateUsed)))
		o.ObserveInt64(count, int64(s.Idle), metric.WithAttributes(system, attribute.String(attrConnectionState, connectionStateIdle)))
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections), metric.WithAttributes(system))
		o.ObserveInt64(waits, s.WaitCount, metric.WithAttributes(system))
		return nil
	}, count, maxOpen, waits)
	if err != nil {
		logMetricError("pool_metrics_callback", err)
		return noop
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("pool_metrics_unregister", err)
		}
	}
}
