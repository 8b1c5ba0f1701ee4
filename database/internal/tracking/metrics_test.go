package tracking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordDBMetrics(t *testing.T) {
	_, reader := installTelemetry(t)
	tc, _ := newTestContext(DefaultSettings())
	ctx := context.Background()

	TrackDBOperation(ctx, tc, "T0001", "INSERT INTO orders VALUES ($1)", nil, time.Now(), 3, nil)
	TrackDBOperation(ctx, tc, "T0001", "SELECT * FROM orders", nil, time.Now(), 0, sql.ErrNoRows)
	TrackDBOperation(ctx, tc, "T0001", "UPDATE orders SET a = 1", nil, time.Now(), 5, errors.New("boom"))

	metrics := collect(t, reader)

	require.Contains(t, metrics, metricDBCalls)
	assert.Equal(t, int64(3), sumInt64(t, metrics[metricDBCalls]))

	calls := metrics[metricDBCalls].Data.(metricdata.Sum[int64])
	var failed int64
	for _, dp := range calls.DataPoints {
		if v, ok := dp.Attributes.Value("error"); ok && v.AsBool() {
			failed += dp.Value
		}
	}
	assert.Equal(t, int64(1), failed)

	require.Contains(t, metrics, metricRowsAffected)
	assert.Equal(t, int64(3), sumInt64(t, metrics[metricRowsAffected]))

	require.Contains(t, metrics, metricDBDuration)
	hist, ok := metrics[metricDBDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestInstrumentsFollowGlobalProvider(t *testing.T) {
	_, first := installTelemetry(t)
	tc, _ := newTestContext(DefaultSettings())
	TrackDBOperation(context.Background(), tc, "T0001", "SELECT 1", nil, time.Now(), 0, nil)
	assert.Equal(t, int64(1), sumInt64(t, collect(t, first)[metricDBCalls]))

	_, second := installTelemetry(t)
	TrackDBOperation(context.Background(), tc, "T0001", "SELECT 1", nil, time.Now(), 0, nil)
	assert.Equal(t, int64(1), sumInt64(t, collect(t, second)[metricDBCalls]))
}

func TestExtractTableName(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM orders WHERE id = 1":     "orders",
		"select a from app.Orders o join b":     "orders",
		`INSERT INTO "public"."line_items" (a)`: "line_items",
		"UPDATE accounts SET balance = 0":       "accounts",
		"DELETE FROM sessions":                  "sessions",
		"SAVEPOINT sp_1":                        unknownTable,
		"SELECT 1":                              unknownTable,
		"WITH x AS (SELECT 1) SELECT * FROM x":  unknownTable,
	}

	for query, want := range tests {
		assert.Equal(t, want, extractTableName(query), query)
	}
}

func TestRegisterConnectionPoolMetrics(t *testing.T) {
	_, reader := installTelemetry(t)

	stats := sql.DBStats{MaxOpenConnections: 10, InUse: 3, Idle: 2, WaitCount: 7}
	unregister := RegisterConnectionPoolMetrics(func() sql.DBStats { return stats }, "pgx")

	metrics := collect(t, reader)

	require.Contains(t, metrics, metricPoolInUse)
	gauge, ok := metrics[metricPoolInUse].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	byState := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		state, _ := dp.Attributes.Value(attribute.Key(attrConnectionState))
		system, _ := dp.Attributes.Value(attribute.Key(attrSystemName))
		assert.Equal(t, "postgresql", system.AsString())
		byState[state.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{connectionStateUsed: 3, connectionStateIdle: 2}, byState)

	maxGauge, ok := metrics[metricPoolMax].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, maxGauge.DataPoints, 1)
	assert.Equal(t, int64(10), maxGauge.DataPoints[0].Value)

	assert.Equal(t, int64(7), sumInt64(t, metrics[metricPoolWaitCount]))

	unregister()
	assert.NotContains(t, collect(t, reader), metricPoolInUse)
}
