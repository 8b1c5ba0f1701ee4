package tracking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Transaction outcomes reported by TrackTransaction.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

// TrackTransaction records a span, metrics and a debug log event for a
// finished root transaction. connected is false when the transaction never
// acquired a connection, in which case only the log event is emitted.
func TrackTransaction(ctx context.Context, tc *Context, tx, outcome string, start time.Time, connected bool, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}

	elapsed := time.Since(start)
	log := tc.Logger.WithContext(ctx).WithFields(map[string]any{
		"vendor":      tc.Vendor,
		"tx":          tx,
		"outcome":     outcome,
		"duration_ms": elapsed.Milliseconds(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Transaction finished with error")
	} else {
		log.Debug().Msg("Transaction finished")
	}

	if !connected {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrSystemName, normalizeDBVendor(tc.Vendor)),
		attribute.String(attrTxOutcome, outcome),
	}

	_, span := otel.Tracer(dbTracerName).Start(ctx, "db.transaction",
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String(attrTransaction, tx))...),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	inst := getInstruments()
	if inst.transactions != nil {
		inst.transactions.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if inst.txDuration != nil {
		inst.txDuration.Record(ctx, float64(elapsed.Nanoseconds())/durationMillisFactor, metric.WithAttributes(attrs...))
	}
}

// TrackRetry logs and counts a retried transactional operation.
func TrackRetry(ctx context.Context, tc *Context, failCount int, cause error) {
	if tc == nil || tc.Logger == nil {
		return
	}

	tc.Logger.WithContext(ctx).Warn().
		Err(cause).
		Str("vendor", tc.Vendor).
		Int("fail_count", failCount).
		Msg("Retrying transactional operation")

	if inst := getInstruments(); inst.retries != nil {
		inst.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrSystemName, normalizeDBVendor(tc.Vendor))))
	}
}
