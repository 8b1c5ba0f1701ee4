package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/gaborage/go-sqltx/database"
)

// OutcomeRecorder records the outcomes reported to a completion hook.
type OutcomeRecorder struct {
	mu       sync.Mutex
	outcomes []database.Outcome
}

// Hook is a database.CompletionHook appending the outcome.
func (r *OutcomeRecorder) Hook(_ context.Context, outcome database.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

// Outcomes returns a copy of the recorded outcomes.
func (r *OutcomeRecorder) Outcomes() []database.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]database.Outcome(nil), r.outcomes...)
}

// Record registers a recorder as completion hook of tx.
func Record(t testing.TB, tx *database.Transaction) *OutcomeRecorder {
	t.Helper()
	r := &OutcomeRecorder{}
	if err := tx.AddCompletionHook(r.Hook); err != nil {
		t.Fatalf("failed to register completion hook on %s: %v", tx, err)
	}
	return r
}

// AssertCommitted asserts that the recorded transaction finished exactly
// once and committed.
func AssertCommitted(t testing.TB, r *OutcomeRecorder) {
	t.Helper()
	assertOutcome(t, r, database.Committed)
}

// AssertRolledBack asserts that the recorded transaction finished exactly
// once and rolled back.
func AssertRolledBack(t testing.TB, r *OutcomeRecorder) {
	t.Helper()
	assertOutcome(t, r, database.RolledBack)
}

// AssertNotFinished asserts that the recorded transaction is still open.
func AssertNotFinished(t testing.TB, r *OutcomeRecorder) {
	t.Helper()
	if got := r.Outcomes(); len(got) != 0 {
		t.Errorf("expected transaction to be open, got outcomes %v", got)
	}
}

// AssertConnections asserts how many physical connections db requested.
func AssertConnections(t testing.TB, db *TestDB, expected int) {
	t.Helper()
	if got := db.Connections(); got != expected {
		t.Errorf("expected %d physical connections, got %d", expected, got)
	}
}

func assertOutcome(t testing.TB, r *OutcomeRecorder, want database.Outcome) {
	t.Helper()
	got := r.Outcomes()
	if len(got) != 1 || got[0] != want {
		t.Errorf("expected a single %s outcome, got %v", want, got)
	}
}
