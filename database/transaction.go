package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-sqltx/database/internal/tracking"
)

// Outcome is the final result of a root transaction, reported to its
// completion hooks.
type Outcome int

const (
	Committed Outcome = iota + 1
	RolledBack
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return tracking.OutcomeCommitted
	case RolledBack:
		return tracking.OutcomeRolledBack
	default:
		return "unknown"
	}
}

// CompletionHook runs once after the root transaction finished. ctx is the
// context passed to Commit or Rollback with its cancellation removed; it no
// longer carries an open transaction.
type CompletionHook func(ctx context.Context, outcome Outcome) error

var transactionIDs atomic.Int64

type chainKey struct {
	db *Database
}

// chain is the stack of open transactions sharing one physical connection.
// The bottom entry is the root, the top entry is the current transaction.
type chain struct {
	db    *Database
	stack []*Transaction

	conn    *sql.Conn
	tx      *sql.Tx
	connErr error
}

func chainFrom(ctx context.Context, db *Database) *chain {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(chainKey{db: db}).(*chain)
	return c
}

func (c *chain) current() *Transaction {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

func (c *chain) push(readOnly bool) *Transaction {
	tx := &Transaction{
		id:       transactionIDs.Add(1),
		chain:    c,
		readOnly: readOnly,
		depth:    len(c.stack),
		started:  time.Now(),
	}
	if parent := c.current(); parent != nil {
		tx.parent = parent
		tx.savepoint = fmt.Sprintf("sp_%d", tx.id)
		parent.openChildren++
	}
	c.stack = append(c.stack, tx)

	c.db.log.Debug().
		Str("tx", tx.String()).
		Int("depth", tx.depth).
		Msg("Transaction started")
	return tx
}

// pop removes tx and everything above it.
func (c *chain) pop(tx *Transaction) {
	if tx.depth < len(c.stack) && c.stack[tx.depth] == tx {
		clear(c.stack[tx.depth:])
		c.stack = c.stack[:tx.depth]
	}
}

// Transaction is a logical transaction. A root transaction owns a physical
// connection; nested transactions share it through savepoints.
//
// A transaction and the transactions nested in it form one call chain and
// must not be used from concurrently running goroutines.
type Transaction struct {
	id       int64
	chain    *chain
	parent   *Transaction
	readOnly bool
	depth    int
	started  time.Time

	savepoint       string
	savepointIssued bool
	savepointErr    error

	finished     bool
	openChildren int
	hooks        []CompletionHook
}

// ID returns the process wide unique, increasing transaction id.
func (t *Transaction) ID() int64 { return t.id }

func (t *Transaction) ReadOnly() bool { return t.readOnly }

func (t *Transaction) Finished() bool { return t.finished }

// Parent returns the enclosing transaction, or nil for a root transaction.
func (t *Transaction) Parent() *Transaction { return t.parent }

// Depth is 0 for a root transaction and increases by one per nesting level.
func (t *Transaction) Depth() int { return t.depth }

// String returns "T0001" for a root transaction and "T0002 (T0001)" for a
// transaction nested in it.
func (t *Transaction) String() string {
	if t.parent == nil {
		return fmt.Sprintf("T%04d", t.id)
	}
	return fmt.Sprintf("T%04d (%s)", t.id, t.parent)
}

// AddCompletionHook registers hook to run once when the root transaction
// finishes. Nested transactions forward the hook to their root.
func (t *Transaction) AddCompletionHook(hook CompletionHook) error {
	if t.finished {
		return ErrTransactionFinished
	}
	root := t
	for root.parent != nil {
		root = root.parent
	}
	if root.finished {
		return ErrTransactionFinished
	}
	root.hooks = append(root.hooks, hook)
	return nil
}

func (t *Transaction) checkUsable() error {
	if t.finished {
		return ErrTransactionFinished
	}
	if t.openChildren > 0 {
		return ErrNestedTransactionsActive
	}
	return nil
}

// connection returns the physical transaction, connecting on first use.
func (t *Transaction) connection(ctx context.Context) (*sql.Tx, error) {
	if err := t.checkUsable(); err != nil {
		return nil, err
	}
	return t.connect(ctx)
}

func (t *Transaction) connect(ctx context.Context) (*sql.Tx, error) {
	if t.parent == nil {
		return t.connectRoot(ctx)
	}

	tx, err := t.parent.connect(ctx)
	if err != nil {
		return nil, err
	}
	if t.savepointErr != nil {
		return nil, t.savepointErr
	}
	if !t.savepointIssued {
		query := t.chain.db.dialect.SavepointSQL(t.savepoint)
		if err := t.execInternal(ctx, tx, query); err != nil {
			t.savepointErr = newError(t, "failed to create savepoint", query, err)
			return nil, t.savepointErr
		}
		t.savepointIssued = true
	}
	return tx, nil
}

func (t *Transaction) connectRoot(ctx context.Context) (*sql.Tx, error) {
	c := t.chain
	if c.tx != nil {
		return c.tx, nil
	}
	if c.connErr != nil {
		return nil, c.connErr
	}

	conn, err := c.db.factory(ctx)
	if err != nil {
		c.connErr = newError(t, "failed to obtain connection", "", err)
		return nil, c.connErr
	}

	// The physical transaction outlives the context of the statement that
	// opened it.
	tx, err := conn.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		t.closeConn(ctx, conn)
		c.connErr = newError(t, "failed to begin transaction", "", err)
		return nil, c.connErr
	}

	if query := c.db.dialect.ReadOnlySQL(); t.readOnly && query != "" {
		if err := t.execInternal(ctx, tx, query); err != nil {
			_ = tx.Rollback()
			t.closeConn(ctx, conn)
			c.connErr = newError(t, "failed to set transaction read-only", query, err)
			return nil, c.connErr
		}
	}

	c.conn, c.tx = conn, tx
	return tx, nil
}

// execInternal runs statements issued by the state machine itself.
func (t *Transaction) execInternal(ctx context.Context, tx *sql.Tx, query string) error {
	start := time.Now()
	_, err := tx.ExecContext(ctx, query)
	tracking.TrackDBOperation(ctx, t.chain.db.tracking, t.String(), query, nil, start, 0, err)
	return err
}

func (t *Transaction) closeConn(ctx context.Context, conn *sql.Conn) {
	if err := conn.Close(); err != nil {
		t.chain.db.log.WithContext(ctx).Debug().
			Err(err).
			Str("tx", t.String()).
			Msg("Failed to close connection")
	}
}

// Commit commits the transaction. A nested transaction releases its
// savepoint; the root commits the physical transaction, closes the
// connection and runs the completion hooks.
func (t *Transaction) Commit(ctx context.Context) error {
	return t.finish(ctx, true)
}

// Rollback rolls back the transaction. A nested transaction rolls back to
// its savepoint; the root rolls back the physical transaction, closes the
// connection and runs the completion hooks.
func (t *Transaction) Rollback(ctx context.Context) error {
	return t.finish(ctx, false)
}

// Close finishes the transaction if it is still open: a read-only
// transaction is committed, any other is rolled back. Like Commit and
// Rollback it fails with ErrNestedTransactionsActive while nested
// transactions are open. Close is meant to be deferred right after Begin.
func (t *Transaction) Close(ctx context.Context) error {
	if t.finished {
		return nil
	}
	if t.readOnly {
		return t.Commit(ctx)
	}
	return t.Rollback(ctx)
}

// abort rolls back the transaction and anything still open above it,
// whatever its read-only flag.
func (t *Transaction) abort(ctx context.Context) error {
	if t.finished {
		return nil
	}
	nestedErr := t.closeNested(ctx)
	if err := t.Rollback(ctx); err != nil {
		return err
	}
	return nestedErr
}

// closeNested rolls back the nested transactions left open above t,
// innermost first, and returns the first error.
func (t *Transaction) closeNested(ctx context.Context) error {
	var first error
	for top := t.chain.current(); top != nil && top.depth > t.depth; top = t.chain.current() {
		if err := top.Rollback(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *Transaction) finish(ctx context.Context, commit bool) error {
	if err := t.checkUsable(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	t.finished = true
	t.chain.pop(t)

	if t.parent != nil {
		return t.finishNested(ctx, commit)
	}
	return t.finishRoot(ctx, commit)
}

func (t *Transaction) finishNested(ctx context.Context, commit bool) error {
	defer func() { t.parent.openChildren-- }()

	if !t.savepointIssued {
		return nil
	}

	dialect := t.chain.db.dialect
	message := "failed to release savepoint"
	query := dialect.ReleaseSavepointSQL(t.savepoint)
	if !commit {
		message = "failed to roll back to savepoint"
		query = dialect.RollbackToSavepointSQL(t.savepoint)
	}
	if query == "" {
		return nil
	}
	if err := t.execInternal(ctx, t.chain.tx, query); err != nil {
		return newError(t, message, query, err)
	}
	return nil
}

func (t *Transaction) finishRoot(ctx context.Context, commit bool) error {
	c := t.chain
	connected := c.tx != nil

	var err error
	outcome := RolledBack
	switch {
	case connected && commit:
		if cerr := c.tx.Commit(); cerr != nil {
			err = newError(t, "failed to commit", "", cerr)
		} else {
			outcome = Committed
		}
	case connected:
		if rerr := c.tx.Rollback(); rerr != nil {
			err = newError(t, "failed to roll back", "", rerr)
		}
	case commit:
		outcome = Committed
	}

	if c.conn != nil {
		t.closeConn(ctx, c.conn)
	}
	c.conn, c.tx = nil, nil

	trackedOutcome := tracking.OutcomeRolledBack
	if outcome == Committed {
		trackedOutcome = tracking.OutcomeCommitted
	}
	tracking.TrackTransaction(ctx, c.db.tracking, t.String(), trackedOutcome, t.started, connected, err)

	t.runHooks(ctx, outcome)
	return err
}

func (t *Transaction) runHooks(ctx context.Context, outcome Outcome) {
	hooks := t.hooks
	t.hooks = nil
	for i, hook := range hooks {
		t.runHook(ctx, i, hook, outcome)
	}
}

func (t *Transaction) runHook(ctx context.Context, index int, hook CompletionHook, outcome Outcome) {
	log := t.chain.db.log.WithContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Warn().
				Str("tx", t.String()).
				Int("hook", index).
				Interface("panic", r).
				Msg("Completion hook panicked")
		}
	}()

	if err := hook(ctx, outcome); err != nil {
		log.Warn().
			Err(err).
			Str("tx", t.String()).
			Int("hook", index).
			Msg("Completion hook failed")
	}
}
