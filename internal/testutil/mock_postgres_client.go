package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type mockTxKey struct{}

// mockTx is the journal of one top level transaction. Stores append undo steps to it and
// register callbacks, such as row lock releases, that run when it ends.
type mockTx struct {
	id string

	mu    sync.Mutex
	undo  []func()
	onEnd []func()
}

func (tx *mockTx) recordUndo(fn func()) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.undo = append(tx.undo, fn)
}

func (tx *mockTx) mark() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.undo)
}

// rollbackTo undoes every write recorded after mark, newest first
func (tx *mockTx) rollbackTo(mark int) {
	tx.mu.Lock()
	steps := tx.undo[mark:]
	tx.undo = tx.undo[:mark]
	tx.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}

func (tx *mockTx) end() {
	tx.mu.Lock()
	callbacks := tx.onEnd
	tx.onEnd = nil
	tx.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func txFromContext(ctx context.Context) *mockTx {
	tx, _ := ctx.Value(mockTxKey{}).(*mockTx)
	return tx
}

// recordUndo journals fn in the transaction running in ctx. Writes made outside a
// transaction are autocommitted and never undone.
func recordUndo(ctx context.Context, fn func()) {
	if tx := txFromContext(ctx); tx != nil {
		tx.recordUndo(fn)
	}
}

// MockPostgresClient runs WithTx against the in-memory stores. Rollback is real: every
// store write made through a transactional ctx is journaled and undone when the
// transaction fails. Nested calls behave like savepoints.
type MockPostgresClient struct {
	logger *logger.Logger

	commits   atomic.Int64
	rollbacks atomic.Int64
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes fn within a transaction, or within a savepoint when ctx already carries one.
// An error, a panic or a cancelled ctx rolls back what fn wrote.
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) (err error) {
	if tx := txFromContext(ctx); tx != nil {
		mark := tx.mark()
		defer func() {
			if r := recover(); r != nil {
				tx.rollbackTo(mark)
				panic(r)
			}
		}()

		if err := fn(ctx); err != nil {
			tx.rollbackTo(mark)
			return err
		}
		return nil
	}

	if err := ctx.Err(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}

	tx := &mockTx{id: types.GenerateUUID()}
	txCtx := context.WithValue(ctx, mockTxKey{}, tx)

	defer func() {
		if r := recover(); r != nil {
			tx.rollbackTo(0)
			tx.end()
			c.rollbacks.Add(1)
			panic(r)
		}
	}()

	err = fn(txCtx)
	if err == nil && ctx.Err() != nil {
		err = ierr.WithError(ctx.Err()).
			WithHint("Transaction was cancelled before commit").
			Mark(ierr.ErrDatabase)
	}

	if err != nil {
		c.logger.Debugw("rolling back mock transaction", "tx_id", tx.id, "error", err)
		tx.rollbackTo(0)
		tx.end()
		c.rollbacks.Add(1)
		return err
	}

	tx.end()
	c.commits.Add(1)
	return nil
}

// Commits returns how many top level transactions committed
func (c *MockPostgresClient) Commits() int64 {
	return c.commits.Load()
}

// Rollbacks returns how many top level transactions rolled back
func (c *MockPostgresClient) Rollbacks() int64 {
	return c.rollbacks.Load()
}
