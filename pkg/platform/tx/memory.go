package tx

import (
	"context"
	"sync"
	"time"

	dErrors "docverify/pkg/domain-errors"
)

// DefaultTimeout bounds a unit of work when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// Runner provides a transactional boundary. Implementations wrap a database
// transaction or, in memory, a coarse lock with an undo journal.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type journalKey struct{}

type journal struct {
	undo []func()
}

// OnRollback registers fn to run if the enclosing in-memory unit fails.
// Outside a MemoryRunner unit it is a no-op.
func OnRollback(ctx context.Context, fn func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, fn)
	}
}

// MemoryRunner serialises in-memory units of work and reverts their writes
// when the callback fails. Stores participate through OnRollback.
type MemoryRunner struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{timeout: DefaultTimeout}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}
