package tx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "docverify/pkg/domain-errors"
)

func TestMemoryRunner(t *testing.T) {
	t.Run("undo journal runs in reverse on failure", func(t *testing.T) {
		runner := NewMemoryRunner()
		var order []string

		err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
			OnRollback(ctx, func() { order = append(order, "first") })
			OnRollback(ctx, func() { order = append(order, "second") })
			return errors.New("audit append failed")
		})

		require.Error(t, err)
		assert.Equal(t, []string{"second", "first"}, order)
	})

	t.Run("success discards the journal", func(t *testing.T) {
		runner := NewMemoryRunner()
		undone := false

		err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
			OnRollback(ctx, func() { undone = true })
			return nil
		})

		require.NoError(t, err)
		assert.False(t, undone)
	})

	t.Run("cancelled context is a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewMemoryRunner().RunInTx(ctx, func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	t.Run("default deadline is applied", func(t *testing.T) {
		_ = NewMemoryRunner().RunInTx(context.Background(), func(ctx context.Context) error {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(DefaultTimeout), deadline, time.Second)
			return nil
		})
	})

	t.Run("OnRollback outside a unit is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() { OnRollback(context.Background(), func() {}) })
	})
}
