package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/audit"
	id "docverify/pkg/domain"
)

func entryAt(requestID id.RequestID, action audit.Action, ts time.Time) audit.Entry {
	return audit.Entry{
		ID:        id.NewAuditEntryID(),
		RequestID: &requestID,
		ActorID:   id.UserID(uuid.New()),
		Action:    action,
		Timestamp: ts,
	}
}

func TestListOrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rid := id.NewRequestID()

	first := entryAt(rid, audit.ActionCreated, base)
	second := entryAt(rid, audit.ActionApproved, base.Add(time.Minute))
	// Same timestamp as second; appended later so listed first.
	third := entryAt(id.NewRequestID(), audit.ActionCreated, base.Add(time.Minute))
	for _, e := range []audit.Entry{first, second, third} {
		require.NoError(t, store.Append(ctx, e))
	}

	all, err := store.List(ctx, audit.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	assert.Equal(t, first.ID, all[2].ID)

	page, err := store.List(ctx, audit.ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	past, err := store.List(ctx, audit.ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)

	byRequest, err := store.List(ctx, audit.ListFilter{RequestID: &rid})
	require.NoError(t, err)
	assert.Len(t, byRequest, 2)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Append(ctx, entryAt(id.NewRequestID(), audit.ActionCreated, time.Now())))
	store.Clear()

	all, err := store.List(ctx, audit.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}
