package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/audit"
	memstore "docverify/internal/audit/store/memory"
	"docverify/internal/authz"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/testutil"
)

func seededRouter(t *testing.T) (chi.Router, id.RequestID, id.UserID) {
	t.Helper()
	store := memstore.NewInMemoryStore()
	ctx := context.Background()
	requestID := id.NewRequestID()
	applicant := id.UserID(uuid.New())
	reviewer := id.UserID(uuid.New())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	entries := []audit.Entry{
		{ID: id.NewAuditEntryID(), RequestID: &requestID, ActorID: applicant, Action: audit.ActionCreated, Timestamp: base},
		{ID: id.NewAuditEntryID(), RequestID: &requestID, ActorID: reviewer, Action: audit.ActionApproved,
			Metadata: audit.Metadata{Reason: "all good"}, Timestamp: base.Add(time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	r := chi.NewRouter()
	New(audit.NewService(store), slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, requestID, reviewer
}

func TestHandleList(t *testing.T) {
	router, requestID, reviewer := seededRouter(t)
	admin := id.UserID(uuid.New())

	get := func(path string, role string) *http.Request {
		return testutil.WithCaller(testutil.NewRequest(t, http.MethodGet, path), admin, role)
	}

	t.Run("administrator sees newest first with reasons", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/api/audit-logs", "admin"))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[[]audit.Entry](t, rr)
		require.Len(t, *body, 2)
		assert.Equal(t, audit.ActionApproved, (*body)[0].Action)
		assert.Equal(t, "all good", (*body)[0].Metadata.Reason)
		assert.Equal(t, audit.ActionCreated, (*body)[1].Action)
	})

	t.Run("filters by actor and action", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/api/audit-logs?actor_id="+reviewer.String()+"&action=APPROVED", "admin"))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[[]audit.Entry](t, rr)
		require.Len(t, *body, 1)
		assert.Equal(t, reviewer, (*body)[0].ActorID)
	})

	t.Run("filters by request and pages", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/api/audit-logs?request_id="+requestID.String()+"&limit=1&offset=1", "admin"))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[[]audit.Entry](t, rr)
		require.Len(t, *body, 1)
		assert.Equal(t, audit.ActionCreated, (*body)[0].Action)
	})

	t.Run("unmatched filter returns an empty array", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/api/audit-logs?request_id="+id.NewRequestID().String(), "admin"))
		testutil.AssertStatusOK(t, rr)
		assert.JSONEq(t, "[]", rr.Body.String())
	})

	t.Run("reviewers are forbidden", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/api/audit-logs", string(authz.RoleReviewer)))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	t.Run("bad query values", func(t *testing.T) {
		for _, q := range []string{"limit=0", "limit=x", "offset=-1", "action=deleted", "actor_id=nope"} {
			rr := testutil.DoRequest(router, get("/api/audit-logs?"+q, "admin"))
			assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		}
	})
}
