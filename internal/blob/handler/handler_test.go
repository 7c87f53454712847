package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/authz"
	"docverify/internal/blob"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/testutil"
)

func newRouter(t *testing.T) (chi.Router, string) {
	t.Helper()
	backend, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	store := blob.New(backend, 0)
	desc, err := store.Put(context.Background(), "passport.pdf", bytes.NewReader([]byte("%PDF-1.7\n%body\n")))
	require.NoError(t, err)

	r := chi.NewRouter()
	New(store, authz.DefaultPolicy(), slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, desc.StoragePath
}

func TestHandleFile(t *testing.T) {
	router, key := newRouter(t)
	get := func(path, role string) *http.Request {
		return testutil.WithCaller(testutil.NewRequest(t, http.MethodGet, path), id.UserID(uuid.New()), role)
	}

	t.Run("reviewer previews the stored file", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/files/"+key, "reviewer"))
		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	})

	t.Run("administrator previews the stored file", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/files/"+key, "admin"))
		testutil.AssertStatusOK(t, rr)
	})

	t.Run("applicants cannot address blobs directly", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/files/"+key, "applicant"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	t.Run("anonymous callers are unauthorized", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/files/"+key))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("unknown key", func(t *testing.T) {
		rr := testutil.DoRequest(router, get("/files/does-not-exist.pdf", "reviewer"))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}
