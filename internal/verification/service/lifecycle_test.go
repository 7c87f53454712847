package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docverify/internal/audit"
	auditmemory "docverify/internal/audit/store/memory"
	"docverify/internal/authz"
	"docverify/internal/verification/models"
	"docverify/internal/verification/service"
	"docverify/internal/verification/store/request"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/tx"
	"docverify/pkg/requestcontext"
)

// toggleStore fails appends while broken is set.
type toggleStore struct {
	*auditmemory.InMemoryStore
	mu     sync.Mutex
	broken bool
}

func (t *toggleStore) setBroken(b bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broken = b
}

func (t *toggleStore) Append(ctx context.Context, e audit.Entry) error {
	t.mu.Lock()
	broken := t.broken
	t.mu.Unlock()
	if broken {
		return errors.New("audit store unavailable")
	}
	return t.InMemoryStore.Append(ctx, e)
}

// LifecycleSuite runs the engine against the in-memory stores.
type LifecycleSuite struct {
	suite.Suite
	requests *request.InMemory
	entries  *toggleStore
	service  *service.Service
	ctx      context.Context

	applicant7 authz.Principal
	reviewer3  authz.Principal
	reviewer9  authz.Principal
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.requests = request.NewInMemory()
	s.entries = &toggleStore{InMemoryStore: auditmemory.NewInMemoryStore()}
	s.service = service.New(s.requests, audit.NewLedger(s.entries), service.WithTx(tx.NewMemoryRunner()))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))

	s.applicant7 = authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleApplicant}
	s.reviewer3 = authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleReviewer}
	s.reviewer9 = authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleReviewer}
}

func (s *LifecycleSuite) submitPassport() id.RequestID {
	res, err := s.service.Submit(s.ctx, s.applicant7, models.SubmitCommand{
		Country:          "in",
		VerificationType: "identity",
		DocumentType:     "passport",
		File:             &models.FileRef{Name: "passport.jpg", ContentType: "image/jpeg", StoragePath: "f00d.jpg"},
	})
	s.Require().NoError(err)
	s.Equal(models.StatusPending, res.Status)
	return res.ID
}

func (s *LifecycleSuite) entriesFor(requestID id.RequestID) []audit.Entry {
	entries, err := s.entries.List(s.ctx, audit.ListFilter{RequestID: &requestID})
	s.Require().NoError(err)
	return entries
}

func (s *LifecycleSuite) TestHappyPath() {
	requestID := s.submitPassport()

	created := s.entriesFor(requestID)
	s.Require().Len(created, 1)
	s.Equal(audit.ActionCreated, created[0].Action)

	later := requestcontext.WithTime(s.ctx, time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC))
	_, err := s.service.Decide(later, s.reviewer3, requestID, models.DecisionApprove, "docs match")
	s.Require().NoError(err)

	stored, err := s.service.GetOwn(s.ctx, s.applicant7, requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal(models.Country("IN"), stored.Country)
	s.Require().NotNil(stored.ReviewedBy)
	s.Equal(s.reviewer3.ID, *stored.ReviewedBy)
	s.Require().NotNil(stored.DecisionReason)
	s.Equal("docs match", *stored.DecisionReason)

	// Newest first: approved, then created.
	entries := s.entriesFor(requestID)
	s.Require().Len(entries, 2)
	s.Equal(audit.ActionApproved, entries[0].Action)
	s.Equal(audit.ActionCreated, entries[1].Action)
	s.Equal("docs match", entries[0].Metadata.Reason)
}

func (s *LifecycleSuite) TestEmptyReasonKeepsPending() {
	requestID := s.submitPassport()

	_, err := s.service.Decide(s.ctx, s.reviewer3, requestID, models.DecisionReject, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	stored, err := s.service.GetOwn(s.ctx, s.applicant7, requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
	s.Len(s.entriesFor(requestID), 1)
}

func (s *LifecycleSuite) TestDoubleDecision() {
	requestID := s.submitPassport()
	_, err := s.service.Decide(s.ctx, s.reviewer3, requestID, models.DecisionApprove, "docs match")
	s.Require().NoError(err)

	_, err = s.service.Decide(s.ctx, s.reviewer9, requestID, models.DecisionReject, "changed mind")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFoundOrNotPending))

	stored, err := s.service.GetOwn(s.ctx, s.applicant7, requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal(s.reviewer3.ID, *stored.ReviewedBy)
	s.Equal("docs match", *stored.DecisionReason)
	s.Len(s.entriesFor(requestID), 2)
}

func (s *LifecycleSuite) TestConcurrentApproveReject() {
	for i := 0; i < 20; i++ {
		requestID := s.submitPassport()

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			misses    int
		)
		for _, d := range []models.Decision{models.DecisionApprove, models.DecisionReject} {
			wg.Add(1)
			go func(d models.Decision) {
				defer wg.Done()
				_, err := s.service.Decide(s.ctx, s.reviewer3, requestID, d, "race")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case dErrors.HasCode(err, dErrors.CodeNotFoundOrNotPending):
					misses++
				}
			}(d)
		}
		wg.Wait()

		s.Equal(1, successes)
		s.Equal(1, misses)
		stored, err := s.service.GetOwn(s.ctx, s.applicant7, requestID)
		s.Require().NoError(err)
		s.True(stored.Status.IsTerminal())
		s.Len(s.entriesFor(requestID), 2)
	}
}

func (s *LifecycleSuite) TestInvalidSubmissionCreatesNothing() {
	_, err := s.service.Submit(s.ctx, s.applicant7, models.SubmitCommand{
		Country:          "IN",
		VerificationType: "bogus",
		DocumentType:     "passport",
		File:             &models.FileRef{Name: "x.pdf", ContentType: "application/pdf", StoragePath: "x.pdf"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	own, err := s.service.ListOwn(s.ctx, s.applicant7)
	s.Require().NoError(err)
	s.Empty(own)
}

func (s *LifecycleSuite) TestAuditFailureRollsBack() {
	s.Run("submission leaves no request", func() {
		s.entries.setBroken(true)
		defer s.entries.setBroken(false)

		_, err := s.service.Submit(s.ctx, s.applicant7, models.SubmitCommand{
			Country: "UK", VerificationType: "employment", DocumentType: "employment_letter",
			File: &models.FileRef{Name: "l.pdf", ContentType: "application/pdf", StoragePath: "l.pdf"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		own, err := s.service.ListOwn(s.ctx, s.applicant7)
		s.Require().NoError(err)
		s.Empty(own)
	})

	s.Run("decision is reverted", func() {
		requestID := s.submitPassport()
		s.entries.setBroken(true)
		_, err := s.service.Decide(s.ctx, s.reviewer3, requestID, models.DecisionApprove, "ok")
		s.entries.setBroken(false)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		stored, err := s.service.GetOwn(s.ctx, s.applicant7, requestID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, stored.Status)
		s.Nil(stored.ReviewedBy)

		_, err = s.service.Decide(s.ctx, s.reviewer3, requestID, models.DecisionApprove, "ok")
		s.Require().NoError(err)
	})
}

func (s *LifecycleSuite) TestOwnershipAndQueue() {
	first := s.submitPassport()
	second := s.submitPassport()

	other := authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleApplicant}
	_, err := s.service.GetOwn(s.ctx, other, first)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	queue, err := s.service.ListPendingForReview(s.ctx, s.reviewer9)
	s.Require().NoError(err)
	s.Require().Len(queue, 2)
	ids := []id.RequestID{queue[0].ID, queue[1].ID}
	s.ElementsMatch([]id.RequestID{first, second}, ids)
}
