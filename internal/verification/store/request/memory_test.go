package request

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/platform/tx"
)

type RequestStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	base  time.Time
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreSuite))
}

func (s *RequestStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.base = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
}

func (s *RequestStoreSuite) newRequest(applicant id.UserID, country models.Country, createdAt time.Time) *models.VerificationRequest {
	req, err := models.NewVerificationRequest(models.NewRequestParams{
		ID:               id.NewRequestID(),
		ApplicantID:      applicant,
		Country:          country,
		VerificationType: models.VerificationTypeIdentity,
		DocumentType:     models.DocumentTypePassport,
		File:             &models.FileRef{Name: "p.pdf", ContentType: "application/pdf", StoragePath: "p.pdf"},
	}, createdAt)
	s.Require().NoError(err)
	return req
}

func (s *RequestStoreSuite) decision(requestID id.RequestID, d models.Decision) models.DecisionRecord {
	rec, err := models.NewDecisionRecord(requestID, d, id.UserID(uuid.New()), "checked", s.base.Add(time.Hour))
	s.Require().NoError(err)
	return rec
}

func (s *RequestStoreSuite) TestCreateAndFind() {
	s.Run("round trips a request", func() {
		req := s.newRequest(id.UserID(uuid.New()), "IN", s.base)
		s.Require().NoError(s.store.Create(s.ctx, req))

		found, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(req.ID, found.ID)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("duplicate id conflicts", func() {
		req := s.newRequest(id.UserID(uuid.New()), "IN", s.base)
		s.Require().NoError(s.store.Create(s.ctx, req))
		s.ErrorIs(s.store.Create(s.ctx, req), sentinel.ErrConflict)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.NewRequestID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned values are copies", func() {
		req := s.newRequest(id.UserID(uuid.New()), "AU", s.base)
		s.Require().NoError(s.store.Create(s.ctx, req))

		found, _ := s.store.FindByID(s.ctx, req.ID)
		found.Status = models.StatusApproved

		again, _ := s.store.FindByID(s.ctx, req.ID)
		s.Equal(models.StatusPending, again.Status)
	})
}

func (s *RequestStoreSuite) TestApplyDecision() {
	s.Run("first decision wins, second sees not found", func() {
		req := s.newRequest(id.UserID(uuid.New()), "UK", s.base)
		s.Require().NoError(s.store.Create(s.ctx, req))

		decided, err := s.store.ApplyDecision(s.ctx, s.decision(req.ID, models.DecisionReject))
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, decided.Status)

		_, err = s.store.ApplyDecision(s.ctx, s.decision(req.ID, models.DecisionApprove))
		s.ErrorIs(err, sentinel.ErrNotFound)

		found, _ := s.store.FindByID(s.ctx, req.ID)
		s.Equal(models.StatusRejected, found.Status)
	})

	s.Run("unknown id is indistinguishable from decided", func() {
		_, err := s.store.ApplyDecision(s.ctx, s.decision(id.NewRequestID(), models.DecisionApprove))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("concurrent deciders produce exactly one winner", func() {
		req := s.newRequest(id.UserID(uuid.New()), "IN", s.base)
		s.Require().NoError(s.store.Create(s.ctx, req))

		const goroutines = 40
		var wg sync.WaitGroup
		var wins, misses atomic.Int32
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				d := models.DecisionApprove
				if i%2 == 0 {
					d = models.DecisionReject
				}
				_, err := s.store.ApplyDecision(s.ctx, s.decision(req.ID, d))
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, sentinel.ErrNotFound):
					misses.Add(1)
				}
			}(i)
		}
		wg.Wait()

		s.Equal(int32(1), wins.Load())
		s.Equal(int32(goroutines-1), misses.Load())
	})
}

func (s *RequestStoreSuite) TestRollbackRestoresState() {
	runner := tx.NewMemoryRunner()
	req := s.newRequest(id.UserID(uuid.New()), "IN", s.base)
	s.Require().NoError(s.store.Create(s.ctx, req))

	s.Run("failed unit reverts a decision", func() {
		err := runner.RunInTx(s.ctx, func(txCtx context.Context) error {
			if _, err := s.store.ApplyDecision(txCtx, s.decision(req.ID, models.DecisionApprove)); err != nil {
				return err
			}
			return errors.New("audit unavailable")
		})
		s.Require().Error(err)

		found, _ := s.store.FindByID(s.ctx, req.ID)
		s.Equal(models.StatusPending, found.Status)
		s.Nil(found.DecisionReason)
	})

	s.Run("failed unit reverts a create", func() {
		fresh := s.newRequest(id.UserID(uuid.New()), "AU", s.base)
		err := runner.RunInTx(s.ctx, func(txCtx context.Context) error {
			if err := s.store.Create(txCtx, fresh); err != nil {
				return err
			}
			return errors.New("audit unavailable")
		})
		s.Require().Error(err)

		_, err = s.store.FindByID(s.ctx, fresh.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RequestStoreSuite) TestListingsAndCounts() {
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())

	first := s.newRequest(alice, "IN", s.base)
	second := s.newRequest(bob, "AU", s.base.Add(time.Minute))
	third := s.newRequest(alice, "IN", s.base.Add(2*time.Minute))
	for _, r := range []*models.VerificationRequest{third, first, second} {
		s.Require().NoError(s.store.Create(s.ctx, r))
	}
	_, err := s.store.ApplyDecision(s.ctx, s.decision(second.ID, models.DecisionApprove))
	s.Require().NoError(err)

	s.Run("pending queue is oldest first", func() {
		pending, err := s.store.ListPending(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(pending, 2)
		s.Equal(first.ID, pending[0].ID)
		s.Equal(third.ID, pending[1].ID)
	})

	s.Run("applicant list is newest first", func() {
		own, err := s.store.ListByApplicant(s.ctx, alice)
		s.Require().NoError(err)
		s.Require().Len(own, 2)
		s.Equal(third.ID, own[0].ID)
	})

	s.Run("status counts", func() {
		all, err := s.store.CountByStatus(s.ctx)
		s.Require().NoError(err)
		s.Equal(models.StatusCounts{Pending: 2, Approved: 1}, all)

		mine, err := s.store.CountByStatusForApplicant(s.ctx, bob)
		s.Require().NoError(err)
		s.Equal(models.StatusCounts{Approved: 1}, mine)
	})

	s.Run("country counts", func() {
		byCountry, err := s.store.CountByCountry(s.ctx)
		s.Require().NoError(err)
		s.Equal([]models.CountryCount{{Country: "IN", Count: 2}, {Country: "AU", Count: 1}}, byCountry)
	})
}

func (s *RequestStoreSuite) TestUpdateScan() {
	s.Run("records the summary and refreshes updatedAt", func() {
		req := s.newRequest(id.UserID(uuid.New()), "IN", s.base)
		s.Require().NoError(s.store.Create(s.ctx, req))

		confidence := 91
		scannedAt := s.base.Add(30 * time.Minute)
		s.Require().NoError(s.store.UpdateScan(s.ctx, req.ID, models.ScanSummary{
			Status:     models.ScanDone,
			Confidence: &confidence,
		}, scannedAt))

		found, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.ScanDone, found.Scan.Status)
		s.True(found.UpdatedAt.After(req.UpdatedAt))
		s.True(found.UpdatedAt.Equal(scannedAt))
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("unknown id is not found", func() {
		err := s.store.UpdateScan(s.ctx, id.NewRequestID(), models.ScanSummary{Status: models.ScanFailed}, s.base)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
