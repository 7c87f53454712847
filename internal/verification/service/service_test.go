package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks RequestStore,AuditLedger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"docverify/internal/audit"
	"docverify/internal/authz"
	"docverify/internal/verification/models"
	"docverify/internal/verification/service/mocks"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/platform/tx"
	"docverify/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockStore  *mocks.MockRequestStore
	mockLedger *mocks.MockAuditLedger
	service    *Service
	ctx        context.Context
	now        time.Time
	applicant  authz.Principal
	reviewer   authz.Principal
	admin      authz.Principal
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockRequestStore(s.ctrl)
	s.mockLedger = mocks.NewMockAuditLedger(s.ctrl)
	s.service = New(s.mockStore, s.mockLedger, WithTx(tx.NewMemoryRunner()))
	s.now = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.applicant = authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleApplicant}
	s.reviewer = authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleReviewer}
	s.admin = authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleAdministrator}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) validCommand() models.SubmitCommand {
	return models.SubmitCommand{
		Country:          " in ",
		VerificationType: "identity",
		DocumentType:     "passport",
		File:             &models.FileRef{Name: "passport.pdf", ContentType: "application/pdf", StoragePath: "ab12.pdf"},
	}
}

func (s *ServiceSuite) pendingRequest(owner id.UserID) *models.VerificationRequest {
	req, err := models.NewVerificationRequest(models.NewRequestParams{
		ID:               id.NewRequestID(),
		ApplicantID:      owner,
		Country:          "IN",
		VerificationType: models.VerificationTypeIdentity,
		DocumentType:     models.DocumentTypePassport,
		File:             &models.FileRef{Name: "p.pdf", ContentType: "application/pdf", StoragePath: "p.pdf"},
	}, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	return req
}

func (s *ServiceSuite) TestSubmit() {
	s.Run("stores a pending request and its created entry", func() {
		var stored *models.VerificationRequest
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.VerificationRequest) error {
				stored = req
				return nil
			})
		s.mockLedger.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, rec audit.Record) (audit.Entry, error) {
				s.Equal(audit.ActionCreated, rec.Action)
				s.Equal(s.applicant.ID, rec.ActorID)
				s.Equal("IN", rec.Metadata.Country)
				s.Require().NotNil(rec.Metadata.File)
				s.Equal("passport.pdf", rec.Metadata.File.Name)
				return audit.Entry{}, nil
			})

		res, err := s.service.Submit(s.ctx, s.applicant, s.validCommand())
		s.Require().NoError(err)
		s.Equal(models.StatusPending, res.Status)
		s.Equal(s.now, res.CreatedAt)
		s.Require().NotNil(stored)
		s.Equal(res.ID, stored.ID)
		s.Equal(models.Country("IN"), stored.Country)
		s.Equal(models.ScanNotStarted, stored.Scan.Status)
		s.Nil(stored.ReviewedBy)
		s.Nil(stored.DecisionReason)
	})

	s.Run("address with location needs no file", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockLedger.EXPECT().Record(gomock.Any(), gomock.Any()).Return(audit.Entry{}, nil)

		cmd := models.SubmitCommand{
			Country:          "AU",
			VerificationType: "address",
			DocumentType:     "utility_bill",
			Location:         &models.GeoPoint{Latitude: -33.86, Longitude: 151.2},
		}
		_, err := s.service.Submit(s.ctx, s.applicant, cmd)
		s.Require().NoError(err)
	})

	s.Run("invalid input never reaches the store", func() {
		cases := map[string]func(*models.SubmitCommand){
			"bogus verification type": func(c *models.SubmitCommand) { c.VerificationType = "bogus" },
			"bogus document type":     func(c *models.SubmitCommand) { c.DocumentType = "selfie" },
			"empty country":           func(c *models.SubmitCommand) { c.Country = "   " },
			"unsupported country":     func(c *models.SubmitCommand) { c.Country = "FR" },
			"missing file":            func(c *models.SubmitCommand) { c.File = nil },
			"location on identity":    func(c *models.SubmitCommand) { c.Location = &models.GeoPoint{} },
			"latitude out of range": func(c *models.SubmitCommand) {
				c.VerificationType = "address"
				c.Location = &models.GeoPoint{Latitude: 91}
			},
		}
		for name, mutate := range cases {
			cmd := s.validCommand()
			mutate(&cmd)
			_, err := s.service.Submit(s.ctx, s.applicant, cmd)
			s.Require().Error(err, name)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
	})

	s.Run("only applicants may submit", func() {
		_, err := s.service.Submit(s.ctx, s.reviewer, s.validCommand())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		_, err = s.service.Submit(s.ctx, authz.Principal{}, s.validCommand())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("audit failure fails the submission", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockLedger.EXPECT().Record(gomock.Any(), gomock.Any()).Return(audit.Entry{}, errors.New("ledger down"))

		_, err := s.service.Submit(s.ctx, s.applicant, s.validCommand())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("store failure is internal", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(assert.AnError)

		_, err := s.service.Submit(s.ctx, s.applicant, s.validCommand())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestDecide() {
	s.Run("approves with audit metadata", func() {
		req := s.pendingRequest(s.applicant.ID)
		s.mockStore.EXPECT().ApplyDecision(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d models.DecisionRecord) (*models.VerificationRequest, error) {
				s.Equal(req.ID, d.RequestID)
				s.Equal("docs match", d.Reason)
				s.Equal(s.now, d.DecidedAt)
				out := req.Clone()
				out.ApplyDecision(d)
				return out, nil
			})
		s.mockLedger.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, rec audit.Record) (audit.Entry, error) {
				s.Equal(audit.ActionApproved, rec.Action)
				s.Equal("docs match", rec.Metadata.Reason)
				s.Equal("identity", rec.Metadata.VerificationType)
				return audit.Entry{}, nil
			})

		updated, err := s.service.Decide(s.ctx, s.reviewer, req.ID, models.DecisionApprove, "  docs match ")
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, updated.Status)
		s.Require().NotNil(updated.ReviewedBy)
		s.Equal(s.reviewer.ID, *updated.ReviewedBy)
		s.Nil(updated.DecisionReason)
	})

	s.Run("guard miss collapses to not available", func() {
		s.mockStore.EXPECT().ApplyDecision(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Decide(s.ctx, s.reviewer, id.NewRequestID(), models.DecisionReject, "late")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFoundOrNotPending))
		s.Equal("request not found or not pending", dErrors.MessageOf(err))
	})

	s.Run("empty reason is a validation error", func() {
		_, err := s.service.Decide(s.ctx, s.reviewer, id.NewRequestID(), models.DecisionReject, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown decision is a validation error", func() {
		_, err := s.service.Decide(s.ctx, s.reviewer, id.NewRequestID(), models.Decision("escalate"), "why")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("applicant gets the collapsed signal", func() {
		_, err := s.service.Decide(s.ctx, s.applicant, id.NewRequestID(), models.DecisionApprove, "self")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFoundOrNotPending))
	})

	s.Run("admin follows the policy", func() {
		strict := New(s.mockStore, s.mockLedger, WithPolicy(authz.Policy{AdminsMayReview: false}))
		_, err := strict.Decide(s.ctx, s.admin, id.NewRequestID(), models.DecisionApprove, "ok")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFoundOrNotPending))
	})

	s.Run("audit failure fails the decision", func() {
		req := s.pendingRequest(s.applicant.ID)
		s.mockStore.EXPECT().ApplyDecision(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d models.DecisionRecord) (*models.VerificationRequest, error) {
				out := req.Clone()
				out.ApplyDecision(d)
				return out, nil
			})
		s.mockLedger.EXPECT().Record(gomock.Any(), gomock.Any()).Return(audit.Entry{}, errors.New("ledger down"))

		_, err := s.service.Decide(s.ctx, s.reviewer, req.ID, models.DecisionApprove, "fine")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestReads() {
	s.Run("pending list strips reasons and requires reviewer", func() {
		req := s.pendingRequest(s.applicant.ID)
		s.mockStore.EXPECT().ListPending(gomock.Any()).Return([]*models.VerificationRequest{req}, nil)

		out, err := s.service.ListPendingForReview(s.ctx, s.reviewer)
		s.Require().NoError(err)
		s.Len(out, 1)

		_, err = s.service.ListPendingForReview(s.ctx, s.applicant)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("owner sees the reason, others do not", func() {
		req := s.pendingRequest(s.applicant.ID)
		reason := "blurry"
		reviewer := s.reviewer.ID
		req.Status = models.StatusRejected
		req.ReviewedBy = &reviewer
		req.DecisionReason = &reason
		s.mockStore.EXPECT().FindByID(gomock.Any(), req.ID).Return(req, nil).Times(3)

		own, err := s.service.GetOwn(s.ctx, s.applicant, req.ID)
		s.Require().NoError(err)
		s.Require().NotNil(own.DecisionReason)
		s.Equal("blurry", *own.DecisionReason)

		seen, err := s.service.GetRequest(s.ctx, s.reviewer, req.ID)
		s.Require().NoError(err)
		s.Nil(seen.DecisionReason)

		stranger := authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleApplicant}
		_, err = s.service.GetOwn(s.ctx, stranger, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("stranger cannot read through the generic path", func() {
		req := s.pendingRequest(s.applicant.ID)
		s.mockStore.EXPECT().FindByID(gomock.Any(), req.ID).Return(req, nil)

		stranger := authz.Principal{ID: id.UserID(uuid.New()), Role: authz.RoleApplicant}
		_, err := s.service.GetRequest(s.ctx, stranger, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing request is not found", func() {
		missing := id.NewRequestID()
		s.mockStore.EXPECT().FindByID(gomock.Any(), missing).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetOwn(s.ctx, s.applicant, missing)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("own list is scoped to the caller", func() {
		s.mockStore.EXPECT().ListByApplicant(gomock.Any(), s.applicant.ID).Return(nil, nil)
		out, err := s.service.ListOwn(s.ctx, s.applicant)
		s.Require().NoError(err)
		s.Empty(out)
	})
}

func (s *ServiceSuite) TestDecideSpans() {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	traced := New(s.mockStore, s.mockLedger,
		WithTx(tx.NewMemoryRunner()),
		WithTracer(provider.Tracer("verification-test")),
	)

	s.mockStore.EXPECT().ApplyDecision(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
	_, err := traced.Decide(s.ctx, s.reviewer, id.NewRequestID(), models.DecisionApprove, "late")
	s.Require().Error(err)

	spans := recorder.Ended()
	s.Require().Len(spans, 1)
	s.Equal("verification.decide", spans[0].Name())
	s.Equal(codes.Error, spans[0].Status().Code)
	s.Contains(spans[0].Attributes(), attribute.String("principal.role", "reviewer"))
}
