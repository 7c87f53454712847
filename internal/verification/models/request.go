package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

// MaxDecisionReasonLength caps stored decision reasons, in characters.
const MaxDecisionReasonLength = 1000

// FileRef describes a stored document. The lifecycle never reads the bytes.
type FileRef struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	StoragePath string `json:"storage_path"`
}

// GeoPoint is an address location supplied instead of a document.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewGeoPoint validates coordinate ranges.
func NewGeoPoint(lat, long float64) (*GeoPoint, error) {
	if lat < -90 || lat > 90 {
		return nil, dErrors.New(dErrors.CodeValidation, "latitude must be between -90 and 90")
	}
	if long < -180 || long > 180 {
		return nil, dErrors.New(dErrors.CodeValidation, "longitude must be between -180 and 180")
	}
	return &GeoPoint{Latitude: lat, Longitude: long}, nil
}

// ScanSummary is the advisory scan state stored with a request.
// It never influences the decision path.
type ScanSummary struct {
	Status     ScanStatus `json:"status"`
	Confidence *int       `json:"confidence,omitempty"`
	Tampered   *bool      `json:"tampered,omitempty"`
}

// VerificationRequest is the aggregate root of the review lifecycle.
//
// Invariants:
//   - Status is pending exactly when ReviewedBy and DecisionReason are nil
//   - A decided request has ReviewedBy, ReviewedAt and a non-empty DecisionReason
//   - Status leaves pending at most once; decision fields never change afterwards
//   - ApplicantID and CreatedAt are immutable after construction
type VerificationRequest struct {
	ID               id.RequestID
	ApplicantID      id.UserID
	Country          Country
	VerificationType VerificationType
	DocumentType     DocumentType
	File             *FileRef
	Location         *GeoPoint
	Status           Status
	Scan             ScanSummary
	ReviewedBy       *id.UserID
	ReviewedAt       *time.Time
	DecisionReason   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewRequestParams groups already-parsed submission fields.
type NewRequestParams struct {
	ID               id.RequestID
	ApplicantID      id.UserID
	Country          Country
	VerificationType VerificationType
	DocumentType     DocumentType
	File             *FileRef
	Location         *GeoPoint
}

// NewVerificationRequest builds a pending request with no decision fields.
func NewVerificationRequest(p NewRequestParams, now time.Time) (*VerificationRequest, error) {
	if p.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request ID cannot be nil")
	}
	if p.ApplicantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "applicant ID cannot be nil")
	}
	if len(p.Country) != 2 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "country must be a two-letter code")
	}
	if !p.VerificationType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid verification type")
	}
	if !p.DocumentType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid document type")
	}
	if p.File == nil && (p.Location == nil || !p.VerificationType.AcceptsLocation()) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a document file is required")
	}
	if p.Location != nil && !p.VerificationType.AcceptsLocation() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "location is only accepted for address verification")
	}
	return &VerificationRequest{
		ID:               p.ID,
		ApplicantID:      p.ApplicantID,
		Country:          p.Country,
		VerificationType: p.VerificationType,
		DocumentType:     p.DocumentType,
		File:             p.File,
		Location:         p.Location,
		Status:           StatusPending,
		Scan:             ScanSummary{Status: ScanNotStarted},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NormalizeReason trims a decision reason, rejects empty input and truncates
// to MaxDecisionReasonLength characters.
func NormalizeReason(raw string) (string, error) {
	reason := strings.TrimSpace(raw)
	if reason == "" {
		return "", dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if utf8.RuneCountInString(reason) > MaxDecisionReasonLength {
		reason = string([]rune(reason)[:MaxDecisionReasonLength])
	}
	return reason, nil
}

// DecisionRecord is a validated decision ready to be applied.
type DecisionRecord struct {
	RequestID  id.RequestID
	Decision   Decision
	ReviewerID id.UserID
	Reason     string
	DecidedAt  time.Time
}

// NewDecisionRecord validates the decision inputs. The reason is normalised.
func NewDecisionRecord(requestID id.RequestID, decision Decision, reviewerID id.UserID, rawReason string, now time.Time) (DecisionRecord, error) {
	if requestID.IsNil() {
		return DecisionRecord{}, dErrors.New(dErrors.CodeInvariantViolation, "request ID cannot be nil")
	}
	if reviewerID.IsNil() {
		return DecisionRecord{}, dErrors.New(dErrors.CodeInvariantViolation, "reviewer ID cannot be nil")
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return DecisionRecord{}, dErrors.New(dErrors.CodeInvariantViolation, "decision must be approve or reject")
	}
	reason, err := NormalizeReason(rawReason)
	if err != nil {
		return DecisionRecord{}, err
	}
	return DecisionRecord{
		RequestID:  requestID,
		Decision:   decision,
		ReviewerID: reviewerID,
		Reason:     reason,
		DecidedAt:  now,
	}, nil
}

// ResultStatus is the terminal status this record produces.
func (d DecisionRecord) ResultStatus() Status { return d.Decision.ResultStatus() }

// IsPending reports whether the request still awaits a decision.
func (r *VerificationRequest) IsPending() bool {
	return r.Status == StatusPending
}

// CanDecide checks whether a decision may be applied.
// Use with ApplyDecision inside a store's guarded update.
func (r *VerificationRequest) CanDecide() error {
	if !r.Status.CanTransitionTo(StatusApproved) {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is not pending")
	}
	return nil
}

// ApplyDecision moves the request to its terminal status and freezes the
// decision fields. Call CanDecide first.
func (r *VerificationRequest) ApplyDecision(d DecisionRecord) {
	reviewer := d.ReviewerID
	at := d.DecidedAt
	reason := d.Reason
	r.Status = d.ResultStatus()
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &at
	r.DecisionReason = &reason
	r.UpdatedAt = d.DecidedAt
}

// Decide validates and applies a decision in one call.
func (r *VerificationRequest) Decide(d DecisionRecord) error {
	if err := r.CanDecide(); err != nil {
		return err
	}
	r.ApplyDecision(d)
	return nil
}

// Clone returns a deep copy so callers can never mutate stored state.
func (r *VerificationRequest) Clone() *VerificationRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.File != nil {
		f := *r.File
		c.File = &f
	}
	if r.Location != nil {
		l := *r.Location
		c.Location = &l
	}
	if r.Scan.Confidence != nil {
		v := *r.Scan.Confidence
		c.Scan.Confidence = &v
	}
	if r.Scan.Tampered != nil {
		v := *r.Scan.Tampered
		c.Scan.Tampered = &v
	}
	if r.ReviewedBy != nil {
		v := *r.ReviewedBy
		c.ReviewedBy = &v
	}
	if r.ReviewedAt != nil {
		v := *r.ReviewedAt
		c.ReviewedAt = &v
	}
	if r.DecisionReason != nil {
		v := *r.DecisionReason
		c.DecisionReason = &v
	}
	return &c
}

// WithoutDecisionReason returns a copy safe to show to non-owners.
func (r *VerificationRequest) WithoutDecisionReason() *VerificationRequest {
	c := r.Clone()
	if c != nil {
		c.DecisionReason = nil
	}
	return c
}
