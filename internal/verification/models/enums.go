package models

import (
	"strings"

	dErrors "docverify/pkg/domain-errors"
)

// Status is the lifecycle state of a verification request.
// Only pending → approved and pending → rejected exist.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// StatusInReview is the dashboard label for pending requests. It is never stored.
const StatusInReview = "in_review"

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	return st, nil
}

func (s Status) IsValid() bool  { return validStatuses[s] }
func (s Status) String() string { return string(s) }

// IsTerminal reports whether the request has been adjudicated.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether the lifecycle allows moving from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	return s == StatusPending && target.IsTerminal()
}

// AllStatuses lists the stored statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusRejected}
}

// VerificationType classifies what the applicant is proving.
type VerificationType string

const (
	VerificationTypeIdentity   VerificationType = "identity"
	VerificationTypeAddress    VerificationType = "address"
	VerificationTypeEmployment VerificationType = "employment"
	VerificationTypeBusiness   VerificationType = "business"
)

var verificationTypes = []VerificationType{
	VerificationTypeIdentity,
	VerificationTypeAddress,
	VerificationTypeEmployment,
	VerificationTypeBusiness,
}

func ParseVerificationType(s string) (VerificationType, error) {
	v := VerificationType(strings.TrimSpace(s))
	if v == "" {
		return "", dErrors.New(dErrors.CodeValidation, "verificationType is required")
	}
	if !v.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid verificationType")
	}
	return v, nil
}

func (v VerificationType) IsValid() bool {
	for _, known := range verificationTypes {
		if v == known {
			return true
		}
	}
	return false
}

func (v VerificationType) String() string { return string(v) }

// AcceptsLocation reports whether coordinates may stand in for a document file.
func (v VerificationType) AcceptsLocation() bool {
	return v == VerificationTypeAddress
}

// VerificationTypes returns every supported verification type.
func VerificationTypes() []VerificationType {
	return append([]VerificationType(nil), verificationTypes...)
}

// DocumentType classifies the evidence supplied.
type DocumentType string

const (
	DocumentTypePassport         DocumentType = "passport"
	DocumentTypeDrivingLicense   DocumentType = "driving_license"
	DocumentTypeUtilityBill      DocumentType = "utility_bill"
	DocumentTypeEmploymentLetter DocumentType = "employment_letter"
)

var documentTypes = []DocumentType{
	DocumentTypePassport,
	DocumentTypeDrivingLicense,
	DocumentTypeUtilityBill,
	DocumentTypeEmploymentLetter,
}

func ParseDocumentType(s string) (DocumentType, error) {
	d := DocumentType(strings.TrimSpace(s))
	if d == "" {
		return "", dErrors.New(dErrors.CodeValidation, "documentType is required")
	}
	if !d.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid documentType")
	}
	return d, nil
}

func (d DocumentType) IsValid() bool {
	for _, known := range documentTypes {
		if d == known {
			return true
		}
	}
	return false
}

func (d DocumentType) String() string { return string(d) }

// DocumentTypes returns every supported document type.
func DocumentTypes() []DocumentType {
	return append([]DocumentType(nil), documentTypes...)
}

// ScanStatus tracks the advisory automated scan.
type ScanStatus string

const (
	ScanNotStarted ScanStatus = "not_started"
	ScanRunning    ScanStatus = "running"
	ScanDone       ScanStatus = "done"
	ScanFailed     ScanStatus = "failed"
)

func (s ScanStatus) IsValid() bool {
	switch s {
	case ScanNotStarted, ScanRunning, ScanDone, ScanFailed:
		return true
	}
	return false
}

// Decision is a reviewer's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "decision must be approve or reject")
}

// ResultStatus is the status a request ends in after this decision.
func (d Decision) ResultStatus() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}
