package handler

import (
	"strings"
	"time"

	"docverify/internal/verification/models"
)

const submittedMessage = "Verification request submitted"

// SubmitResponse is returned by POST /api/verify.
type SubmitResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

type FileResponse struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	FileURL     string `json:"file_url"`
	FileURLAbs  string `json:"file_url_abs"`
}

type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ScanResponse struct {
	Status     string `json:"status"`
	Confidence *int   `json:"confidence,omitempty"`
	IsTampered *bool  `json:"isTampered,omitempty"`
}

// OwnRequestResponse is the applicant's view of their own request.
type OwnRequestResponse struct {
	ID               string            `json:"id"`
	Country          string            `json:"country"`
	VerificationType string            `json:"verification_type"`
	DocumentType     string            `json:"document_type"`
	File             *FileResponse     `json:"file,omitempty"`
	Location         *LocationResponse `json:"location,omitempty"`
	Status           string            `json:"status"`
	Scan             ScanResponse      `json:"scan"`
	ReviewedAt       *time.Time        `json:"reviewed_at"`
	DecisionReason   *string           `json:"decision_reason"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ReviewQueueItem is what reviewers see. It has no decision reason field.
type ReviewQueueItem struct {
	ID               string            `json:"id"`
	ApplicantID      string            `json:"applicant_id"`
	Country          string            `json:"country"`
	VerificationType string            `json:"verification_type"`
	DocumentType     string            `json:"document_type"`
	File             *FileResponse     `json:"file,omitempty"`
	Location         *LocationResponse `json:"location,omitempty"`
	Status           string            `json:"status"`
	Scan             ScanResponse      `json:"scan"`
	ReviewedBy       *string           `json:"reviewed_by"`
	ReviewedAt       *time.Time        `json:"reviewed_at"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// DecisionResponse is the minimal result of approve or reject.
type DecisionResponse struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	ReviewedBy *string    `json:"reviewed_by"`
	ReviewedAt *time.Time `json:"reviewed_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type responder struct {
	publicBase string
}

// file links to the request-scoped download route, which applies the same
// visibility rules as reading the request.
func (rp responder) file(r *models.VerificationRequest) *FileResponse {
	f := r.File
	if f == nil {
		return nil
	}
	rel := "/api/verification-requests/" + r.ID.String() + "/document"
	return &FileResponse{
		Name:        f.Name,
		ContentType: f.ContentType,
		FileURL:     rel,
		FileURLAbs:  strings.TrimRight(rp.publicBase, "/") + rel,
	}
}

func location(g *models.GeoPoint) *LocationResponse {
	if g == nil {
		return nil
	}
	return &LocationResponse{Latitude: g.Latitude, Longitude: g.Longitude}
}

func scanSummary(s models.ScanSummary) ScanResponse {
	return ScanResponse{Status: string(s.Status), Confidence: s.Confidence, IsTampered: s.Tampered}
}

func reviewer(r *models.VerificationRequest) *string {
	if r.ReviewedBy == nil {
		return nil
	}
	s := r.ReviewedBy.String()
	return &s
}

func (rp responder) own(r *models.VerificationRequest) OwnRequestResponse {
	return OwnRequestResponse{
		ID:               r.ID.String(),
		Country:          r.Country.String(),
		VerificationType: r.VerificationType.String(),
		DocumentType:     r.DocumentType.String(),
		File:             rp.file(r),
		Location:         location(r.Location),
		Status:           r.Status.String(),
		Scan:             scanSummary(r.Scan),
		ReviewedAt:       r.ReviewedAt,
		DecisionReason:   r.DecisionReason,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (rp responder) ownList(reqs []*models.VerificationRequest) []OwnRequestResponse {
	out := make([]OwnRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, rp.own(r))
	}
	return out
}

func (rp responder) queueItem(r *models.VerificationRequest) ReviewQueueItem {
	return ReviewQueueItem{
		ID:               r.ID.String(),
		ApplicantID:      r.ApplicantID.String(),
		Country:          r.Country.String(),
		VerificationType: r.VerificationType.String(),
		DocumentType:     r.DocumentType.String(),
		File:             rp.file(r),
		Location:         location(r.Location),
		Status:           r.Status.String(),
		Scan:             scanSummary(r.Scan),
		ReviewedBy:       reviewer(r),
		ReviewedAt:       r.ReviewedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (rp responder) queue(reqs []*models.VerificationRequest) []ReviewQueueItem {
	out := make([]ReviewQueueItem, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, rp.queueItem(r))
	}
	return out
}

func decisionResponse(r *models.VerificationRequest) DecisionResponse {
	return DecisionResponse{
		ID:         r.ID.String(),
		Status:     r.Status.String(),
		ReviewedBy: reviewer(r),
		ReviewedAt: r.ReviewedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
