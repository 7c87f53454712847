package handler

import (
	"strings"

	"docverify/internal/blob"
	"docverify/internal/verification/models"
	dErrors "docverify/pkg/domain-errors"
)

// FileInput is a document already stored through the upload endpoint.
type FileInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,oneof=image/jpeg image/png application/pdf"`
	StoragePath string `json:"storage_path" validate:"required"`
}

// SubmitRequest is the JSON body for POST /api/verify.
type SubmitRequest struct {
	Country          string     `json:"country" validate:"max=64"`
	VerificationType string     `json:"verificationType" validate:"max=32"`
	DocumentType     string     `json:"documentType" validate:"max=32"`
	File             *FileInput `json:"file"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`

	location *models.GeoPoint
}

// Validate checks shape only. Country and enum checks belong to the service.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubmitRequest) Validate() error {
	if r.File != nil && !blob.ValidKey(r.File.StoragePath) {
		return dErrors.New(dErrors.CodeValidation, "file.storage_path does not reference a stored upload")
	}
	loc, err := parseLocation(r.Latitude, r.Longitude)
	if err != nil {
		return err
	}
	r.location = loc
	return nil
}

// Command converts the body into the service input.
func (r *SubmitRequest) Command() models.SubmitCommand {
	cmd := models.SubmitCommand{
		Country:          r.Country,
		VerificationType: r.VerificationType,
		DocumentType:     r.DocumentType,
		Location:         r.location,
	}
	if r.File != nil {
		cmd.File = &models.FileRef{
			Name:        strings.TrimSpace(r.File.Name),
			ContentType: r.File.ContentType,
			StoragePath: r.File.StoragePath,
		}
	}
	return cmd
}

func parseLocation(lat, long *float64) (*models.GeoPoint, error) {
	if lat == nil && long == nil {
		return nil, nil
	}
	if lat == nil || long == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "latitude and longitude must be provided together")
	}
	return models.NewGeoPoint(*lat, *long)
}

// DecisionRequest is the body for the approve and reject endpoints.
type DecisionRequest struct {
	Reason string `json:"reason"`
}
