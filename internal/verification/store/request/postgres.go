package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docverify/internal/platform/postgres"
	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
	txcontext "docverify/pkg/platform/tx"
)

// PostgresStore persists verification requests. The pending guard is a single
// conditional UPDATE, so concurrent decisions are arbitrated by the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `
	id, applicant_id, country, verification_type, document_type,
	file_name, file_content_type, file_storage_path, latitude, longitude,
	status, scan_status, scan_confidence, scan_tampered,
	reviewed_by, reviewed_at, decision_reason, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, req *models.VerificationRequest) error {
	var fileName, fileType, filePath sql.NullString
	if req.File != nil {
		fileName = sql.NullString{String: req.File.Name, Valid: true}
		fileType = sql.NullString{String: req.File.ContentType, Valid: true}
		filePath = sql.NullString{String: req.File.StoragePath, Valid: true}
	}
	var lat, long sql.NullFloat64
	if req.Location != nil {
		lat = sql.NullFloat64{Float64: req.Location.Latitude, Valid: true}
		long = sql.NullFloat64{Float64: req.Location.Longitude, Valid: true}
	}

	query := `
		INSERT INTO verification_requests (
			id, applicant_id, country, verification_type, document_type,
			file_name, file_content_type, file_storage_path, latitude, longitude,
			status, scan_status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		uuid.UUID(req.ApplicantID),
		req.Country.String(),
		req.VerificationType.String(),
		req.DocumentType.String(),
		fileName, fileType, filePath,
		lat, long,
		req.Status.String(),
		string(req.Scan.Status),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.VerificationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM verification_requests WHERE id = $1`
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(requestID))
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find verification request: %w", err)
	}
	return req, nil
}

// ApplyDecision updates the row only while it is still pending.
// No matching row, for either reason, returns sentinel.ErrNotFound.
func (s *PostgresStore) ApplyDecision(ctx context.Context, d models.DecisionRecord) (*models.VerificationRequest, error) {
	query := `
		UPDATE verification_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, decision_reason = $5, updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(d.RequestID),
		d.ResultStatus().String(),
		uuid.UUID(d.ReviewerID),
		d.DecidedAt,
		d.Reason,
	)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("apply decision: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) UpdateScan(ctx context.Context, requestID id.RequestID, scan models.ScanSummary, now time.Time) error {
	var confidence sql.NullInt32
	if scan.Confidence != nil {
		confidence = sql.NullInt32{Int32: int32(*scan.Confidence), Valid: true}
	}
	var tampered sql.NullBool
	if scan.Tampered != nil {
		tampered = sql.NullBool{Bool: *scan.Tampered, Valid: true}
	}
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE verification_requests
		SET scan_status = $2, scan_confidence = $3, scan_tampered = $4, updated_at = $5
		WHERE id = $1
	`, uuid.UUID(requestID), string(scan.Status), confidence, tampered, now)
	if err != nil {
		return fmt.Errorf("update scan summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*models.VerificationRequest, error) {
	query := `SELECT ` + requestColumns + `
		FROM verification_requests
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC`
	return s.queryRequests(ctx, query)
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicantID id.UserID) ([]*models.VerificationRequest, error) {
	query := `SELECT ` + requestColumns + `
		FROM verification_requests
		WHERE applicant_id = $1
		ORDER BY created_at DESC`
	return s.queryRequests(ctx, query, uuid.UUID(applicantID))
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	return s.countStatuses(ctx, `
		SELECT status, COUNT(*) FROM verification_requests
		WHERE status = ANY($1)
		GROUP BY status`, pq.Array(statusNames()))
}

func (s *PostgresStore) CountByStatusForApplicant(ctx context.Context, applicantID id.UserID) (models.StatusCounts, error) {
	return s.countStatuses(ctx, `
		SELECT status, COUNT(*) FROM verification_requests
		WHERE applicant_id = $1 AND status = ANY($2)
		GROUP BY status`, uuid.UUID(applicantID), pq.Array(statusNames()))
}

func (s *PostgresStore) CountByCountry(ctx context.Context) ([]models.CountryCount, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, `
		SELECT country, COUNT(*) AS total FROM verification_requests
		GROUP BY country
		ORDER BY total DESC, country ASC`)
	if err != nil {
		return nil, fmt.Errorf("count by country: %w", err)
	}
	defer rows.Close()

	var out []models.CountryCount
	for rows.Next() {
		var c models.CountryCount
		if err := rows.Scan(&c.Country, &c.Count); err != nil {
			return nil, fmt.Errorf("scan country count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate country counts: %w", err)
	}
	return out, nil
}

func statusNames() []string {
	all := models.AllStatuses()
	names := make([]string, len(all))
	for i, st := range all {
		names[i] = st.String()
	}
	return names
}

func (s *PostgresStore) countStatuses(ctx context.Context, query string, args ...any) (models.StatusCounts, error) {
	var counts models.StatusCounts
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return counts, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scan status count: %w", err)
		}
		counts.Add(models.Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*models.VerificationRequest, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verification requests: %w", err)
	}
	defer rows.Close()

	out := []*models.VerificationRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.VerificationRequest, error) {
	var (
		req                          models.VerificationRequest
		reqID, applicantID           uuid.UUID
		country, vType, dType        string
		status, scanStatus           string
		fileName, fileType, filePath sql.NullString
		lat, long                    sql.NullFloat64
		confidence                   sql.NullInt32
		tampered                     sql.NullBool
		reviewedBy                   uuid.NullUUID
		reviewedAt                   sql.NullTime
		reason                       sql.NullString
		createdAt, updatedAt         time.Time
	)
	if err := row.Scan(
		&reqID, &applicantID, &country, &vType, &dType,
		&fileName, &fileType, &filePath, &lat, &long,
		&status, &scanStatus, &confidence, &tampered,
		&reviewedBy, &reviewedAt, &reason, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	req.ID = id.RequestID(reqID)
	req.ApplicantID = id.UserID(applicantID)
	req.Country = models.Country(country)
	req.VerificationType = models.VerificationType(vType)
	req.DocumentType = models.DocumentType(dType)
	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("stored status %q is not a lifecycle status", status)
	}
	req.Status = st
	req.Scan.Status = models.ScanStatus(scanStatus)
	req.CreatedAt = createdAt
	req.UpdatedAt = updatedAt

	if fileName.Valid {
		req.File = &models.FileRef{Name: fileName.String, ContentType: fileType.String, StoragePath: filePath.String}
	}
	if lat.Valid && long.Valid {
		req.Location = &models.GeoPoint{Latitude: lat.Float64, Longitude: long.Float64}
	}
	if confidence.Valid {
		c := int(confidence.Int32)
		req.Scan.Confidence = &c
	}
	if tampered.Valid {
		t := tampered.Bool
		req.Scan.Tampered = &t
	}
	if reviewedBy.Valid {
		r := id.UserID(reviewedBy.UUID)
		req.ReviewedBy = &r
	}
	if reviewedAt.Valid {
		at := reviewedAt.Time
		req.ReviewedAt = &at
	}
	if reason.Valid {
		rs := reason.String
		req.DecisionReason = &rs
	}
	return &req, nil
}
