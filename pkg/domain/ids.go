package domain

import (
	"github.com/google/uuid"

	dErrors "docverify/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so that a request id can never be passed
// where a user id is expected.
type (
	UserID       uuid.UUID
	RequestID    uuid.UUID
	AuditEntryID uuid.UUID
)

// NewRequestID generates a fresh verification request identifier.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewAuditEntryID generates a fresh audit entry identifier.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// ParseUserID parses a user identifier at a trust boundary.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseRequestID parses a verification request identifier at a trust boundary.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s, "request ID")
	return RequestID(u), err
}

// ParseAuditEntryID parses an audit entry identifier.
func ParseAuditEntryID(s string) (AuditEntryID, error) {
	u, err := parseUUID(s, "audit entry ID")
	return AuditEntryID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id AuditEntryID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text encoding keeps JSON and log output in canonical UUID form.

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id RequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *RequestID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id AuditEntryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AuditEntryID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
