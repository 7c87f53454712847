package audit

import (
	"time"

	"github.com/google/uuid"

	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/middleware/metadata"
)

// Action is the lifecycle event an entry records.
type Action string

const (
	ActionCreated  Action = "created"
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
)

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid audit action")
	}
	return a, nil
}

func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionApproved, ActionRejected:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }

// FileMetadata describes the stored document, never its contents.
type FileMetadata struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// Metadata is the structured detail attached to an entry.
// Reason is present only on decision entries.
type Metadata struct {
	Country          string           `json:"country,omitempty"`
	VerificationType string           `json:"verificationType,omitempty"`
	DocumentType     string           `json:"documentType,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	File             *FileMetadata    `json:"file,omitempty"`
	HasLocation      bool             `json:"hasLocation,omitempty"`
	Client           *metadata.Client `json:"client,omitempty"`
}

// Entry is one immutable audit record.
//
// Invariants:
//   - written in the same unit of work as the lifecycle mutation it describes
//   - never updated or deleted; RequestID becomes nil only if the request row is removed
type Entry struct {
	ID        id.AuditEntryID `json:"id"`
	RequestID *id.RequestID   `json:"request_id,omitempty"`
	ActorID   id.UserID       `json:"actor_id"`
	Action    Action          `json:"action"`
	Metadata  Metadata        `json:"metadata"`
	Timestamp time.Time       `json:"timestamp"`
}

// Record is the input to Ledger.Record.
type Record struct {
	RequestID id.RequestID
	ActorID   id.UserID
	Action    Action
	Metadata  Metadata
}

// ListFilter narrows List results. Zero values mean "no constraint";
// a zero Limit returns everything.
type ListFilter struct {
	RequestID *id.RequestID
	ActorID   *id.UserID
	Action    Action
	Limit     int
	Offset    int
}

// Matches reports whether e satisfies every set field of the filter.
func (f ListFilter) Matches(e Entry) bool {
	if f.RequestID != nil && (e.RequestID == nil || *e.RequestID != *f.RequestID) {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return true
}

// OutboxMessage is an entry waiting to be relayed to the audit topic.
type OutboxMessage struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
