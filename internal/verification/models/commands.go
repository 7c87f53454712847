package models

import (
	"time"

	id "docverify/pkg/domain"
)

// SubmitCommand is the raw submission as received from a transport.
// Country and the type fields are parsed by the service.
type SubmitCommand struct {
	Country          string
	VerificationType string
	DocumentType     string
	File             *FileRef
	Location         *GeoPoint
}

// SubmitResult is returned to the applicant after a successful submission.
type SubmitResult struct {
	ID        id.RequestID
	Status    Status
	CreatedAt time.Time
}

// StatusCounts holds request totals per stored status.
type StatusCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Total sums every status.
func (c StatusCounts) Total() int {
	return c.Pending + c.Approved + c.Rejected
}

// Add increments the bucket for status s by n.
func (c *StatusCounts) Add(s Status, n int) {
	switch s {
	case StatusPending:
		c.Pending += n
	case StatusApproved:
		c.Approved += n
	case StatusRejected:
		c.Rejected += n
	}
}

// CountryCount is the number of requests recorded under a raw country value.
type CountryCount struct {
	Country string
	Count   int
}
