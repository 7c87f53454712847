package request

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/platform/tx"
)

const shardCount = 32

type shard struct {
	mu    sync.RWMutex
	items map[id.RequestID]*models.VerificationRequest
}

// InMemory is a sharded in-memory request store. Each request lives in the
// shard chosen by hashing its ID; the pending guard runs under that shard's lock.
type InMemory struct {
	shards [shardCount]*shard
}

func NewInMemory() *InMemory {
	s := &InMemory{}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[id.RequestID]*models.VerificationRequest)}
	}
	return s
}

func (s *InMemory) shardFor(requestID id.RequestID) *shard {
	h := murmur3.Sum32(requestID[:])
	return s.shards[h%shardCount]
}

// Create inserts a new request. Inside a unit of work the insert is undone on rollback.
func (s *InMemory) Create(ctx context.Context, req *models.VerificationRequest) error {
	sh := s.shardFor(req.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.items[req.ID]; exists {
		return sentinel.ErrConflict
	}
	sh.items[req.ID] = req.Clone()

	tx.OnRollback(ctx, func() {
		sh.mu.Lock()
		delete(sh.items, req.ID)
		sh.mu.Unlock()
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.RequestID) (*models.VerificationRequest, error) {
	sh := s.shardFor(requestID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	req, ok := sh.items[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return req.Clone(), nil
}

// ApplyDecision applies d only if the request exists and is still pending.
// Either miss returns sentinel.ErrNotFound.
func (s *InMemory) ApplyDecision(ctx context.Context, d models.DecisionRecord) (*models.VerificationRequest, error) {
	sh := s.shardFor(d.RequestID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	req, ok := sh.items[d.RequestID]
	if !ok || !req.IsPending() {
		return nil, sentinel.ErrNotFound
	}
	before := req.Clone()
	if err := req.Decide(d); err != nil {
		return nil, sentinel.ErrNotFound
	}

	tx.OnRollback(ctx, func() {
		sh.mu.Lock()
		sh.items[d.RequestID] = before
		sh.mu.Unlock()
	})
	return req.Clone(), nil
}

// UpdateScan records advisory scan output at now. It never touches lifecycle fields.
func (s *InMemory) UpdateScan(ctx context.Context, requestID id.RequestID, scan models.ScanSummary, now time.Time) error {
	sh := s.shardFor(requestID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	req, ok := sh.items[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	req.Scan = scan
	req.UpdatedAt = now
	return nil
}

func (s *InMemory) collect(match func(*models.VerificationRequest) bool) []*models.VerificationRequest {
	var out []*models.VerificationRequest
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, req := range sh.items {
			if match(req) {
				out = append(out, req.Clone())
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// ListPending returns pending requests oldest first.
func (s *InMemory) ListPending(_ context.Context) ([]*models.VerificationRequest, error) {
	out := s.collect(func(r *models.VerificationRequest) bool { return r.IsPending() })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListByApplicant returns the applicant's requests newest first.
func (s *InMemory) ListByApplicant(_ context.Context, applicantID id.UserID) ([]*models.VerificationRequest, error) {
	out := s.collect(func(r *models.VerificationRequest) bool { return r.ApplicantID == applicantID })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (models.StatusCounts, error) {
	var counts models.StatusCounts
	for _, r := range s.collect(func(*models.VerificationRequest) bool { return true }) {
		counts.Add(r.Status, 1)
	}
	return counts, nil
}

func (s *InMemory) CountByStatusForApplicant(_ context.Context, applicantID id.UserID) (models.StatusCounts, error) {
	var counts models.StatusCounts
	for _, r := range s.collect(func(r *models.VerificationRequest) bool { return r.ApplicantID == applicantID }) {
		counts.Add(r.Status, 1)
	}
	return counts, nil
}

// CountByCountry groups on the stored country value, largest group first.
func (s *InMemory) CountByCountry(_ context.Context) ([]models.CountryCount, error) {
	byCountry := map[string]int{}
	for _, r := range s.collect(func(*models.VerificationRequest) bool { return true }) {
		byCountry[r.Country.String()]++
	}
	out := make([]models.CountryCount, 0, len(byCountry))
	for c, n := range byCountry {
		out = append(out, models.CountryCount{Country: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Country < out[j].Country
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}
