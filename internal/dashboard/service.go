// Package dashboard answers the read-only aggregate questions behind the
// role dashboards and the admin metrics page.
package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"docverify/internal/authz"
	"docverify/internal/verification/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

const recentLimit = 5

// Store is the read side of the request store.
type Store interface {
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
	CountByStatusForApplicant(ctx context.Context, applicantID id.UserID) (models.StatusCounts, error)
	CountByCountry(ctx context.Context) ([]models.CountryCount, error)
	ListByApplicant(ctx context.Context, applicantID id.UserID) ([]*models.VerificationRequest, error)
}

// StatusView relabels pending as in_review.
type StatusView struct {
	InReview int `json:"in_review"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

func viewOf(c models.StatusCounts) StatusView {
	return StatusView{InReview: c.Pending, Approved: c.Approved, Rejected: c.Rejected, Total: c.Total()}
}

// CountryStat is one row of the country breakdown.
type CountryStat struct {
	Code    string  `json:"code"`
	Country string  `json:"country"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type RecentItem struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	Country          string    `json:"country"`
	VerificationType string    `json:"verification_type"`
	DocumentType     string    `json:"document_type"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Summary is the role-scoped dashboard. Only the fields for the caller's
// role are set.
type Summary struct {
	Role      string        `json:"role"`
	Counts    *StatusView   `json:"counts,omitempty"`
	Recent    []RecentItem  `json:"recent,omitempty"`
	Countries []CountryStat `json:"countries,omitempty"`
}

// AdminMetrics backs the administrator metrics page.
type AdminMetrics struct {
	Totals    StatusView    `json:"totals"`
	Countries []CountryStat `json:"countries"`
}

type Service struct {
	store  Store
	policy authz.Policy
	logger *slog.Logger
}

type Option func(*Service)

func WithPolicy(p authz.Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, policy: authz.DefaultPolicy(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	c, err := s.store.CountByStatus(ctx)
	if err != nil {
		return models.StatusCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count requests")
	}
	return c, nil
}

func (s *Service) CountByStatusForApplicant(ctx context.Context, applicantID id.UserID) (models.StatusCounts, error) {
	c, err := s.store.CountByStatusForApplicant(ctx, applicantID)
	if err != nil {
		return models.StatusCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count requests")
	}
	return c, nil
}

// CountByCountry merges stored spellings of the same country and adds labels
// and shares of the total. Rows are ordered by code.
func (s *Service) CountByCountry(ctx context.Context) ([]CountryStat, error) {
	raw, err := s.store.CountByCountry(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count requests by country")
	}

	merged := map[string]int{}
	total := 0
	for _, row := range raw {
		merged[NormalizeCountry(row.Country)] += row.Count
		total += row.Count
	}

	out := make([]CountryStat, 0, len(merged))
	for code, n := range merged {
		pct := 0.0
		if total > 0 {
			pct = float64(n) / float64(total) * 100
		}
		out = append(out, CountryStat{Code: code, Country: CountryLabel(code), Count: n, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Summary builds the dashboard for the caller's role. Queries run concurrently.
func (s *Service) Summary(ctx context.Context, principal authz.Principal) (*Summary, error) {
	if err := authz.RequireAuthenticated(principal); err != nil {
		return nil, err
	}
	out := &Summary{Role: principal.Role.String()}
	g, gctx := errgroup.WithContext(ctx)

	switch {
	case principal.Role == authz.RoleAdministrator:
		g.Go(func() error {
			c, err := s.CountByStatus(gctx)
			if err != nil {
				return err
			}
			v := viewOf(c)
			out.Counts = &v
			return nil
		})
		g.Go(func() error {
			countries, err := s.CountByCountry(gctx)
			out.Countries = countries
			return err
		})

	case s.policy.IsReviewer(principal):
		g.Go(func() error {
			c, err := s.CountByStatus(gctx)
			if err != nil {
				return err
			}
			out.Counts = &StatusView{InReview: c.Pending, Total: c.Pending}
			return nil
		})

	default:
		g.Go(func() error {
			c, err := s.CountByStatusForApplicant(gctx, principal.ID)
			if err != nil {
				return err
			}
			v := viewOf(c)
			out.Counts = &v
			return nil
		})
		g.Go(func() error {
			reqs, err := s.store.ListByApplicant(gctx, principal.ID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list recent requests")
			}
			out.Recent = recent(reqs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "dashboard summary failed",
			"role", principal.Role,
			"error", err,
		)
		return nil, err
	}
	return out, nil
}

// AdminMetrics returns global totals and the country breakdown.
func (s *Service) AdminMetrics(ctx context.Context, principal authz.Principal) (*AdminMetrics, error) {
	if err := authz.RequireAdministrator(principal); err != nil {
		return nil, err
	}
	var (
		counts    models.StatusCounts
		countries []CountryStat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = s.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		countries, err = s.CountByCountry(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &AdminMetrics{Totals: viewOf(counts), Countries: countries}, nil
}

func recent(reqs []*models.VerificationRequest) []RecentItem {
	n := min(len(reqs), recentLimit)
	out := make([]RecentItem, 0, n)
	for _, r := range reqs[:n] {
		status := r.Status.String()
		if r.IsPending() {
			status = models.StatusInReview
		}
		out = append(out, RecentItem{
			ID:               r.ID.String(),
			Status:           status,
			Country:          r.Country.String(),
			VerificationType: r.VerificationType.String(),
			DocumentType:     r.DocumentType.String(),
			CreatedAt:        r.CreatedAt,
			UpdatedAt:        r.UpdatedAt,
		})
	}
	return out
}
