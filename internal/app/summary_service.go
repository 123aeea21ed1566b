package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"studynotes-client/internal/domain"
	"studynotes-client/internal/jobs"
)

// SummaryBackend is the part of the backend that produces document summaries.
type SummaryBackend interface {
	DocumentStatus(ctx context.Context, documentID string) (domain.JobStatus, error)
	Summary(ctx context.Context, documentID string) (domain.Summary, error)
	GenerateSummary(ctx context.Context, documentID string) error
}

// SummaryCache abstracts where finished summaries are kept (in-memory, Redis).
type SummaryCache interface {
	GetSummary(ctx context.Context, documentID string) (domain.Summary, bool, error)
	PutSummary(ctx context.Context, summary domain.Summary) error
}

type SummaryOption func(*SummaryService)

func WithSummaryCache(c SummaryCache) SummaryOption {
	return func(s *SummaryService) { s.cache = c }
}

func WithSummaryPolicies(summary, readiness jobs.Policy) SummaryOption {
	return func(s *SummaryService) {
		s.policy = summary
		s.readiness = readiness
	}
}

// WithSummaryTrackerOptions is passed to every tracker the service starts.
func WithSummaryTrackerOptions(opts ...jobs.Option) SummaryOption {
	return func(s *SummaryService) { s.trackerOpts = append(s.trackerOpts, opts...) }
}

func WithSummaryLogger(l *slog.Logger) SummaryOption {
	return func(s *SummaryService) { s.logger = l }
}

// SummaryService waits for document summaries and remembers the finished ones.
type SummaryService struct {
	backend     SummaryBackend
	cache       SummaryCache
	policy      jobs.Policy
	readiness   jobs.Policy
	trackerOpts []jobs.Option
	logger      *slog.Logger
	sf          singleflight.Group
}

func NewSummaryService(backend SummaryBackend, opts ...SummaryOption) *SummaryService {
	s := &SummaryService{
		backend:   backend,
		policy:    jobs.SummaryPolicy(),
		readiness: jobs.DocumentReadinessPolicy(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch tracks the summary of documentID. A cached summary yields an already
// succeeded tracker and no backend traffic; otherwise polling starts right away
// and stops when ctx is cancelled.
func (s *SummaryService) Watch(ctx context.Context, documentID string) *jobs.Tracker[domain.Summary] {
	if s.cache != nil {
		summary, ok, err := s.cache.GetSummary(ctx, documentID)
		if err != nil {
			s.logger.Warn("summary cache lookup failed", "document_id", documentID, "error", err)
		}
		if ok {
			return jobs.Resolved(documentID, summary)
		}
	}

	t := jobs.NewTracker(documentID, s.backend.DocumentStatus, s.fetchSummary, s.policy, s.trackerOpts...)
	t.Start(ctx)
	return t
}

// Generate waits for the document text to be extracted, then requests a summary.
func (s *SummaryService) Generate(ctx context.Context, documentID string) error {
	if err := jobs.WaitReady(ctx, documentID, s.backend.DocumentStatus, s.readiness, s.trackerOpts...); err != nil {
		return err
	}
	if err := s.backend.GenerateSummary(ctx, documentID); err != nil {
		return err
	}
	s.logger.Info("summary requested", "document_id", documentID)
	return nil
}

// fetchSummary coalesces concurrent fetches of one document. The shared fetch
// outlives any single caller; each caller stops waiting when its own ctx ends.
func (s *SummaryService) fetchSummary(ctx context.Context, documentID string) (domain.Summary, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(documentID, func() (interface{}, error) {
		summary, err := s.backend.Summary(shared, documentID)
		if err != nil {
			return domain.Summary{}, err
		}
		if s.cache != nil {
			if err := s.cache.PutSummary(shared, summary); err != nil {
				s.logger.Warn("failed to cache summary", "document_id", documentID, "error", err)
			}
		}
		return summary, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Summary{}, res.Err
		}
		return res.Val.(domain.Summary), nil
	case <-ctx.Done():
		return domain.Summary{}, ctx.Err()
	}
}
