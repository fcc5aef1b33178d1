package resources

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stchstepan/passbolt/pkg/observability"
	"github.com/stchstepan/passbolt/pkg/permissions"
	"github.com/stchstepan/passbolt/pkg/principal"
)

// visiblePageSize is the batch size used when walking the caller's visible
// resource ids.
const visiblePageSize = 1000

// Service orchestrates an index request: it resolves the visible id set,
// applies the plan's filters, fetches and orders the surviving rows, applies
// pagination, and hands the page to the projector.
type Service struct {
	index     permissions.Reader
	evaluator *permissions.Evaluator
	store     *Store
	projector *Projector
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewService creates an index service. metrics may be nil.
func NewService(index permissions.Reader, store *Store, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		index:     index,
		evaluator: permissions.NewEvaluator(index),
		store:     store,
		projector: NewProjector(store),
		logger:    logger,
		metrics:   metrics,
	}
}

// Index executes the plan for the caller and returns the enriched page.
// Validation has already happened in Compile; every error from here on is a
// storage failure and the response is all-or-nothing.
func (s *Service) Index(ctx context.Context, pc *principal.Context, plan *Plan) ([]*Entry, error) {
	var ids []uuid.UUID
	var err error
	if plan.HasID != nil {
		ids, err = s.resolveHasID(ctx, pc, plan.HasID)
	} else {
		ids, err = s.visibleIDs(ctx, pc)
	}
	if err != nil {
		s.observeOutcome("error")
		return nil, err
	}

	ids, err = s.applyFilters(ctx, pc, plan, ids)
	if err != nil {
		s.observeOutcome("error")
		return nil, err
	}
	if len(ids) == 0 {
		s.observeResult(0)
		return []*Entry{}, nil
	}

	entries, err := s.store.FetchOrdered(ctx, ids, plan.HasParent, plan.OrderBy)
	if err != nil {
		s.observeOutcome("error")
		return nil, err
	}

	entries = paginate(entries, plan.Offset(), plan.Limit)

	if err := s.projector.Project(ctx, pc, entries, plan.Contains); err != nil {
		s.observeOutcome("error")
		return nil, err
	}

	s.observeResult(len(entries))
	return entries, nil
}

// visibleIDs walks the permission index page by page and returns every
// resource id the caller can see, ordered by id ascending.
func (s *Service) visibleIDs(ctx context.Context, pc *principal.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, visiblePageSize)
	for offset := 0; ; offset += visiblePageSize {
		page, err := s.index.VisibleResourceIDs(ctx, pc.UserID(), offset, visiblePageSize)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page...)
		if len(page) < visiblePageSize {
			return ids, nil
		}
	}
}

// resolveHasID narrows an id-addressed request to the ids the caller can see.
// The evaluator checks the requested ids against the permission index, so the
// caller's full visible set is never materialized.
func (s *Service) resolveHasID(ctx context.Context, pc *principal.Context, requested []uuid.UUID) ([]uuid.UUID, error) {
	start := time.Now()
	ids, err := s.evaluator.FilterVisible(ctx, pc, requested)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IndexFilterDuration.WithLabelValues("has-id").Observe(time.Since(start).Seconds())
	}
	return ids, nil
}

// applyFilters intersects the plan's set filters with the visible ids, most
// selective first. The result order follows the visible id order; the fetch
// re-sorts per the plan.
func (s *Service) applyFilters(ctx context.Context, pc *principal.Context, plan *Plan, ids []uuid.UUID) ([]uuid.UUID, error) {
	if plan.SharedWithGroup != nil && len(ids) > 0 {
		shared, err := s.index.SharedWithGroup(ctx, *plan.SharedWithGroup)
		if err != nil {
			return nil, err
		}
		ids = s.intersect("is-shared-with-group", ids, shared)
	}

	if plan.IsSharedWithMe && len(ids) > 0 {
		shared, err := s.index.SharedWithMe(ctx, pc.UserID())
		if err != nil {
			return nil, err
		}
		ids = s.intersect("is-shared-with-me", ids, shared)
	}

	if plan.IsFavorite && len(ids) > 0 {
		favorites, err := s.store.FavoriteResourceIDs(ctx, pc.UserID())
		if err != nil {
			return nil, err
		}
		ids = s.intersect("is-favorite", ids, favorites)
	}

	return ids, nil
}

// intersect keeps the ids present in the set, preserving order.
func (s *Service) intersect(filter string, ids []uuid.UUID, keep map[uuid.UUID]struct{}) []uuid.UUID {
	start := time.Now()
	out := ids[:0]
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			out = append(out, id)
		}
	}
	if s.metrics != nil {
		s.metrics.IndexFilterDuration.WithLabelValues(filter).Observe(time.Since(start).Seconds())
	}
	return out
}

// paginate slices one page out of the ordered entries.
func paginate(entries []*Entry, offset, limit int) []*Entry {
	if offset >= len(entries) {
		return []*Entry{}
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (s *Service) observeOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.IndexRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) observeResult(size int) {
	s.observeOutcome("success")
	if s.metrics != nil {
		s.metrics.IndexResultSize.Observe(float64(size))
	}
}
