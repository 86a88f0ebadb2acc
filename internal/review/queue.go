package review

import (
	"context"
	"fmt"

	"github.com/renderinc/review-queue/internal/record"
)

const (
	MinQueueLimit     = 1
	MaxQueueLimit     = 100
	DefaultQueueLimit = 20
)

// ClampLimit forces limit into [MinQueueLimit, MaxQueueLimit].
func ClampLimit(limit int) int {
	return max(MinQueueLimit, min(limit, MaxQueueLimit))
}

// ListQueue returns up to limit undecided sources, oldest first.
func (s *Service) ListQueue(ctx context.Context, limit int) ([]record.View, error) {
	sources, err := s.store.ListUndecided(ctx, s.filter, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: list queue: %v", ErrStoreUnavailable, err)
	}

	views := make([]record.View, 0, len(sources))
	for _, src := range sources {
		views = append(views, s.resolver.View(src))
	}
	return views, nil
}

// Get returns the source with id as stored, with its decision marker.
func (s *Service) Get(ctx context.Context, rawID string) (*record.Source, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	src, err := s.store.FindSource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: find source: %v", ErrStoreUnavailable, err)
	}
	if src == nil {
		return nil, ErrNotFound
	}
	return src, nil
}

// View projects src with the service's key table.
func (s *Service) View(src *record.Source) record.View {
	return s.resolver.View(src)
}
