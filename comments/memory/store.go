package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ellemouton/lndboard/comments"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*comments.Comment
}

// New returns a new in memory comments.Store
func New() comments.Store {
	return &store{}
}

// Append implements comments.Store.Append
func (s *store) Append(_ context.Context, data *comments.Comment) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	data.Id = s.last
	data.CreatedAt = time.Now()

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// GetRecent implements comments.Store.GetRecent
func (s *store) GetRecent(_ context.Context, limit uint64) ([]*comments.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.records
	if uint64(len(items)) > limit {
		items = items[uint64(len(items))-limit:]
	}

	res := make([]*comments.Comment, 0, len(items))
	for _, item := range items {
		cloned := item.Clone()
		res = append(res, &cloned)
	}
	return res, nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = 0
	s.records = nil
}
