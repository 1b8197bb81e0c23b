package comments

import (
	"context"
	"sync"
)

// Feed is the bounded in-memory mirror of the store that feed reads are
// served from. It is seeded from the store once and appended to afterwards.
type Feed struct {
	mu       sync.RWMutex
	limit    int
	comments []*Comment
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = DefaultWindow
	}

	return &Feed{
		limit:    limit,
		comments: make([]*Comment, 0, limit),
	}
}

// Seed replaces the feed contents with the most recent window of store.
func (f *Feed) Seed(ctx context.Context, store Store) error {
	recent, err := store.GetRecent(ctx, uint64(f.limit))
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.comments = f.comments[:0]
	for _, c := range recent {
		f.push(c)
	}

	return nil
}

// Append adds comment as the newest entry, evicting the oldest once the feed
// is full.
func (f *Feed) Append(comment *Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.push(comment)
}

func (f *Feed) push(comment *Comment) {
	cloned := comment.Clone()

	if len(f.comments) == f.limit {
		copy(f.comments, f.comments[1:])
		f.comments[len(f.comments)-1] = &cloned
		return
	}

	f.comments = append(f.comments, &cloned)
}

// Snapshot returns the feed oldest first.
func (f *Feed) Snapshot() []*Comment {
	f.mu.RLock()
	defer f.mu.RUnlock()

	res := make([]*Comment, 0, len(f.comments))
	for _, c := range f.comments {
		cloned := c.Clone()
		res = append(res, &cloned)
	}

	return res
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.comments)
}
