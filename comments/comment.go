package comments

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DefaultWindow is how many of the most recent comments the feed serves.
const DefaultWindow = 1000

var (
	ErrInvalidComment = errors.New("invalid comment")
)

// Comment is an accepted, paid for comment. Once stored it is never changed.
type Comment struct {
	// Id is assigned by the store and increases with every append.
	Id uint64 `json:"id"`

	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

func (c *Comment) Validate() error {
	if len(c.Text) == 0 {
		return errors.Wrap(ErrInvalidComment, "text is required")
	}

	return nil
}

func (c *Comment) Clone() Comment {
	return Comment{
		Id:        c.Id,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func (c *Comment) CopyTo(dst *Comment) {
	dst.Id = c.Id
	dst.Text = c.Text
	dst.CreatedAt = c.CreatedAt
}

type Store interface {
	// Append durably records comment, setting its Id and CreatedAt.
	Append(ctx context.Context, comment *Comment) error

	// GetRecent returns up to limit of the most recent comments, oldest
	// first. An empty store returns an empty slice.
	GetRecent(ctx context.Context, limit uint64) ([]*Comment, error)
}
