package comments_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ellemouton/lndboard/comments"
	"github.com/ellemouton/lndboard/comments/memory"
)

func TestFeedWindow(t *testing.T) {
	feed := comments.NewFeed(comments.DefaultWindow)

	for i := 1; i <= comments.DefaultWindow; i++ {
		feed.Append(&comments.Comment{Id: uint64(i), Text: fmt.Sprint(i)})
	}

	snapshot := feed.Snapshot()
	require.Len(t, snapshot, comments.DefaultWindow)
	require.EqualValues(t, 1, snapshot[0].Id)
	require.EqualValues(t, comments.DefaultWindow, snapshot[len(snapshot)-1].Id)

	for i := comments.DefaultWindow + 1; i <= comments.DefaultWindow+5; i++ {
		feed.Append(&comments.Comment{Id: uint64(i), Text: fmt.Sprint(i)})
	}

	snapshot = feed.Snapshot()
	require.Len(t, snapshot, comments.DefaultWindow)
	require.EqualValues(t, 6, snapshot[0].Id)
	require.EqualValues(t, comments.DefaultWindow+5, snapshot[len(snapshot)-1].Id)

	for i := 1; i < len(snapshot); i++ {
		require.Equal(t, snapshot[i-1].Id+1, snapshot[i].Id)
	}
}

func TestFeedSnapshotIsCopy(t *testing.T) {
	feed := comments.NewFeed(10)

	c := &comments.Comment{Id: 1, Text: "hello"}
	feed.Append(c)
	c.Text = "changed"

	snapshot := feed.Snapshot()
	snapshot[0].Text = "changed again"

	require.Equal(t, "hello", feed.Snapshot()[0].Text)
}

func TestFeedSeed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	for i := 0; i < 15; i++ {
		require.NoError(t, store.Append(ctx, &comments.Comment{
			Text: fmt.Sprintf("comment %d", i),
		}))
	}

	feed := comments.NewFeed(10)
	feed.Append(&comments.Comment{Text: "replaced by seed"})

	require.NoError(t, feed.Seed(ctx, store))
	require.Equal(t, 10, feed.Len())

	snapshot := feed.Snapshot()
	require.Equal(t, "comment 5", snapshot[0].Text)
	require.Equal(t, "comment 14", snapshot[9].Text)

	recent, err := store.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, recent, snapshot)
}
