package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellemouton/lndboard/comments"
)

func RunTests(t *testing.T, s comments.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s comments.Store){
		testHappyPath,
		testEmpty,
		testWindow,
		testFullWindow,
		testInvalid,
		testConcurrentAppends,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s comments.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now().Add(-time.Second)

		record := &comments.Comment{Text: "satoshi: hello"}
		require.NoError(t, s.Append(ctx, record))
		assert.True(t, record.Id > 0)
		assert.True(t, record.CreatedAt.After(start))

		second := &comments.Comment{Text: "world"}
		require.NoError(t, s.Append(ctx, second))
		assert.True(t, second.Id > record.Id)

		actual, err := s.GetRecent(ctx, comments.DefaultWindow)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentComments(t, record, actual[0])
		assertEquivalentComments(t, second, actual[1])
	})
}

func testEmpty(t *testing.T, s comments.Store) {
	t.Run("testEmpty", func(t *testing.T) {
		actual, err := s.GetRecent(context.Background(), comments.DefaultWindow)
		require.NoError(t, err)
		assert.Empty(t, actual)
	})
}

func testWindow(t *testing.T, s comments.Store) {
	t.Run("testWindow", func(t *testing.T) {
		ctx := context.Background()

		var appended []*comments.Comment
		for i := 0; i < 25; i++ {
			record := &comments.Comment{Text: fmt.Sprintf("comment %d", i)}
			require.NoError(t, s.Append(ctx, record))
			appended = append(appended, record)
		}

		actual, err := s.GetRecent(ctx, 100)
		require.NoError(t, err)
		require.Len(t, actual, 25)
		for i := range appended {
			assertEquivalentComments(t, appended[i], actual[i])
		}

		actual, err = s.GetRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, actual, 10)
		for i, record := range appended[15:] {
			assertEquivalentComments(t, record, actual[i])
		}
	})
}

func testFullWindow(t *testing.T, s comments.Store) {
	t.Run("testFullWindow", func(t *testing.T) {
		ctx := context.Background()

		total := comments.DefaultWindow + 5

		var appended []*comments.Comment
		for i := 0; i < total; i++ {
			record := &comments.Comment{Text: fmt.Sprintf("comment %d", i)}
			require.NoError(t, s.Append(ctx, record))
			appended = append(appended, record)
		}

		actual, err := s.GetRecent(ctx, comments.DefaultWindow)
		require.NoError(t, err)
		require.Len(t, actual, comments.DefaultWindow)

		assert.Equal(t, "comment 5", actual[0].Text)
		assert.Equal(t, fmt.Sprintf("comment %d", total-1),
			actual[len(actual)-1].Text)

		for i, record := range appended[5:] {
			assertEquivalentComments(t, record, actual[i])
		}
	})
}

func testInvalid(t *testing.T, s comments.Store) {
	t.Run("testInvalid", func(t *testing.T) {
		err := s.Append(context.Background(), &comments.Comment{})
		assert.ErrorIs(t, err, comments.ErrInvalidComment)
	})
}

func testConcurrentAppends(t *testing.T, s comments.Store) {
	t.Run("testConcurrentAppends", func(t *testing.T) {
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Append(ctx, &comments.Comment{
					Text: fmt.Sprintf("comment %d", i),
				}))
			}(i)
		}
		wg.Wait()

		actual, err := s.GetRecent(ctx, 100)
		require.NoError(t, err)
		require.Len(t, actual, 20)
		for i := 1; i < len(actual); i++ {
			assert.True(t, actual[i].Id > actual[i-1].Id)
		}
	})
}

func assertEquivalentComments(t *testing.T, expected, actual *comments.Comment) {
	assert.Equal(t, expected.Id, actual.Id)
	assert.Equal(t, expected.Text, actual.Text)
	assert.Equal(t, expected.CreatedAt.Unix(), actual.CreatedAt.Unix())
}
