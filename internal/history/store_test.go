package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/history"
	"dm-service/internal/mocks"
	"dm-service/internal/models"
)

func page(sender, recipient int, from int64, n int) []models.Message {
	msgs := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, models.Message{
			SenderID:    sender,
			RecipientID: recipient,
			Body:        "m",
			SentAt:      from + int64(i),
		})
	}
	return msgs
}

func TestLoadOlderPagesBackwards(t *testing.T) {
	fetcher := new(mocks.FetcherMock)
	store := history.NewStore(fetcher, 1)

	newest := page(2, 1, 1000, history.DefaultPageSize)
	older := page(2, 1, 500, 10)

	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(0)).Return(newest, nil).Once()
	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(1000)).Return(older, nil).Once()

	added, hasMore, err := store.LoadOlder(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, history.DefaultPageSize, added)
	assert.True(t, hasMore)

	added, hasMore, err = store.LoadOlder(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 10, added)
	assert.False(t, hasMore)

	msgs := store.Messages(2)
	require.Len(t, msgs, history.DefaultPageSize+10)
	assert.Equal(t, int64(500), msgs[0].SentAt)
	for i := 1; i < len(msgs); i++ {
		assert.LessOrEqual(t, msgs[i-1].SentAt, msgs[i].SentAt)
	}

	// Exhausted history short-circuits without another fetch.
	added, hasMore, err = store.LoadOlder(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.False(t, hasMore)
	fetcher.AssertExpectations(t)
}

func TestLoadOlderFetchErrorLeavesCacheUntouched(t *testing.T) {
	fetcher := new(mocks.FetcherMock)
	store := history.NewStore(fetcher, 1)

	first := page(2, 1, 1000, history.DefaultPageSize)
	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(0)).Return(first, nil).Once()
	_, _, err := store.LoadOlder(context.Background(), 2)
	require.NoError(t, err)

	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(1000)).Return(nil, assert.AnError).Once()
	added, hasMore, err := store.LoadOlder(context.Background(), 2)
	require.Error(t, err)
	assert.Zero(t, added)
	assert.True(t, hasMore)
	require.Len(t, store.Messages(2), history.DefaultPageSize)

	// Re-triggering uses the same cursor: the retry is idempotent.
	older := page(2, 1, 500, 5)
	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(1000)).Return(older, nil).Once()
	added, hasMore, err = store.LoadOlder(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, added)
	assert.False(t, hasMore)
	fetcher.AssertExpectations(t)
}

func TestLoadOlderConcurrentErrorReportsSnapshot(t *testing.T) {
	fetcher := new(mocks.FetcherMock)
	store := history.NewStore(fetcher, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(0)).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]models.Message(nil), assert.AnError).Once()
	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(0)).
		Return(page(2, 1, 100, 3), nil).Once()

	type result struct {
		added   int
		hasMore bool
		err     error
	}
	first := make(chan result, 1)
	go func() {
		added, hasMore, err := store.LoadOlder(context.Background(), 2)
		first <- result{added, hasMore, err}
	}()
	<-started

	// A second load completes while the first fetch is still in flight.
	added, hasMore, err := store.LoadOlder(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.False(t, hasMore)

	close(release)
	got := <-first
	require.Error(t, got.err)
	assert.Zero(t, got.added)
	// The failed load reports the state as of its own start, and the cache
	// keeps what the concurrent load stored.
	assert.True(t, got.hasMore)
	require.Len(t, store.Messages(2), 3)
	assert.False(t, store.HasMore(2))
	fetcher.AssertExpectations(t)
}

func TestLoadOlderShortFirstPageEndsHistory(t *testing.T) {
	fetcher := new(mocks.FetcherMock)
	store := history.NewStore(fetcher, 1)

	fetcher.On("FetchPage", mock.Anything, 1, 3, history.DefaultPageSize, int64(0)).Return(page(3, 1, 100, 2), nil).Once()

	added, hasMore, err := store.LoadOlder(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.False(t, hasMore)
	assert.True(t, store.Loaded(3))
	assert.False(t, store.HasMore(3))
	fetcher.AssertExpectations(t)
}

func TestLoadOlderEmptyConversation(t *testing.T) {
	fetcher := new(mocks.FetcherMock)
	store := history.NewStore(fetcher, 1)

	fetcher.On("FetchPage", mock.Anything, 1, 4, history.DefaultPageSize, int64(0)).Return([]models.Message(nil), nil).Once()

	added, hasMore, err := store.LoadOlder(context.Background(), 4)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.False(t, hasMore)
	assert.True(t, store.Loaded(4))
	assert.Empty(t, store.Messages(4))
	fetcher.AssertExpectations(t)
}
