package view_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/history"
	"dm-service/internal/live"
	"dm-service/internal/mocks"
	"dm-service/internal/models"
	"dm-service/internal/session"
	"dm-service/internal/view"
)

func msg(sender, recipient int, body string, sentAt int64) models.Message {
	return models.Message{SenderID: sender, RecipientID: recipient, Body: body, SentAt: sentAt}
}

func TestMergeDeduplicatesByIdentity(t *testing.T) {
	persisted := []models.Message{
		msg(1, 2, "first", 100),
		msg(2, 1, "second", 200),
	}
	liveEntry := msg(2, 1, "second copy", 200)
	liveEntry.Delivery = models.DeliverySent

	merged := view.Merge(persisted, []models.Message{liveEntry, msg(1, 2, "third", 300)})

	require.Len(t, merged, 3)
	assert.Equal(t, "first", merged[0].Body)
	// Persisted copy wins, live delivery state carried over.
	assert.Equal(t, "second", merged[1].Body)
	assert.Equal(t, models.DeliverySent, merged[1].Delivery)
	assert.Equal(t, "third", merged[2].Body)
}

func TestMergeKeepsPersistedDelivery(t *testing.T) {
	persisted := []models.Message{msg(1, 2, "hello", 100)}
	persisted[0].Delivery = models.DeliveryFailed
	liveEntry := msg(1, 2, "hello", 100)
	liveEntry.Delivery = models.DeliverySent

	merged := view.Merge(persisted, []models.Message{liveEntry})

	require.Len(t, merged, 1)
	assert.Equal(t, models.DeliveryFailed, merged[0].Delivery)
}

func TestMergeOrdersByTimestampWithStableTies(t *testing.T) {
	persisted := []models.Message{
		msg(1, 2, "p-100", 100),
		msg(1, 2, "p-300", 300),
	}
	liveMsgs := []models.Message{
		msg(2, 1, "l-300", 300),
		msg(1, 2, "l-200", 200),
	}

	merged := view.Merge(persisted, liveMsgs)

	require.Len(t, merged, 4)
	assert.Equal(t, "p-100", merged[0].Body)
	assert.Equal(t, "l-200", merged[1].Body)
	assert.Equal(t, "p-300", merged[2].Body)
	assert.Equal(t, "l-300", merged[3].Body)
}

func TestScrollAnchorCompensatesForPrepend(t *testing.T) {
	var anchor view.ScrollAnchor

	anchor.Capture(1000, 40)
	offset, ok := anchor.Restore(1600)
	require.True(t, ok)
	assert.Equal(t, 640.0, offset)

	// A capture is single-use.
	_, ok = anchor.Restore(1600)
	assert.False(t, ok)
}

func TestScrollAnchorWithoutCapture(t *testing.T) {
	var anchor view.ScrollAnchor
	_, ok := anchor.Restore(500)
	assert.False(t, ok)
}

func TestConversationMessagesMergesForSelectedPeer(t *testing.T) {
	fetcher := new(mocks.FetcherMock)
	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(0)).
		Return([]models.Message{msg(2, 1, "stored", 100)}, nil)

	state := session.NewState(1)
	stream := live.NewStream()
	store := history.NewStore(fetcher, 1)
	conv := view.NewConversation(store, stream, state)

	assert.Nil(t, conv.Messages())

	state.SelectPeer(2)
	_, _, err := conv.LoadOlder(context.Background())
	require.NoError(t, err)

	stream.Append(msg(1, 2, "typed", 200))
	stream.Append(msg(1, 3, "other conversation", 300))

	got := conv.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "stored", got[0].Body)
	assert.Equal(t, "typed", got[1].Body)
	fetcher.AssertExpectations(t)
}

func TestLoadOlderSuppressesAutoScroll(t *testing.T) {
	fetcher := new(mocks.FetcherMock)
	release := make(chan struct{})
	observed := make(chan bool, 1)
	state := session.NewState(1)
	fetcher.On("FetchPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(0)).
		Run(func(args mock.Arguments) {
			observed <- state.AutoScroll()
			<-release
		}).
		Return([]models.Message{msg(2, 1, "old", 50)}, nil)

	store := history.NewStore(fetcher, 1)
	state.SelectPeer(2)
	conv := view.NewConversation(store, live.NewStream(), state)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = conv.LoadOlder(context.Background())
	}()

	assert.False(t, <-observed)
	close(release)
	<-done
	assert.True(t, state.AutoScroll())
}

func TestLoadOlderNoSelection(t *testing.T) {
	fetcher := new(mocks.FetcherMock)
	conv := view.NewConversation(history.NewStore(fetcher, 1), live.NewStream(), session.NewState(1))

	added, hasMore, err := conv.LoadOlder(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.False(t, hasMore)
	fetcher.AssertNotCalled(t, "FetchPage")
}
