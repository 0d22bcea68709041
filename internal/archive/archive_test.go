package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/models"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSaveAndRecent(t *testing.T) {
	a := openTestArchive(t)

	msgs := []models.Message{
		{SenderID: 1, RecipientID: 2, Body: "oldest", SentAt: 100},
		{SenderID: 2, RecipientID: 1, Body: "reply", SentAt: 200},
		{SenderID: 1, RecipientID: 2, Body: "newest", SentAt: 300},
		{SenderID: 1, RecipientID: 3, Body: "other pair", SentAt: 250},
	}
	for _, m := range msgs {
		require.NoError(t, a.Save(m))
	}

	got, err := a.Recent(1, 2, 50)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "oldest", got[0].Body)
	assert.Equal(t, "reply", got[1].Body)
	assert.Equal(t, "newest", got[2].Body)
}

func TestRecentLimitKeepsNewest(t *testing.T) {
	a := openTestArchive(t)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, a.Save(models.Message{SenderID: 1, RecipientID: 2, Body: "m", SentAt: i * 100}))
	}

	got, err := a.Recent(1, 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(400), got[0].SentAt)
	assert.Equal(t, int64(500), got[1].SentAt)
}

func TestSaveIdempotentOnIdentity(t *testing.T) {
	a := openTestArchive(t)

	msg := models.Message{SenderID: 1, RecipientID: 2, Body: "hello", SentAt: 100}
	require.NoError(t, a.Save(msg))
	require.NoError(t, a.Save(msg))

	got, err := a.Recent(1, 2, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveValidation(t *testing.T) {
	a := openTestArchive(t)

	assert.Error(t, a.Save(models.Message{SenderID: 1, RecipientID: 2, SentAt: 100}))
	assert.Error(t, a.Save(models.Message{SenderID: 1, RecipientID: 2, Body: "no timestamp"}))
}
