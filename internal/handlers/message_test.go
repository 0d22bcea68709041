package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/history"
	"dm-service/internal/mocks"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/messages/:peer_id", handler.GetHistory)
	r.POST("/messages", handler.RecordMessage)
	return r
}

func TestGetHistorySuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(messageRepo, new(mocks.PeerRepositoryMock), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("HistoryPage", mock.Anything, 1, 2, 20, int64(500)).
		Return([]models.Message{{SenderID: 2, RecipientID: 1, Body: "hi", SentAt: 100}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/2?limit=20&before=500", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hi", resp.Messages[0].Body)
	messageRepo.AssertExpectations(t)
}

func TestGetHistoryDefaultLimit(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(messageRepo, new(mocks.PeerRepositoryMock), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("HistoryPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(0)).
		Return(([]models.Message)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)
	messageRepo.AssertExpectations(t)
}

func TestGetHistoryInvalidPeerID(t *testing.T) {
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.PeerRepositoryMock), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/messages/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHistoryInvalidCursor(t *testing.T) {
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.PeerRepositoryMock), nil)
	router := setupMessageRouter(handler)

	for _, query := range []string{"before=abc", "before=-5", "limit=0", "limit=500"} {
		req := httptest.NewRequest(http.MethodGet, "/messages/2?"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestGetHistoryRepoError(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(messageRepo, new(mocks.PeerRepositoryMock), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("HistoryPage", mock.Anything, 1, 2, history.DefaultPageSize, int64(0)).
		Return(([]models.Message)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestRecordMessageSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	peerRepo := new(mocks.PeerRepositoryMock)
	handler := NewMessageHandler(messageRepo, peerRepo, nil)
	router := setupMessageRouter(handler)

	peerRepo.On("GetUser", mock.Anything, 2).Return(models.Peer{ID: 2, Username: "bob"}, nil).Once()
	messageRepo.On("Record", mock.Anything, models.Message{
		SenderID: 1, RecipientID: 2, Body: "hello", SentAt: 1700000000000,
	}).Return(nil).Once()

	body := bytes.NewBufferString(`{"recipient_id":2,"body":"hello","sent_at":1700000000000}`)
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	peerRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestRecordMessageUnknownRecipient(t *testing.T) {
	peerRepo := new(mocks.PeerRepositoryMock)
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), peerRepo, nil)
	router := setupMessageRouter(handler)

	peerRepo.On("GetUser", mock.Anything, 9).Return(models.Peer{}, repositories.ErrUserNotFound).Once()

	body := bytes.NewBufferString(`{"recipient_id":9,"body":"hello","sent_at":100}`)
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	peerRepo.AssertExpectations(t)
}

func TestRecordMessageValidation(t *testing.T) {
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.PeerRepositoryMock), nil)
	router := setupMessageRouter(handler)

	for _, payload := range []string{
		`{"body":"hello","sent_at":100}`,
		`{"recipient_id":2,"sent_at":100}`,
		`{"recipient_id":2,"body":"hello"}`,
		`{"recipient_id":2,"body":"   ","sent_at":100}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
}

func TestRecordMessageRepoError(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	peerRepo := new(mocks.PeerRepositoryMock)
	handler := NewMessageHandler(messageRepo, peerRepo, nil)
	router := setupMessageRouter(handler)

	peerRepo.On("GetUser", mock.Anything, 2).Return(models.Peer{ID: 2}, nil).Once()
	messageRepo.On("Record", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	body := bytes.NewBufferString(`{"recipient_id":2,"body":"hello","sent_at":100}`)
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	messageRepo.AssertExpectations(t)
}
