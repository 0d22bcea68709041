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

	"dm-service/internal/identity"
	"dm-service/internal/mocks"
	"dm-service/internal/models"
)

func setupPeerRouter(peers *PeerHandler, auth *AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", auth.Login)
	authed := r.Group("/")
	authed.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	authed.GET("/peers", peers.ListPeers)
	return r
}

func TestListPeersSuccess(t *testing.T) {
	peerRepo := new(mocks.PeerRepositoryMock)
	router := setupPeerRouter(NewPeerHandler(peerRepo),
		NewAuthHandler(peerRepo, identity.NewHMACProvider("secret"), nil))

	peerRepo.On("ListPeers", mock.Anything, 1).
		Return([]models.Peer{{ID: 2, Username: "bob"}, {ID: 3, Username: "carol"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/peers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Peers []models.Peer `json:"peers"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Peers, 2)
	assert.Equal(t, "bob", resp.Peers[0].Username)
	peerRepo.AssertExpectations(t)
}

func TestListPeersRepoError(t *testing.T) {
	peerRepo := new(mocks.PeerRepositoryMock)
	router := setupPeerRouter(NewPeerHandler(peerRepo),
		NewAuthHandler(peerRepo, identity.NewHMACProvider("secret"), nil))

	peerRepo.On("ListPeers", mock.Anything, 1).Return(([]models.Peer)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/peers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	peerRepo.AssertExpectations(t)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	peerRepo := new(mocks.PeerRepositoryMock)
	provider := identity.NewHMACProvider("secret")
	router := setupPeerRouter(NewPeerHandler(peerRepo), NewAuthHandler(peerRepo, provider, nil))

	peerRepo.On("FindOrCreateUser", mock.Anything, "alice").
		Return(models.Peer{ID: 4, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"username":"alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserID   int    `json:"user_id"`
		Username string `json:"username"`
		Token    string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4, resp.UserID)
	assert.Equal(t, "alice", resp.Username)

	userID, err := provider.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, 4, userID)
	peerRepo.AssertExpectations(t)
}

func TestLoginValidation(t *testing.T) {
	peerRepo := new(mocks.PeerRepositoryMock)
	router := setupPeerRouter(NewPeerHandler(peerRepo),
		NewAuthHandler(peerRepo, identity.NewHMACProvider("secret"), nil))

	for _, payload := range []string{`{}`, `{"username":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
}
