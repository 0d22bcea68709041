package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

// PeerHandler serves the peer directory feeding the conversation list.
type PeerHandler struct {
	peerRepo repositories.PeerRepository
}

// NewPeerHandler builds a PeerHandler.
func NewPeerHandler(peerRepo repositories.PeerRepository) *PeerHandler {
	return &PeerHandler{peerRepo: peerRepo}
}

// ListPeers returns the peers the authenticated user can message.
func (h *PeerHandler) ListPeers(c *gin.Context) {
	userID := c.GetInt("userID")

	peers, err := h.peerRepo.ListPeers(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load peers"})
		return
	}
	if peers == nil {
		peers = []models.Peer{}
	}

	c.JSON(http.StatusOK, gin.H{"peers": peers})
}
