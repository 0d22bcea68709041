package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dm-service/internal/identity"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
)

// AuthHandler issues session tokens. It fronts the identity provider for
// clients; real credential checks live in the platform's auth system.
type AuthHandler struct {
	peerRepo repositories.PeerRepository
	provider identity.Provider
	audit    *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(peerRepo repositories.PeerRepository, provider identity.Provider, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{peerRepo: peerRepo, provider: provider, audit: audit}
}

// Login resolves a username to a user and returns a signed session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is empty"})
		return
	}

	user, err := h.peerRepo.FindOrCreateUser(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}

	token, err := h.provider.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	userID := int64(user.ID)
	h.audit.Emit(c.Request.Context(), "INFO", "login username="+user.Username, requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "username": user.Username, "token": token})
}
