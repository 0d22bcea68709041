package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dm-service/internal/history"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
)

// MessageHandler serves the persistence collaborator API: history pagination
// and the fire-and-forget record call.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	peerRepo    repositories.PeerRepository
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, peerRepo repositories.PeerRepository, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messageRepo: messageRepo, peerRepo: peerRepo, audit: audit}
}

// GetHistory returns one backward page of the conversation with the peer.
// The `before` cursor requests strictly older messages; the page comes back
// in chronological order. The same cursor always yields the same page, so a
// failed fetch is safe to re-trigger client-side.
func (h *MessageHandler) GetHistory(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("peer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}

	limit := history.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > history.DefaultPageSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	var before int64
	if raw := c.Query("before"); raw != "" {
		before, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || before < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
	}

	userID := c.GetInt("userID")
	msgs, err := h.messageRepo.HistoryPage(c.Request.Context(), userID, peerID, limit, before)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// RecordMessage durably stores an acknowledged message sent by the caller.
// Recording the same identity twice is a no-op.
func (h *MessageHandler) RecordMessage(c *gin.Context) {
	var req struct {
		RecipientID   int    `json:"recipient_id" binding:"required"`
		Body          string `json:"body" binding:"required"`
		AttachmentURL string `json:"attachment_url"`
		SentAt        int64  `json:"sent_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is empty"})
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.peerRepo.GetUser(c.Request.Context(), req.RecipientID); err != nil {
		status := http.StatusInternalServerError
		if err == repositories.ErrUserNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "unknown recipient"})
		return
	}

	msg := models.Message{
		SenderID:      userID,
		RecipientID:   req.RecipientID,
		Body:          req.Body,
		AttachmentURL: req.AttachmentURL,
		SentAt:        req.SentAt,
	}
	if err := h.messageRepo.Record(c.Request.Context(), msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record message"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		"message recorded sent_at="+strconv.FormatInt(msg.SentAt, 10),
		requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusCreated, gin.H{"recorded_at": time.Now().UnixMilli()})
}
