package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"houser/internal/errors"
	"houser/internal/logger"
	"houser/internal/model"
	"houser/internal/utils"
)

const emptyMessageResponse = "How can I help you today?"

// ChatStreamer answers a chat message as a stream of frames
type ChatStreamer interface {
	StreamChat(ctx context.Context, message string, session *model.SessionContext, emit func(model.Frame) error) error
}

// ChatHandler handles conversational search requests
type ChatHandler struct {
	chat ChatStreamer
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatStreamer) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.ValidationError(c, err)
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusOK, gin.H{"response": emptyMessageResponse, "type": model.PlanInfo})
		return
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	log.Debug("chat request", "query", utils.NormalizeMessage(message))

	writer := NewFrameWriter(c.Writer, c.Writer, negotiateFormat(c.GetHeader("Accept")))

	c.Header("Content-Type", writer.ContentType())
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	err := h.chat.StreamChat(ctx, message, req.Context, writer.Write)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		log.Debug("chat client disconnected", "error", err)
	default:
		log.Warn("chat ended with error frame", "kind", errors.KindOf(err).String(), "error", err)
	}
}
