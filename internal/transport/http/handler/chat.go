package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/logging"
	"docchat/internal/metrics"
	"docchat/internal/transport/http/response"
)

const streamKeepAlive = 15 * time.Second

type ChatHandler struct {
	chat    *app.ChatService
	metrics *metrics.Metrics
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func NewChatHandler(chat *app.ChatService, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{chat: chat, metrics: m}
}

func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chat.Ask(c.Request.Context(), userID, c.Param("id"), req.Question)
	if err != nil {
		response.FromError(c, err, "answer generation failed")
		return
	}
	response.OK(c, result)
}

func (h *ChatHandler) Transcript(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	turns, err := h.chat.Transcript(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.FromError(c, err, "get transcript failed")
		return
	}
	response.OK(c, turns)
}

// Stream pushes the ordered transcript as a "snapshot" server-sent event on
// connect and after every change.
func (h *ChatHandler) Stream(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	snapshots, err := h.chat.Subscribe(ctx, userID, c.Param("id"))
	if err != nil {
		response.FromError(c, err, "subscribe transcript failed")
		return
	}

	h.metrics.ChatStreamsActive.Inc()
	defer h.metrics.ChatStreamsActive.Dec()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case turns, open := <-snapshots:
			if !open {
				return false
			}
			c.SSEvent("snapshot", turns)
			return true
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				logging.FromContext(ctx).Debug("transcript stream closed", "error", err)
				return false
			}
			return true
		}
	})
}
