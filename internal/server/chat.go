package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// handleChat forwards a user message to the chatbot orchestrator and
// returns its natural-language reply.
func (s *Server) handleChat(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	if s.chatter == nil {
		s.respondError(c, apperr.E(apperr.Unavailable, "chat is not configured"))
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}
	if req.Message == "" {
		s.respondError(c, apperr.E(apperr.Validation, "message is required"))
		return
	}

	reply, convID, err := s.chatter.Chat(c.Request.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply, "conversation_id": convID})
}
