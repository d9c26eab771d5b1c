package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	Message string `json:"message"`
}

func (h *Handler) GetMessages(c *gin.Context) {
	chatID, err := chatIDParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	messages, err := h.Messages.GetMessages(c.Request.Context(), callerID(c), chatID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// LastMessage answers with {"message": null} for a chat without messages.
func (h *Handler) LastMessage(c *gin.Context) {
	chatID, err := chatIDParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	last, err := h.Messages.LastMessage(c.Request.Context(), callerID(c), chatID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": last})
}

func (h *Handler) SendMessage(c *gin.Context) {
	chatID, err := chatIDParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("malformed request body"))
		return
	}

	msg, err := h.Messages.SendMessage(c.Request.Context(), callerID(c), chatID, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
