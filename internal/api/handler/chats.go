package handler

import (
	"directchat/backend/internal/apperror"
	"directchat/backend/internal/directory"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type openChatRequest struct {
	Username string `json:"username"`
}

type membersResponse struct {
	Kind    string             `json:"kind"`
	Label   string             `json:"label"`
	Members []directory.Member `json:"members"`
}

func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.Directory.ListChats(c.Request.Context(), callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *Handler) OpenChat(c *gin.Context) {
	var req openChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("malformed request body"))
		return
	}

	chatID, err := h.Directory.OpenOrCreateChat(c.Request.Context(), callerID(c), req.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID})
}

func (h *Handler) ChatMembers(c *gin.Context) {
	chatID, err := chatIDParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	p, err := h.Directory.ChatMembers(c.Request.Context(), callerID(c), chatID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, membersResponse{Kind: p.Kind(), Label: p.Label(), Members: p.Members()})
}

func (h *Handler) SearchUsers(c *gin.Context) {
	users, err := h.Directory.SearchUsers(c.Request.Context(), callerID(c), c.Query("q"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// chatIDParam parses the :id path segment.
func chatIDParam(c *gin.Context) (uint, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.ValidationFailed("chat_id", "error.bad_request", "chat id must be a positive integer")
	}
	return uint(id), nil
}
