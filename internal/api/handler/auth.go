package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type devTokenRequest struct {
	UserID string `json:"user_id"`
}

// DevToken signs a token for the given caller id, or for a fresh random id
// when none is given. Only routed in development mode.
func (h *Handler) DevToken(c *gin.Context) {
	var req devTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.writeError(c, badRequest("malformed request body"))
			return
		}
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = uuid.NewString()
	}

	token, err := h.Tokens.IssueToken(userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID})
}
