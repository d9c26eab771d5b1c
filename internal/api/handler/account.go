package handler

import (
	"directchat/backend/internal/validation"
	"net/http"

	"github.com/gin-gonic/gin"
)

type usernameRequest struct {
	Username string `json:"username"`
}

type usernameResponse struct {
	Username   string `json:"username,omitempty"`
	Registered bool   `json:"registered"`
}

func (h *Handler) GetUsername(c *gin.Context) {
	name, ok, err := h.Accounts.GetUsername(c.Request.Context(), callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, usernameResponse{Username: name, Registered: ok})
}

func (h *Handler) RegisterUsername(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, badRequest("malformed request body"))
		return
	}

	if err := h.Accounts.RegisterUsername(c.Request.Context(), callerID(c), req.Username); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, usernameResponse{
		Username:   validation.NormalizeUsername(req.Username),
		Registered: true,
	})
}
