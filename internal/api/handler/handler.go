// Package handler exposes the chat services over HTTP and websockets.
package handler

import (
	"context"
	"directchat/backend/internal/account"
	"directchat/backend/internal/chathub"
	"directchat/backend/internal/directory"
	"directchat/backend/internal/identity"
	"directchat/backend/internal/localization"
	"directchat/backend/internal/messaging"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenIssuer signs session tokens for the development sign-in route.
type TokenIssuer interface {
	IssueToken(callerID string) (string, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler holds the services the routes call into.
type Handler struct {
	Accounts  *account.Service
	Directory *directory.Service
	Messages  *messaging.Service
	Identity  identity.Gateway
	Tokens    TokenIssuer
	Hub       *chathub.ManagerService
	Localizer *localization.Localizer
	Log       *zap.Logger

	// Dev enables POST /auth/dev-token.
	Dev            bool
	AllowedOrigins []string
	HealthChecks   map[string]HealthCheck
}

// Router builds the gin engine with middleware and every route.
func (h *Handler) Router() *gin.Engine {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestID(), AccessLog(h.Log), Recovery(h))

	r.GET("/healthz", h.Health)
	if h.Dev {
		r.POST("/auth/dev-token", h.DevToken)
	}
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", h.RequireAuth())
	{
		api.GET("/me/username", h.GetUsername)
		api.POST("/me/username", h.RegisterUsername)

		api.GET("/chats", h.ListChats)
		api.POST("/chats", h.OpenChat)
		api.GET("/chats/:id/members", h.ChatMembers)
		api.GET("/chats/:id/messages", h.GetMessages)
		api.GET("/chats/:id/last", h.LastMessage)
		api.POST("/chats/:id/messages", h.SendMessage)

		api.GET("/users", h.SearchUsers)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "route not found"})
	})
	return r
}

// Health runs the registered checks and includes hub counters.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, state := http.StatusOK, "ok"
	checks := make(map[string]string, len(h.HealthChecks))
	for name, check := range h.HealthChecks {
		if err := check(ctx); err != nil {
			h.Log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "down"
			status, state = http.StatusServiceUnavailable, "degraded"
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{"status": state, "checks": checks}
	if h.Hub != nil {
		if stats, err := h.Hub.Stats(ctx); err == nil {
			body["hub"] = stats
		}
	}
	c.JSON(status, body)
}
