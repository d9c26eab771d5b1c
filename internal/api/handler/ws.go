package handler

import (
	"directchat/backend/internal/chathub"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader checks the Origin header against AllowedOrigins; an empty list
// only admits same-host requests.
func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.AllowedOrigins, "*") || slices.Contains(h.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// ServeWebSocket authenticates and upgrades to a realtime connection.
// Browsers cannot set headers on websocket requests, so the token may also
// come in the "token" query parameter.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		header = c.Query("token")
	}
	userID, err := h.Identity.Authenticate(header)
	if err != nil {
		h.writeError(c, err)
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Log.Debug("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	lang := h.language(c)
	client := chathub.NewWebSocketClient(h.Hub, conn, userID, func(key string) string {
		return h.translate(lang, key, key)
	})
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
