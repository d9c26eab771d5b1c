package handler

import (
	"directchat/backend/internal/localization"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-Id"

	ctxRequestID = "request_id"
	ctxCallerID  = "caller_id"
	ctxLanguage  = "lang"
)

// RequestID propagates an incoming request id or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetString(ctxRequestID)),
		}
		if caller := c.GetString(ctxCallerID); caller != "" {
			fields = append(fields, zap.String("user_id", caller))
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("http_request", fields...)
			return
		}
		logger.Info("http_request", fields...)
	}
}

// Recovery turns a panic into a 500 with the standard error body.
func Recovery(h *Handler) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.writeError(c, fmt.Errorf("panic: %v", recovered))
	})
}

// RequireAuth resolves the bearer token to a caller id or rejects with 401.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, err := h.Identity.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.Set(ctxCallerID, callerID)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(ctxCallerID)
}

// language picks the response language from Accept-Language once per request.
func (h *Handler) language(c *gin.Context) string {
	if lang := c.GetString(ctxLanguage); lang != "" {
		return lang
	}
	lang := localization.DefaultLanguage
	if h.Localizer != nil {
		lang = h.Localizer.MatchLanguage(c.GetHeader("Accept-Language"))
	}
	c.Set(ctxLanguage, lang)
	return lang
}

func requestLogger(c *gin.Context, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("request_id", c.GetString(ctxRequestID)))
}
