package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/iyhunko/dapp-marketplace/internal/service"
)

const (
	// RequestIDHeader carries the request id in requests and responses.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	workspaceKey = "workspace"
	sessionIDKey = "sid"
)

// Recovery is a middleware that recovers from panics and returns a 500 Internal Server Error
// instead of crashing the server.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered",
					slog.Any("error", err),
					slog.String("path", c.Request.URL.Path),
					slog.String("method", c.Request.Method),
					slog.String("request_id", c.GetString(requestIDKey)),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal Server Error",
				})
			}
		}()
		c.Next()
	}
}

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// CORS allows browser clients on other origins to call the JSON API.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Logger writes one structured line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			slog.Error("HTTP request", attrs...)
			return
		}
		slog.Info("HTTP request", attrs...)
	}
}

// Workspace gives each browser a session id cookie and attaches its workspace
// to the request. It must run after sessions.Sessions.
func Workspace(workspaces *service.Workspaces) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		id, _ := sess.Get(sessionIDKey).(string)
		if id == "" {
			id = uuid.NewString()
			sess.Set(sessionIDKey, id)
			if err := sess.Save(); err != nil {
				slog.Error("Failed to save session", slog.Any("err", err))
			}
		}

		c.Set(workspaceKey, workspaces.Get(c.Request.Context(), id))
		c.Next()
	}
}

// ExistingWorkspace attaches the workspace of a browser that already has one and
// never creates a session, so cookieless callers of read-only endpoints hold no state.
// It must run after sessions.Sessions.
func ExistingWorkspace(workspaces *service.Workspaces) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := sessions.Default(c).Get(sessionIDKey).(string)
		if id != "" {
			if w, ok := workspaces.Lookup(id); ok {
				c.Set(workspaceKey, w)
			}
		}
		c.Next()
	}
}

// CurrentWorkspace returns the workspace attached by Workspace or ExistingWorkspace,
// or nil when there is none.
func CurrentWorkspace(c *gin.Context) *service.Workspace {
	v, ok := c.Get(workspaceKey)
	if !ok {
		return nil
	}
	w, _ := v.(*service.Workspace)
	return w
}
