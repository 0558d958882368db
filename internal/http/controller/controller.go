package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/iyhunko/dapp-marketplace/internal/config"
	"github.com/iyhunko/dapp-marketplace/internal/service"
	"github.com/iyhunko/dapp-marketplace/internal/wallet"
)

// Controller handles general HTTP requests.
type Controller struct {
	config *config.Config
}

// New creates a new Controller with the given configuration.
func New(config *config.Config) *Controller {
	return &Controller{
		config: config,
	}
}

// Ping handles the HTTP GET request for health check endpoint.
func (con *Controller) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// ErrorResponse is the body of every failed JSON API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: service.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, wallet.ErrNoProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrWalletNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidDraft):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrRequestPending), errors.Is(err, service.ErrCreateInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrTransactionRejected):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrConnectFailed),
		errors.Is(err, service.ErrCreateFailed),
		errors.Is(err, service.ErrLoadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func addFlash(c *gin.Context, message string) {
	sess := sessions.Default(c)
	sess.AddFlash(message)
	if err := sess.Save(); err != nil {
		slog.Error("Failed to save flash message", slog.Any("err", err))
	}
}

func takeFlashes(c *gin.Context) []any {
	sess := sessions.Default(c)
	flashes := sess.Flashes()
	if len(flashes) > 0 {
		if err := sess.Save(); err != nil {
			slog.Error("Failed to clear flash messages", slog.Any("err", err))
		}
	}
	return flashes
}

func redirectHome(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}
