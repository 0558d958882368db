package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/dapp-marketplace/internal/http/middleware"
	"github.com/iyhunko/dapp-marketplace/internal/metrics"
	"github.com/iyhunko/dapp-marketplace/internal/model"
	"github.com/iyhunko/dapp-marketplace/internal/service"
	"github.com/iyhunko/dapp-marketplace/internal/wallet"
)

// WalletController handles HTTP requests for the wallet session.
type WalletController struct {
	workspaces *service.Workspaces
}

// NewWalletController creates a new WalletController.
func NewWalletController(workspaces *service.Workspaces) *WalletController {
	return &WalletController{workspaces: workspaces}
}

// WalletResponse represents the wallet state of the caller's session.
type WalletResponse struct {
	Account      string `json:"account"`
	ShortAccount string `json:"short_account,omitempty"`
	State        string `json:"state"`
	HasProvider  bool   `json:"has_provider"`
}

// Connect handles the form POST that asks the wallet for an account.
func (wc *WalletController) Connect(c *gin.Context) {
	if _, err := wc.connect(c); err != nil {
		_ = c.Error(err)
		addFlash(c, service.UserMessage(err))
	}
	redirectHome(c)
}

// Status handles the HTTP GET request for the wallet state. A caller without a
// workspace is reported as disconnected.
func (wc *WalletController) Status(c *gin.Context) {
	w := middleware.CurrentWorkspace(c)
	if w == nil {
		c.JSON(http.StatusOK, WalletResponse{
			State:       wallet.Disconnected.String(),
			HasProvider: wc.workspaces.HasProvider(),
		})
		return
	}
	c.JSON(http.StatusOK, toWalletResponse(w))
}

// APIConnect handles the HTTP POST request that asks the wallet for an account.
func (wc *WalletController) APIConnect(c *gin.Context) {
	w, err := wc.connect(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWalletResponse(w))
}

func (wc *WalletController) connect(c *gin.Context) (*service.Workspace, error) {
	w := middleware.CurrentWorkspace(c)
	_, err := w.Session.Connect(c.Request.Context())
	metrics.WalletConnects.WithLabelValues(metrics.Result(err)).Inc()
	return w, err
}

func toWalletResponse(w *service.Workspace) WalletResponse {
	account := w.Session.Account()
	resp := WalletResponse{
		Account:     account,
		State:       w.Session.State().String(),
		HasProvider: w.Session.HasProvider(),
	}
	if account != "" {
		resp.ShortAccount = model.ShortAddress(account)
	}
	return resp
}
