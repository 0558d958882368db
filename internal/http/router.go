package http

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/iyhunko/dapp-marketplace/internal/config"
	"github.com/iyhunko/dapp-marketplace/internal/http/controller"
	"github.com/iyhunko/dapp-marketplace/internal/http/middleware"
	"github.com/iyhunko/dapp-marketplace/internal/http/views"
	"github.com/iyhunko/dapp-marketplace/internal/service"
)

// SessionCookieName is the cookie that identifies a browser session.
const SessionCookieName = "marketplace_session"

// InitRouter registers the page, the JSON API and the middleware on server.
func InitRouter(conf *config.Config, server *gin.Engine, workspaces *service.Workspaces) (*gin.Engine, error) {
	tmpl, err := views.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load views: %w", err)
	}
	server.SetHTMLTemplate(tmpl)
	server.MaxMultipartMemory = controller.MaxImageSize

	ctr := controller.New(conf)
	productCtr := controller.NewProductController()
	walletCtr := controller.NewWalletController(workspaces)

	server.Use(middleware.RequestID())
	server.Use(middleware.Logger())
	// Apply recovery middleware globally to prevent panics from crashing the server
	server.Use(middleware.Recovery())
	server.Use(middleware.CORS())

	server.GET("/ping", ctr.Ping)

	store := cookie.NewStore([]byte(conf.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})

	withSession := server.Group("")
	withSession.Use(sessions.Sessions(SessionCookieName, store))

	// read-only status must not mint a workspace for every cookieless caller
	withSession.GET("/api/wallet", middleware.ExistingWorkspace(workspaces), walletCtr.Status)

	app := withSession.Group("")
	app.Use(middleware.Workspace(workspaces))
	{
		app.GET("/", productCtr.Index)
		app.POST("/wallet/connect", walletCtr.Connect)
		app.POST("/products", productCtr.Create)
	}

	api := app.Group("/api")
	{
		api.POST("/wallet/connect", walletCtr.APIConnect)
		api.GET("/products", productCtr.List)
		api.POST("/products", productCtr.APICreate)
	}

	return server, nil
}
