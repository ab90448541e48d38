package web

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"liteassistant/auth"
	"liteassistant/internal/web/api"
	"liteassistant/internal/web/middleware"
)

type WebServer struct {
	router *gin.Engine
	server *http.Server
}

func NewWebServer(addr string, authModule *auth.AuthModule, deps api.Dependencies) *WebServer {
	router := gin.Default()
	router.Use(middleware.CORS())

	middlewareManager := middleware.NewMiddlewareManager(authModule)

	api.RegisterAuthRoutes(router, authModule, middlewareManager)
	api.RegisterAutomationRoutes(router, middlewareManager, deps)
	api.RegisterScheduleRoutes(router, middlewareManager, deps)
	api.RegisterDeviceRoutes(router, middlewareManager, deps)
	api.RegisterNotificationRoutes(router, middlewareManager, deps)
	api.RegisterEventRoutes(router, middlewareManager, deps)
	api.RegisterSystemRoutes(router)

	return &WebServer{
		router: router,
		server: &http.Server{Addr: addr, Handler: router},
	}
}

// Handler exposes the router, mainly for tests
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Shutdown is called
func (ws *WebServer) Start() error {
	log.Printf("WEB: Listening on %s", ws.server.Addr)
	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}
