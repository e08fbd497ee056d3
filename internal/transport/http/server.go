package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ppinggu9/trpg-server-sub001/internal/auth"
	"github.com/ppinggu9/trpg-server-sub001/internal/config"
	"github.com/ppinggu9/trpg-server-sub001/internal/core"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/maps"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/tokens"
	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(gateway *core.Gateway, authService *auth.Service, mapService *maps.Service, tokenService *tokens.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	r.POST("/api/auth/register", apiHandlers.Register)
	r.POST("/api/auth/login", apiHandlers.Login)

	roomHandlers := NewRoomHandlers(st, logger)
	mapHandlers := NewMapHandlers(mapService, logger)
	tokenHandlers := NewTokenHandlers(tokenService, logger)

	api := r.Group("/api", AuthMiddleware(authService, logger))
	{
		api.POST("/rooms", roomHandlers.CreateRoom)
		api.GET("/rooms", roomHandlers.ListRooms)
		api.POST("/rooms/:id/join", roomHandlers.JoinRoom)

		api.POST("/maps", mapHandlers.CreateMap)
		api.GET("/maps/:id", mapHandlers.GetMap)
		api.DELETE("/maps/:id", mapHandlers.DeleteMap)
		api.GET("/maps/:id/tokens", tokenHandlers.ListTokens)

		api.POST("/tokens", tokenHandlers.CreateToken)
		api.DELETE("/tokens/:id", tokenHandlers.DeleteToken)
	}

	wsHandler := NewWSHandler(gateway, authService, logger)
	r.GET("/ws", wsHandler.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
