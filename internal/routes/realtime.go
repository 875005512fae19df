package routes

import (
	"github.com/gin-gonic/gin"

	"diagramdb/internal/handlers"
)

type RealtimeRoutes struct {
	handler *handlers.RealtimeHandler
}

func NewRealtimeRoutes(handler *handlers.RealtimeHandler) *RealtimeRoutes {
	return &RealtimeRoutes{handler: handler}
}

func (r *RealtimeRoutes) RegisterRoutes(router *gin.RouterGroup, authenticate gin.HandlerFunc) {
	diagrams := router.Group("/diagrams")
	diagrams.Use(authenticate)
	{
		diagrams.POST("/:id/realtime", r.handler.Join)
	}

	realtime := router.Group("/realtime")
	realtime.Use(authenticate)
	{
		realtime.GET("/:sessionId/participants", r.handler.Participants)
		realtime.GET("/:sessionId/cursors", r.handler.Cursors)
		realtime.POST("/:sessionId/cursor", r.handler.SendCursor)
		realtime.DELETE("/:sessionId", r.handler.Leave)
	}
}
