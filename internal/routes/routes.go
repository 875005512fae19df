package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"diagramdb/internal/handlers"
)

func RegisterRoutes(
	router *gin.Engine,
	authenticate gin.HandlerFunc,
	diagramHandler *handlers.DiagramHandler,
	contentHandler *handlers.ContentHandler,
	configHandler *handlers.ConfigHandler,
	realtimeHandler *handlers.RealtimeHandler,
) {
	api := router.Group("/api/v1")

	diagramRoutes := NewDiagramRoutes(diagramHandler, contentHandler, configHandler)
	diagramRoutes.RegisterRoutes(api, authenticate)

	configRoutes := NewConfigRoutes(configHandler)
	configRoutes.RegisterRoutes(api, authenticate)

	realtimeRoutes := NewRealtimeRoutes(realtimeHandler)
	realtimeRoutes.RegisterRoutes(api, authenticate)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
