package routes

import (
	"github.com/gin-gonic/gin"

	"diagramdb/internal/handlers"
)

type ConfigRoutes struct {
	handler *handlers.ConfigHandler
}

func NewConfigRoutes(handler *handlers.ConfigHandler) *ConfigRoutes {
	return &ConfigRoutes{handler: handler}
}

func (r *ConfigRoutes) RegisterRoutes(router *gin.RouterGroup, authenticate gin.HandlerFunc) {
	config := router.Group("/config")
	config.Use(authenticate)
	{
		config.GET("", r.handler.GetConfig)
		config.PATCH("", r.handler.UpdateConfig)
	}
}
