package routes

import (
	"github.com/gin-gonic/gin"

	"diagramdb/internal/handlers"
	"diagramdb/internal/storage"
)

// contentPaths maps each content kind to its URL segment.
var contentPaths = map[string]storage.ContentKind{
	"tables":        storage.KindTable,
	"relationships": storage.KindRelationship,
	"dependencies":  storage.KindDependency,
	"areas":         storage.KindArea,
	"custom-types":  storage.KindCustomType,
}

type DiagramRoutes struct {
	diagramHandler *handlers.DiagramHandler
	contentHandler *handlers.ContentHandler
	configHandler  *handlers.ConfigHandler
}

func NewDiagramRoutes(
	diagramHandler *handlers.DiagramHandler,
	contentHandler *handlers.ContentHandler,
	configHandler *handlers.ConfigHandler,
) *DiagramRoutes {
	return &DiagramRoutes{
		diagramHandler: diagramHandler,
		contentHandler: contentHandler,
		configHandler:  configHandler,
	}
}

func (r *DiagramRoutes) RegisterRoutes(router *gin.RouterGroup, authenticate gin.HandlerFunc) {
	diagrams := router.Group("/diagrams")
	diagrams.Use(authenticate)
	{
		diagrams.POST("", r.diagramHandler.CreateDiagram)
		diagrams.GET("", r.diagramHandler.ListDiagrams)
		diagrams.GET("/:id", r.diagramHandler.GetDiagram)
		diagrams.PATCH("/:id", r.diagramHandler.UpdateDiagram)
		diagrams.DELETE("/:id", r.diagramHandler.DeleteDiagram)

		diagrams.GET("/:id/filter", r.configHandler.GetFilter)
		diagrams.PUT("/:id/filter", r.configHandler.PutFilter)
		diagrams.DELETE("/:id/filter", r.configHandler.DeleteFilter)

		for path, kind := range contentPaths {
			diagrams.POST("/:id/"+path, r.contentHandler.Add(kind))
			diagrams.PUT("/:id/"+path, r.contentHandler.Put(kind))
			diagrams.GET("/:id/"+path, r.contentHandler.List(kind))
			diagrams.DELETE("/:id/"+path, r.contentHandler.DeleteAll(kind))
			diagrams.GET("/:id/"+path+"/:entityId", r.contentHandler.Get(kind))
			diagrams.PATCH("/:id/"+path+"/:entityId", r.contentHandler.Update(kind))
			diagrams.DELETE("/:id/"+path+"/:entityId", r.contentHandler.Delete(kind))
		}
	}
}
