package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"diagramdb/internal/middlewares"
	"diagramdb/internal/models"
	"diagramdb/internal/responses"
	"diagramdb/internal/services"
	"diagramdb/internal/storage"
)

// ContentHandler serves the per-kind sub-entity endpoints. Each route group
// is registered once per content kind; the kind arrives bound into the
// handler closure, never parsed from the path.
type ContentHandler struct {
	diagramService *services.DiagramService
}

func NewContentHandler(diagramService *services.DiagramService) *ContentHandler {
	return &ContentHandler{diagramService: diagramService}
}

// Add handles POST /api/v1/diagrams/:id/<kind>
func (h *ContentHandler) Add(kind storage.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middlewares.Identity(c)
		if identity == nil {
			responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}

		var entity models.Snapshot
		if err := c.ShouldBindJSON(&entity); err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
			return
		}

		if err := h.diagramService.AddContent(c.Request.Context(), identity, kind, c.Param("id"), entity); err != nil {
			responses.Fail(c, http.StatusInternalServerError, err, "Failed to add entity")
			return
		}
		responses.Success(c, http.StatusCreated, entity, "Entity added")
	}
}

// Put handles PUT /api/v1/diagrams/:id/<kind> (idempotent upsert).
func (h *ContentHandler) Put(kind storage.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middlewares.Identity(c)
		if identity == nil {
			responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}

		var entity models.Snapshot
		if err := c.ShouldBindJSON(&entity); err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
			return
		}

		if err := h.diagramService.PutContent(c.Request.Context(), identity, kind, c.Param("id"), entity); err != nil {
			responses.Fail(c, http.StatusInternalServerError, err, "Failed to put entity")
			return
		}
		responses.Success(c, http.StatusOK, entity, "Entity stored")
	}
}

// List handles GET /api/v1/diagrams/:id/<kind>
func (h *ContentHandler) List(kind storage.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middlewares.Identity(c)
		if identity == nil {
			responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}

		entities, err := h.diagramService.ListContent(c.Request.Context(), identity, kind, c.Param("id"))
		if err != nil {
			responses.Fail(c, http.StatusInternalServerError, err, "Failed to list entities")
			return
		}
		responses.Success(c, http.StatusOK, entities, "")
	}
}

// Get handles GET /api/v1/diagrams/:id/<kind>/:entityId
func (h *ContentHandler) Get(kind storage.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middlewares.Identity(c)
		if identity == nil {
			responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}

		entity, err := h.diagramService.GetContent(c.Request.Context(), identity, kind, c.Param("id"), c.Param("entityId"))
		if err != nil {
			responses.Fail(c, http.StatusInternalServerError, err, "Failed to get entity")
			return
		}
		if entity == nil {
			responses.Fail(c, http.StatusNotFound, nil, "Entity not found")
			return
		}
		responses.Success(c, http.StatusOK, entity, "")
	}
}

// Update handles PATCH /api/v1/diagrams/:id/<kind>/:entityId with
// merge-patch semantics: supplied fields overwrite, absent fields survive.
func (h *ContentHandler) Update(kind storage.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middlewares.Identity(c)
		if identity == nil {
			responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}

		var patch models.Snapshot
		if err := c.ShouldBindJSON(&patch); err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
			return
		}

		if err := h.diagramService.UpdateContent(c.Request.Context(), identity, kind, c.Param("entityId"), patch); err != nil {
			responses.Fail(c, http.StatusInternalServerError, err, "Failed to update entity")
			return
		}
		responses.Success(c, http.StatusOK, nil, "Entity updated")
	}
}

// Delete handles DELETE /api/v1/diagrams/:id/<kind>/:entityId
func (h *ContentHandler) Delete(kind storage.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middlewares.Identity(c)
		if identity == nil {
			responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}

		if err := h.diagramService.DeleteContent(c.Request.Context(), identity, kind, c.Param("id"), c.Param("entityId")); err != nil {
			responses.Fail(c, http.StatusInternalServerError, err, "Failed to delete entity")
			return
		}
		responses.Success(c, http.StatusOK, nil, "Entity deleted")
	}
}

// DeleteAll handles DELETE /api/v1/diagrams/:id/<kind>
func (h *ContentHandler) DeleteAll(kind storage.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middlewares.Identity(c)
		if identity == nil {
			responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}

		if err := h.diagramService.DeleteDiagramContent(c.Request.Context(), identity, kind, c.Param("id")); err != nil {
			responses.Fail(c, http.StatusInternalServerError, err, "Failed to delete entities")
			return
		}
		responses.Success(c, http.StatusOK, nil, "Entities deleted")
	}
}
