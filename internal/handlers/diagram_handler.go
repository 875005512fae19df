package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"diagramdb/internal/middlewares"
	"diagramdb/internal/models"
	"diagramdb/internal/responses"
	"diagramdb/internal/services"
	"diagramdb/internal/storage"
)

type DiagramHandler struct {
	diagramService *services.DiagramService
}

func NewDiagramHandler(diagramService *services.DiagramService) *DiagramHandler {
	return &DiagramHandler{diagramService: diagramService}
}

// listOptionsFromQuery reads the hydration flags; omitted flags stay false.
func listOptionsFromQuery(c *gin.Context) storage.ListOptions {
	return storage.ListOptions{
		IncludeTables:        c.Query("include_tables") == "true",
		IncludeRelationships: c.Query("include_relationships") == "true",
		IncludeDependencies:  c.Query("include_dependencies") == "true",
		IncludeAreas:         c.Query("include_areas") == "true",
		IncludeCustomTypes:   c.Query("include_custom_types") == "true",
	}
}

// CreateDiagram handles POST /api/v1/diagrams
func (h *DiagramHandler) CreateDiagram(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	var diagram models.Diagram
	if err := c.ShouldBindJSON(&diagram); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.diagramService.CreateDiagram(c.Request.Context(), identity, &diagram); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to create diagram")
		return
	}
	responses.Success(c, http.StatusCreated, diagram, "Diagram created")
}

// ListDiagrams handles GET /api/v1/diagrams
func (h *DiagramHandler) ListDiagrams(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	diagrams, err := h.diagramService.ListDiagrams(c.Request.Context(), identity, listOptionsFromQuery(c))
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to list diagrams")
		return
	}
	responses.Success(c, http.StatusOK, diagrams, "")
}

// GetDiagram handles GET /api/v1/diagrams/:id
func (h *DiagramHandler) GetDiagram(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	diagram, err := h.diagramService.GetDiagram(c.Request.Context(), identity, c.Param("id"), listOptionsFromQuery(c))
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to get diagram")
		return
	}
	if diagram == nil {
		responses.Fail(c, http.StatusNotFound, nil, "Diagram not found")
		return
	}
	responses.Success(c, http.StatusOK, diagram, "")
}

// UpdateDiagram handles PATCH /api/v1/diagrams/:id. Only fields present in
// the body are touched; "database_edition": null clears the edition; a new
// "id" renames the diagram and rewrites every content row's reference.
func (h *DiagramHandler) UpdateDiagram(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	patch, err := diagramPatchFromBody(body)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.diagramService.UpdateDiagram(c.Request.Context(), identity, c.Param("id"), patch); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to update diagram")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Diagram updated")
}

func diagramPatchFromBody(body map[string]json.RawMessage) (storage.DiagramPatch, error) {
	var patch storage.DiagramPatch

	if raw, ok := body["id"]; ok {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return patch, err
		}
		patch.ID = &id
	}
	if raw, ok := body["name"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return patch, err
		}
		patch.Name = &name
	}
	if raw, ok := body["database_type"]; ok {
		var dbType string
		if err := json.Unmarshal(raw, &dbType); err != nil {
			return patch, err
		}
		patch.DatabaseType = &dbType
	}
	if raw, ok := body["database_edition"]; ok {
		var edition *string
		if err := json.Unmarshal(raw, &edition); err != nil {
			return patch, err
		}
		if edition == nil {
			patch.ClearDatabaseEdition = true
		} else {
			patch.DatabaseEdition = edition
		}
	}
	if raw, ok := body["updated_at"]; ok {
		var updatedAt time.Time
		if err := json.Unmarshal(raw, &updatedAt); err != nil {
			return patch, err
		}
		patch.UpdatedAt = &updatedAt
	}
	return patch, nil
}

// DeleteDiagram handles DELETE /api/v1/diagrams/:id
func (h *DiagramHandler) DeleteDiagram(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	if err := h.diagramService.DeleteDiagram(c.Request.Context(), identity, c.Param("id")); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to delete diagram")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Diagram deleted")
}
