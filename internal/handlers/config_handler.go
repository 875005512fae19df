package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"diagramdb/internal/middlewares"
	"diagramdb/internal/models"
	"diagramdb/internal/responses"
	"diagramdb/internal/services"
)

type ConfigHandler struct {
	diagramService *services.DiagramService
}

func NewConfigHandler(diagramService *services.DiagramService) *ConfigHandler {
	return &ConfigHandler{diagramService: diagramService}
}

// GetConfig handles GET /api/v1/config
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	settings, err := h.diagramService.GetConfig(c.Request.Context(), identity)
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to get config")
		return
	}
	responses.Success(c, http.StatusOK, settings, "")
}

// UpdateConfig handles PATCH /api/v1/config. Supplied settings merge into
// the existing blob.
func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	var settings models.Snapshot
	if err := c.ShouldBindJSON(&settings); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.diagramService.UpdateConfig(c.Request.Context(), identity, settings); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to update config")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Config updated")
}

// GetFilter handles GET /api/v1/diagrams/:id/filter
func (h *ConfigHandler) GetFilter(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	filter, err := h.diagramService.GetDiagramFilter(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to get diagram filter")
		return
	}
	if filter == nil {
		responses.Fail(c, http.StatusNotFound, nil, "Diagram filter not found")
		return
	}
	responses.Success(c, http.StatusOK, filter, "")
}

// PutFilter handles PUT /api/v1/diagrams/:id/filter (idempotent upsert).
func (h *ConfigHandler) PutFilter(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	var filter models.Snapshot
	if err := c.ShouldBindJSON(&filter); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.diagramService.UpdateDiagramFilter(c.Request.Context(), identity, c.Param("id"), filter); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to update diagram filter")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Diagram filter updated")
}

// DeleteFilter handles DELETE /api/v1/diagrams/:id/filter
func (h *ConfigHandler) DeleteFilter(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	if err := h.diagramService.DeleteDiagramFilter(c.Request.Context(), identity, c.Param("id")); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to delete diagram filter")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Diagram filter deleted")
}
