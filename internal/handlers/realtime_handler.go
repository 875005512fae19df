package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"diagramdb/internal/middlewares"
	"diagramdb/internal/responses"
	"diagramdb/internal/services"
)

type RealtimeHandler struct {
	realtimeService *services.RealtimeService
}

func NewRealtimeHandler(realtimeService *services.RealtimeService) *RealtimeHandler {
	return &RealtimeHandler{realtimeService: realtimeService}
}

// Join handles POST /api/v1/diagrams/:id/realtime
func (h *RealtimeHandler) Join(c *gin.Context) {
	identity := middlewares.Identity(c)
	if identity == nil {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	session, err := h.realtimeService.Join(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to join realtime session")
		return
	}
	responses.Success(c, http.StatusCreated, gin.H{
		"session_id": session.ID,
		"diagram_id": session.DiagramID,
	}, "Session joined")
}

// Participants handles GET /api/v1/realtime/:sessionId/participants
func (h *RealtimeHandler) Participants(c *gin.Context) {
	participants, err := h.realtimeService.Participants(c.Param("sessionId"))
	if err != nil {
		responses.Fail(c, http.StatusNotFound, err, "Unknown session")
		return
	}
	responses.Success(c, http.StatusOK, participants, "")
}

// Cursors handles GET /api/v1/realtime/:sessionId/cursors
func (h *RealtimeHandler) Cursors(c *gin.Context) {
	cursors, err := h.realtimeService.Cursors(c.Param("sessionId"))
	if err != nil {
		responses.Fail(c, http.StatusNotFound, err, "Unknown session")
		return
	}
	responses.Success(c, http.StatusOK, cursors, "")
}

// SendCursor handles POST /api/v1/realtime/:sessionId/cursor
func (h *RealtimeHandler) SendCursor(c *gin.Context) {
	var body struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.realtimeService.SendCursor(c.Request.Context(), c.Param("sessionId"), body.X, body.Y); err != nil {
		responses.Fail(c, http.StatusNotFound, err, "Unknown session")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Cursor sent")
}

// Leave handles DELETE /api/v1/realtime/:sessionId
func (h *RealtimeHandler) Leave(c *gin.Context) {
	if err := h.realtimeService.Leave(c.Request.Context(), c.Param("sessionId")); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to leave session")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Session left")
}
