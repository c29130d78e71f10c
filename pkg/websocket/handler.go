package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the hub on gin routes.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Serve upgrades /ws requests. The participant id comes from the
// identity middleware.
func (h *Handler) Serve(c *gin.Context) {
	userID := c.GetString("participant_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing participant identity"})
		return
	}
	HandleWebSocket(h.hub, c.Writer, c.Request, userID)
}

// GetStats reports connection counts.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total_connections": h.hub.GetConnectionCount(),
	})
}
