package handlers

import (
	"net/http"
	"time"

	"SafeCircle/pkg/middleware"
	"SafeCircle/pkg/presence"
	"SafeCircle/pkg/response"
	"SafeCircle/pkg/sse"

	"github.com/gin-gonic/gin"
)

type locationReport struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	ObservedAt *time.Time `json:"observed_at"`
}

// ReportLocation accepts a device position sample for the caller. A
// participant can only ever report their own position.
func (h *Handlers) ReportLocation(c *gin.Context) {
	var report locationReport
	if err := c.ShouldBindJSON(&report); err != nil {
		response.FailWith(c, http.StatusBadRequest, "invalid location payload")
		return
	}

	observedAt := time.Now()
	if report.ObservedAt != nil {
		observedAt = *report.ObservedAt
	}

	id := c.GetString(middleware.ParticipantKey)
	pos := presence.Position{Latitude: report.Latitude, Longitude: report.Longitude}
	if err := h.presence.Update(c.Request.Context(), id, pos, observedAt); err != nil {
		response.FailWith(c, http.StatusInternalServerError, "could not record location")
		return
	}
	response.Success(c, "location recorded", nil)
}

func (h *Handlers) GetPresence(c *gin.Context) {
	rec, ok := h.presence.Get(c.Param("id"))
	if !ok {
		response.FailWith(c, http.StatusNotFound, "no known position")
		return
	}
	response.Success(c, "ok", rec)
}

// WatchPresence streams a participant's position updates, starting
// with the last known one.
func (h *Handlers) WatchPresence(c *gin.Context) {
	sub := h.presence.Subscribe(c.Param("id"))
	defer sub.Unsubscribe()
	sse.Stream(c, "presence", sub.Updates(), 0)
}
