package handlers

import (
	"net/http"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/middleware"
	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type eventPayload struct {
	ID       string    `json:"id"`
	Title    string    `json:"title" binding:"required"`
	OccursAt time.Time `json:"occurs_at" binding:"required"`
}

// ListEvents returns the shared calendar and re-plans a reminder for
// every entry, so reopening the list after edits converges the job
// table on the current occurrence times.
func (h *Handlers) ListEvents(c *gin.Context) {
	events, err := h.events.List(c.Request.Context())
	if err != nil {
		response.FailWith(c, http.StatusInternalServerError, "could not list events")
		return
	}
	if err := h.planner.PlanAll(c.Request.Context(), events); err != nil {
		logger.Warn("reminder planning incomplete", zap.Error(err))
	}
	response.Success(c, "ok", events)
}

// SaveEvent creates or updates an entry and replaces its reminder.
func (h *Handlers) SaveEvent(c *gin.Context) {
	var payload eventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.FailWith(c, http.StatusBadRequest, "invalid event payload")
		return
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	event := models.Event{
		ID:       payload.ID,
		OwnerID:  c.GetString(middleware.ParticipantKey),
		Title:    payload.Title,
		OccursAt: payload.OccursAt,
	}
	if err := h.events.Upsert(c.Request.Context(), &event); err != nil {
		response.FailWith(c, http.StatusInternalServerError, "could not save event")
		return
	}
	if err := h.planner.PlanReminder(c.Request.Context(), event); err != nil {
		logger.Warn("reminder planning failed", zap.String("event", event.ID), zap.Error(err))
	}
	response.Success(c, "event saved", event)
}

func (h *Handlers) GetEvent(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			response.FailWith(c, http.StatusNotFound, "event not found")
			return
		}
		response.FailWith(c, http.StatusInternalServerError, "could not load event")
		return
	}
	response.Success(c, "ok", event)
}
