package handlers

import (
	"net/http"

	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/middleware"
	"SafeCircle/pkg/response"
	"SafeCircle/pkg/sse"

	"github.com/gin-gonic/gin"
)

// TriggerSos starts the caller's countdown. Already counting or an
// active session makes this a no-op, mirroring a repeated button press.
func (h *Handlers) TriggerSos(c *gin.Context) {
	coord := h.coordinators.For(c.GetString(middleware.ParticipantKey))
	if err := coord.Trigger(c.Request.Context()); err != nil {
		response.FailWith(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, "sos triggered", coord.Snapshot())
}

// CancelSos stops the countdown, or marks a fired session safe.
func (h *Handlers) CancelSos(c *gin.Context) {
	coord := h.coordinators.For(c.GetString(middleware.ParticipantKey))
	if err := coord.Cancel(c.Request.Context()); err != nil {
		response.FailWith(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, "sos cancelled", coord.Snapshot())
}

func (h *Handlers) SosState(c *gin.Context) {
	coord := h.coordinators.For(c.GetString(middleware.ParticipantKey))
	response.Success(c, "ok", coord.Snapshot())
}

// WatchSos streams countdown and state changes as server-sent events.
func (h *Handlers) WatchSos(c *gin.Context) {
	coord := h.coordinators.For(c.GetString(middleware.ParticipantKey))
	ch, stop := coord.Watch()
	defer stop()
	sse.Stream(c, "sos", ch, 0)
}

func (h *Handlers) ListSosSessions(c *gin.Context) {
	requester := c.DefaultQuery("requester", c.GetString(middleware.ParticipantKey))
	sessions, err := h.sessions.ListByRequester(c.Request.Context(), requester)
	if err != nil {
		response.FailWith(c, http.StatusInternalServerError, "could not list sessions")
		return
	}
	response.Success(c, "ok", sessions)
}

func (h *Handlers) GetSosSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			response.FailWith(c, http.StatusNotFound, "session not found")
			return
		}
		response.FailWith(c, http.StatusInternalServerError, "could not load session")
		return
	}
	response.Success(c, "ok", session)
}
