package handlers

import (
	"net/http"

	"SafeCircle/pkg/middleware"
	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
)

type friendPayload struct {
	FriendID string `json:"friend_id" binding:"required"`
}

// AddFriend records an accepted trusted-contact edge from the caller.
func (h *Handlers) AddFriend(c *gin.Context) {
	var payload friendPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.FailWith(c, http.StatusBadRequest, "invalid friend payload")
		return
	}

	id := c.GetString(middleware.ParticipantKey)
	if payload.FriendID == id {
		response.FailWith(c, http.StatusBadRequest, "cannot add yourself")
		return
	}
	if err := h.friends.Add(c.Request.Context(), id, payload.FriendID); err != nil {
		response.FailWith(c, http.StatusInternalServerError, "could not add friend")
		return
	}
	response.Success(c, "friend added", nil)
}

func (h *Handlers) ListFriends(c *gin.Context) {
	ids, err := h.friends.FriendIDs(c.Request.Context(), c.GetString(middleware.ParticipantKey))
	if err != nil {
		response.FailWith(c, http.StatusInternalServerError, "could not list friends")
		return
	}
	response.Success(c, "ok", ids)
}
