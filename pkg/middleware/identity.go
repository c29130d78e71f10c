package middleware

import (
	"net/http"

	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
)

// ParticipantKey is the context key every handler reads the caller's
// id from.
const ParticipantKey = "participant_id"

// Identity resolves the calling participant from the X-Participant-ID
// header, or from the participant_id query parameter for clients that
// cannot set headers (the websocket upgrade, EventSource).
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Participant-ID")
		if id == "" {
			id = c.Query(ParticipantKey)
		}
		if id == "" {
			response.FailWith(c, http.StatusUnauthorized, "missing participant identity")
			c.Abort()
			return
		}
		c.Set(ParticipantKey, id)
		c.Next()
	}
}
