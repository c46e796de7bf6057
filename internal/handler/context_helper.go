package handler

import "github.com/gin-gonic/gin"

// actorFromContext returns the acting profile id the gateway attached to the
// request. Session handling lives upstream; this service only needs the id.
func actorFromContext(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor-ID"); actor != "" {
		return actor
	}
	return c.GetString("actor_id")
}
