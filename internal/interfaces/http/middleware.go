package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Identity headers set by the authenticating gateway in front of the service
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
	HeaderOrgID  = "X-Org-ID"

	actorKey = "actor"
)

// identityMiddleware builds the request's actor from gateway headers
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := entity.Actor{
			ID:    strings.TrimSpace(c.GetHeader(HeaderUserID)),
			Role:  entity.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderRole)))),
			OrgID: strings.TrimSpace(c.GetHeader(HeaderOrgID)),
		}
		if actor.ID == "" || actor.OrgID == "" || !actor.Role.IsValid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid identity headers",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) entity.Actor {
	actor, _ := c.MustGet(actorKey).(entity.Actor)
	return actor
}

// timeoutMiddleware bounds the request context
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
