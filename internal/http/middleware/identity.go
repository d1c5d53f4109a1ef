package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/http/response"
)

const (
	tenantIDKey  = "tenant_id"
	creatorIDKey = "creator_id"
)

// RequireIdentity resolves the calling tenant and creator from gateway
// headers. Authentication itself happens upstream; this service only needs
// the identity for ownership checks and knowledge-base scoping.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := uuid.Parse(c.GetHeader("X-Tenant-ID"))
		if err != nil || tenant == uuid.Nil {
			response.RespondError(c, http.StatusUnauthorized, "missing_tenant", nil)
			c.Abort()
			return
		}
		creator, err := strconv.ParseInt(c.GetHeader("X-Creator-ID"), 10, 64)
		if err != nil || creator <= 0 {
			response.RespondError(c, http.StatusUnauthorized, "missing_creator", nil)
			c.Abort()
			return
		}
		c.Set(tenantIDKey, tenant)
		c.Set(creatorIDKey, creator)
		c.Next()
	}
}

func TenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(tenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func CreatorID(c *gin.Context) int64 {
	if v, ok := c.Get(creatorIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
