package middleware

import (
	"net/http"

	"chwone-controlplane/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authorize checks mutating requests against the enforcer using the caller
// role, the request path and the method. Safe methods pass through.
func Authorize(e casbin.IEnforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		id := IdentityFrom(c.Request.Context())
		ok, err := e.Enforce(id.Role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			zap.L().Error("authorization check failed", zap.Error(err))
			_ = c.Error(errutil.Internal("authorization check failed", err))
			c.Abort()
			return
		}
		if !ok {
			_ = c.Error(errutil.Forbidden("role is not allowed to modify licenses", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
