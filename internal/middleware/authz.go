package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reliefboard/internal/apierror"
	"reliefboard/internal/authz"
)

func RequireRoles(allowed ...int) gin.HandlerFunc {
	allowedSet := map[int]struct{}{}
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}
	return func(c *gin.Context) {
		v, exists := c.Get(CtxRoleID)
		if !exists {
			abort(c, apierror.Denied(http.StatusUnauthorized, "請先登入"))
			return
		}
		roleID, _ := v.(int)
		if _, ok := allowedSet[roleID]; !ok {
			abort(c, apierror.Denied(http.StatusForbidden, "您沒有權限執行此操作"))
			return
		}
		c.Next()
	}
}

func ReadOnlyGuard() gin.HandlerFunc {
	// observers may look but not touch
	return func(c *gin.Context) {
		roleV, _ := c.Get(CtxRoleID)
		roleID, _ := roleV.(int)
		if authz.IsReadOnly(roleID) {
			switch c.Request.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				// ok
			default:
				abort(c, apierror.Denied(http.StatusForbidden, "唯讀帳號無法修改資料"))
				return
			}
		}
		c.Next()
	}
}
