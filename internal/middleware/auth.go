package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reliefboard/internal/apierror"
	"reliefboard/internal/utils"
)

// Context keys set by the auth middleware.
const (
	CtxEmail  = "email"
	CtxName   = "name"
	CtxRoleID = "role_id"
	CtxToken  = "token"
)

// TokenParser is satisfied by services.AuthService.
type TokenParser interface {
	ParseToken(token string) (*utils.Claims, error)
}

// AuthMiddleware requires a valid Bearer token.
func AuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		tokenStr, ok := bearerToken(c)
		if !ok {
			abort(c, apierror.Denied(http.StatusUnauthorized, "請先登入"))
			return
		}
		claims, err := parser.ParseToken(tokenStr)
		if err != nil {
			abort(c, apierror.Denied(http.StatusUnauthorized, "登入已過期，請重新登入"))
			return
		}
		setClaims(c, tokenStr, claims)
		c.Next()
	}
}

// OptionalAuth attaches the session when a valid token is present and lets
// the request through anonymously otherwise.
func OptionalAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearerToken(c); ok {
			if claims, err := parser.ParseToken(tokenStr); err == nil {
				setClaims(c, tokenStr, claims)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tokenStr := strings.TrimSpace(parts[1])
	return tokenStr, tokenStr != ""
}

func setClaims(c *gin.Context, token string, claims *utils.Claims) {
	c.Set(CtxEmail, claims.Email)
	c.Set(CtxName, claims.Name)
	c.Set(CtxRoleID, claims.RoleID)
	c.Set(CtxToken, token)
}

func abort(c *gin.Context, e *apierror.Error) {
	c.AbortWithStatusJSON(apierror.HTTPStatus(e), apierror.NewResponse(e))
}
