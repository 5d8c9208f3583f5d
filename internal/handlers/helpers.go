package handlers

import (
	"github.com/gin-gonic/gin"

	"reliefboard/internal/apierror"
	"reliefboard/internal/middleware"
	"reliefboard/internal/services"
)

// TaskSessions hands out the task service for the caller's session.
// *services.Registry implements it.
type TaskSessions interface {
	Anonymous() services.TaskService
	For(token, actor string) services.TaskService
	Release(token string) bool
}

// getUserAndRole reads the caller set by the auth middleware; anonymous
// callers get "" and 0.
func getUserAndRole(c *gin.Context) (email string, roleID int) {
	return c.GetString(middleware.CtxEmail), c.GetInt(middleware.CtxRoleID)
}

// actorName is how the caller is named in notifications.
func actorName(c *gin.Context) string {
	if n := c.GetString(middleware.CtxName); n != "" {
		return n
	}
	return c.GetString(middleware.CtxEmail)
}

func sessionFor(c *gin.Context, sessions TaskSessions) services.TaskService {
	token := c.GetString(middleware.CtxToken)
	if token == "" {
		return sessions.Anonymous()
	}
	return sessions.For(token, actorName(c))
}

// respondError renders err as an apierror.Response.
func respondError(c *gin.Context, err error, resource apierror.Resource) {
	e := apierror.Classify(err, resource)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apierror.HTTPStatus(e), apierror.NewResponse(e))
}

func badRequest(c *gin.Context, message string, err error) {
	respondError(c, apierror.BadRequest(message, err), apierror.ResourceNone)
}
