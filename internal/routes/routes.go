package routes

import (
	"github.com/gin-gonic/gin"

	"reliefboard/internal/authz"
	"reliefboard/internal/handlers"
	"reliefboard/internal/middleware"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Tasks   *handlers.TaskHandler
	Map     *handlers.MapHandler
	Contact *handlers.ContactHandler
	Export  *handlers.ExportHandler
	Events  *handlers.EventsHandler
	Health  *handlers.HealthHandler
}

func SetupRoutes(r *gin.Engine, h Handlers, tokens middleware.TokenParser) *gin.Engine {
	// ---- public
	r.GET("/healthz", h.Health.Health)
	r.POST("/login", h.Auth.Login)
	r.GET("/ws", h.Events.Serve)
	r.GET("/contacts", h.Contact.List)
	r.POST("/contacts/parse", h.Contact.Parse)
	r.GET("/map/placemarks", h.Map.Placemarks)

	// public reads use the caller's session when a token is sent
	public := r.Group("/", middleware.OptionalAuth(tokens))
	{
		public.GET("/tasks", h.Tasks.List)
		public.GET("/tasks/available", h.Tasks.Available)
		public.GET("/tasks/statistics", h.Tasks.Statistics)
		public.GET("/tasks/export.pdf", h.Export.TaskSheet)
		public.GET("/tasks/:id", h.Tasks.GetByID)
		public.GET("/tasks/:id/claims", h.Tasks.Claims)
		public.GET("/tasks/:id/activity-log", h.Tasks.ActivityLog)
		public.GET("/tasks/:id/conflicts", h.Tasks.Conflicts)
	}

	// ---- protected
	protected := r.Group("/", middleware.AuthMiddleware(tokens), middleware.ReadOnlyGuard())
	{
		protected.POST("/logout", h.Auth.Logout)
		protected.POST("/tasks/claim", h.Tasks.ClaimByRequest)
		protected.POST("/tasks/:id/claim", h.Tasks.Claim)
		protected.GET("/tasks/claims/my", h.Tasks.MyClaims)
		protected.GET("/tasks/history/my", h.Tasks.MyHistory)
		protected.PUT("/claims/:id/status", h.Tasks.UpdateClaimStatus)
	}

	// ---- coordinators
	coord := protected.Group("/", middleware.RequireRoles(authz.RoleCoordinator, authz.RoleAdmin))
	{
		coord.POST("/tasks", h.Tasks.Create)
		coord.PUT("/tasks/:id", h.Tasks.Update)
		coord.DELETE("/tasks/:id", h.Tasks.Delete)
		coord.POST("/tasks/:id/approve", h.Tasks.Approve)
		coord.GET("/tasks/pending-approval", h.Tasks.PendingApproval)
	}
	return r
}
