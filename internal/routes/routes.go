package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/authz"
	"taskflow/internal/handlers"
	"taskflow/internal/middleware"
	"taskflow/internal/services"
)

// Handlers groups everything SetupRoutes mounts. Upload, Integrations and
// Realtime may be nil.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Users        *handlers.UserHandler
	Tasks        *handlers.TaskHandler
	Upload       *handlers.UploadHandler
	Integrations *handlers.IntegrationsHandler
	Realtime     *handlers.RealtimeHandler
}

func SetupRoutes(r *gin.Engine, h Handlers, auth services.AuthService, cookieName string) *gin.Engine {
	adminOnly := middleware.RequireRoles(authz.RoleAdmin)
	assigneeOnly := middleware.DenyRoles(authz.RoleAdmin)

	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/login", h.Auth.Login)
	r.POST("/logout", h.Auth.Logout)
	r.GET("/auth/check", h.Auth.Check)
	if h.Integrations != nil {
		r.POST("/integrations/telegram/webhook", h.Integrations.TelegramWebhook)
	}

	// ---- protected
	api := r.Group("/", middleware.AuthMiddleware(auth, cookieName))

	users := api.Group("/users")
	{
		users.GET("/me", h.Users.Me)
		users.GET("/me/stats", h.Tasks.MyStats)
		users.POST("/me/telegram-link", h.Users.TelegramLink)
		users.DELETE("/me/telegram-link", h.Users.TelegramUnlink)
		users.GET("/:id/pending-tasks", h.Tasks.UserPending)
		users.GET("/:id/assigned-tasks", h.Tasks.UserAccepted)

		users.POST("/", adminOnly, h.Users.Create)
		users.GET("/", adminOnly, h.Users.List)
		users.GET("/:id", adminOnly, h.Users.Get)
		users.PATCH("/:id", adminOnly, h.Users.Update)
		users.DELETE("/:id", adminOnly, h.Users.Delete)
	}

	tasks := api.Group("/tasks")
	{
		tasks.GET("/my-tasks", h.Tasks.MyTasks)
		tasks.GET("/pending", h.Tasks.Pending)
		tasks.GET("/:id", h.Tasks.GetByID)
		tasks.POST("/:id/status", h.Tasks.ChangeStatus)

		tasks.POST("/", adminOnly, h.Tasks.Create)
		tasks.GET("/", adminOnly, h.Tasks.List)
		tasks.GET("/stats", adminOnly, h.Tasks.Stats)
		tasks.GET("/stats/users", adminOnly, h.Tasks.StatsByUser)
		tasks.GET("/export", adminOnly, h.Tasks.Export)
		tasks.PATCH("/:id", adminOnly, h.Tasks.Update)
		tasks.DELETE("/:id", adminOnly, h.Tasks.Delete)
		tasks.GET("/:id/report", adminOnly, h.Tasks.Report)

		tasks.POST("/:id/accept", assigneeOnly, h.Tasks.Accept)
		tasks.POST("/:id/reject", assigneeOnly, h.Tasks.Reject)
		tasks.POST("/:id/submit", assigneeOnly, h.Tasks.Submit)
	}

	if h.Realtime != nil {
		api.GET("/ws/events", h.Realtime.Events)
	}

	if h.Upload != nil {
		api.POST("/upload", h.Upload.Upload)
		api.DELETE("/upload", h.Upload.Delete)
	}

	return r
}
