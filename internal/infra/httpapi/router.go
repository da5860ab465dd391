package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"community_activity_backend/internal/app"
	"community_activity_backend/internal/domain/account"
	"community_activity_backend/internal/infra/realtime"
)

// Server wires the application services to the HTTP surface.
type Server struct {
	auth          *app.AuthService
	tasks         *app.TaskService
	attendance    *app.AttendanceService
	notifications *app.NotificationConfigService
	admin         *app.AdminService
	dispatch      *app.DispatchService
	hub           *realtime.Hub
	logger        *logrus.Logger
	jwtSecret     string
}

func NewServer(
	auth *app.AuthService,
	tasks *app.TaskService,
	attendanceSvc *app.AttendanceService,
	notifications *app.NotificationConfigService,
	admin *app.AdminService,
	dispatch *app.DispatchService,
	hub *realtime.Hub,
	logger *logrus.Logger,
	jwtSecret string,
) *Server {
	return &Server{
		auth:          auth,
		tasks:         tasks,
		attendance:    attendanceSvc,
		notifications: notifications,
		admin:         admin,
		dispatch:      dispatch,
		hub:           hub,
		logger:        logger,
		jwtSecret:     jwtSecret,
	}
}

// Router builds the gin engine with all routes registered. The caller owns
// the http.Server around it.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.GET("/verify", s.handleVerifyEmail)
		auth.PUT("/push-token", AuthRequired(s.jwtSecret), s.handleSetPushToken)
	}

	tasks := api.Group("/tasks")
	{
		tasks.GET("/promoted", s.handleListPromoted)
		tasks.GET("/:id", AuthOptional(s.jwtSecret), s.handleGetTask)

		authed := tasks.Group("", AuthRequired(s.jwtSecret))
		authed.POST("", s.handleCreateTask)
		authed.GET("", s.handleListOwnTasks)
		authed.GET("/others", s.handleListOtherTasks)
		authed.PUT("/:id", s.handleUpdateTask)
		authed.DELETE("/:id", s.handleDeleteTask)
	}

	attend := api.Group("/attendance")
	{
		attend.POST("/:activityId", AuthOptional(s.jwtSecret), s.handleConfirmAttendance)
		attend.DELETE("/:activityId", AuthOptional(s.jwtSecret), s.handleCancelAttendance)
		attend.GET("/:activityId/check", AuthOptional(s.jwtSecret), s.handleCheckMembership)

		authed := attend.Group("", AuthRequired(s.jwtSecret))
		authed.GET("/:activityId/attendees", s.handleListAttendees)
		authed.GET("/:activityId/attendees/export", s.handleExportAttendees)
		authed.GET("/mine", s.handleListOwnAttendance)
		authed.PUT("/records/:recordId", s.handleUpdateAttendanceContact)
		authed.DELETE("/records/:recordId", s.handleRemoveAttendance)
	}

	notif := api.Group("/notifications", AuthRequired(s.jwtSecret))
	{
		notif.POST("", s.handleUpsertNotification)
		notif.GET("", s.handleListNotifications)
		notif.DELETE("/:id", s.handleDeleteNotification)
	}

	admin := api.Group("/admin",
		AuthRequired(s.jwtSecret),
		RequireRole(string(account.RoleAdmin), string(account.RoleSuperAdmin)))
	{
		admin.GET("/activities", s.handleAdminListActivities)
		admin.PUT("/activities/:id/approve", s.handleAdminApprove)
		admin.PUT("/activities/:id/reject", s.handleAdminReject)
		admin.PUT("/activities/:id/promotion", s.handleAdminSetPromotion)
		admin.GET("/attendance", s.handleAdminAttendanceOverview)
		admin.DELETE("/attendance/:recordId", s.handleAdminRemoveAttendance)
		admin.PUT("/accounts/:id/active", s.handleAdminSetAccountActive)
		admin.POST("/dispatch/run", s.handleAdminRunDispatch)
	}

	router.GET("/ws", AuthRequired(s.jwtSecret), s.handleWebsocket)

	return router
}
