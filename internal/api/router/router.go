package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"volunteer-hub/config"
	"volunteer-hub/internal/api/handler"
	"volunteer-hub/internal/api/middleware"
	"volunteer-hub/pkg/jwt"
)

// Options 路由可选依赖，均可为 nil
type Options struct {
	Blacklist middleware.TokenBlacklist
	Limiter   middleware.RateLimiter
	// Metrics 为 nil 时不暴露 /metrics
	Metrics http.Handler
	// Ready 就绪检查，返回错误时 /health 报告 503
	Ready func() error
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, opts Options, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		if opts.Ready != nil {
			if err := opts.Ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	staff := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleCoordinator)
	adminOnly := middleware.RoleAuth(jwt.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, opts.Blacklist))
	v1.Use(middleware.RateLimit(opts.Limiter, cfg.Server.RateLimit, time.Minute))
	{
		// 活动模块
		events := v1.Group("/events")
		{
			events.GET("", h.Event.ListEvents)
			events.POST("", staff, h.Event.CreateEvent)
			events.GET("/:id", h.Event.GetEvent)
			events.PUT("/:id/status", staff, h.Event.UpdateStatus)

			events.GET("/:id/matches", staff, h.Match.VolunteersForEvent)

			events.POST("/:id/assignments", staff, h.Assignment.CreateAssignment)
			events.GET("/:id/assignments", staff, h.Assignment.ListByEvent)

			events.POST("/:id/check-in", h.Attendance.CheckIn)
			events.POST("/:id/check-out", h.Attendance.CheckOut)
			events.PUT("/:id/attendance/:volunteer_id", staff, h.Attendance.UpdateAttendance)
			events.POST("/:id/no-show/:volunteer_id", staff, h.Attendance.MarkNoShow)
			events.POST("/:id/finalize", adminOnly, h.Attendance.FinalizeEvent)
			events.GET("/:id/attendance", staff, h.Attendance.GetEventAttendance)
			events.GET("/:id/attendance/:volunteer_id", h.Attendance.GetParticipation)
		}

		// 志愿者模块（志愿者本人可访问自己的数据，handler 层判定）
		volunteers := v1.Group("/volunteers")
		{
			volunteers.GET("", staff, h.Volunteer.ListVolunteers)
			volunteers.POST("", staff, h.Volunteer.CreateVolunteer)
			volunteers.GET("/:id", h.Volunteer.GetVolunteer)
			volunteers.PUT("/:id/active", adminOnly, h.Volunteer.SetActive)
			volunteers.PUT("/:id/skills", h.Volunteer.UpdateSkills)
			volunteers.PUT("/:id/availability", h.Volunteer.UpdateAvailability)
			volunteers.POST("/:id/availability/import", h.Volunteer.ImportAvailability)

			volunteers.GET("/:id/matches", h.Match.EventsForVolunteer)

			volunteers.GET("/:id/history", h.History.GetHistory)
			volunteers.GET("/:id/reliability", h.History.GetReliability)
			volunteers.GET("/:id/trends", h.History.GetTrends)
		}

		// 技能目录
		skills := v1.Group("/skills")
		{
			skills.GET("", h.Skill.ListSkills)
			skills.POST("", adminOnly, h.Skill.CreateSkill)
		}

		// 派遣状态变更（志愿者确认 / 拒绝本人派遣）
		v1.PUT("/assignments/:id/status", h.Assignment.UpdateStatus)

		// 通知模块
		notifications := v1.Group("/notifications")
		{
			notifications.GET("/me", h.Notification.ListMine)
			notifications.PUT("/:id/read", h.Notification.MarkRead)
		}

		// 系统配置模块
		systemConfig := v1.Group("/system-config")
		{
			systemConfig.GET("", h.SystemConfig.GetConfig)
			systemConfig.PUT("", adminOnly, h.SystemConfig.UpdateConfig)
			systemConfig.DELETE("", adminOnly, h.SystemConfig.ResetConfig)
		}
	}

	return r
}

// MetricsHandler 基于指定 Gatherer 的 /metrics 处理器
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
