package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/config"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/api/handler"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/api/middleware"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/jwt"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 班级模块
		classes := v1.Group("/classes")
		{
			classes.GET("", h.Class.ListClasses)
			classes.GET("/:id", h.Class.GetClass)
			classes.POST("", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Class.CreateClass)
			classes.POST("/:id/students", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Class.EnrollStudents)
			classes.DELETE("/:id/students", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Class.RemoveStudents)
			classes.DELETE("/:id", middleware.RoleAuth(model.RoleAdmin), h.Class.DeleteClass)
		}

		// 小节模块
		sections := v1.Group("/sections")
		{
			sections.GET("", h.Section.ListSections)
			sections.GET("/:id", h.Section.GetSection)
			sections.POST("", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Section.CreateSection)
			sections.PUT("/:id", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Section.UpdateSection)
			sections.POST("/:id/students", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Section.AddSectionStudents)
			sections.DELETE("/:id/students", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Section.RemoveSectionStudents)
			sections.DELETE("/:id", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Section.DeleteSection)
		}

		// 二维码模块
		qrcodes := v1.Group("/qrcodes")
		qrcodes.Use(middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin))
		{
			qrcodes.POST("/generate", h.QRCode.GenerateQRCode)
			qrcodes.POST("/close", h.QRCode.CloseQRCode)
		}

		// 考勤模块；扫码入口带限流，挡自动化刷码
		attendance := v1.Group("/attendance")
		{
			attendance.POST("/verify/:token",
				middleware.RoleAuth(model.RoleStudent),
				middleware.RateLimit(rdb, 10, time.Minute),
				h.Attendance.VerifyAttendance)
			attendance.POST("/manual", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Attendance.RecordManual)
			attendance.GET("", middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin), h.Attendance.ListAttendance)
			attendance.GET("/me", middleware.RoleAuth(model.RoleStudent), h.Attendance.ListMyAttendance)
		}

		// 统计模块
		stats := v1.Group("/stats")
		stats.Use(middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin))
		{
			stats.GET("/classes/:id", h.Stats.GetClassStats)
		}

		// 导出模块
		export := v1.Group("/export")
		export.Use(middleware.RoleAuth(model.RoleInstructor, model.RoleAdmin))
		{
			export.GET("/attendance", h.Export.ExportAttendance)
		}
	}

	return r
}
