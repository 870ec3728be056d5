package handlers

import (
	"net/http"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/config"
	"github.com/arnavshah/rota-api-go/pkg/mw"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Version is reported by the index route
const Version = "1.0.0"

// NewRouter wires every route. The server binary and the serverless entry
// point share it.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(mw.RequestLogger(h.Logger))

	limiter := mw.NewClientRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Restaurant Rota API",
			"version": Version,
		})
	})
	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := h.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/admin/login", mw.RateLimiter(limiter), h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware(), mw.RateLimiter(limiter))
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	// Organization Endpoints
	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware(), mw.RateLimiter(limiter), h.usage())
	{
		api.GET("/usage", h.GetMyUsage)

		api.GET("/staff", h.ListStaff)
		api.POST("/staff", h.CreateStaff)
		api.PUT("/staff/:id", h.UpdateStaff)
		api.POST("/staff/validate", h.ValidateRoster)
		api.POST("/staff/csv", h.ImportStaffCSV)

		api.POST("/schedules", h.CreateSchedule)
		api.GET("/schedules/:id", h.GetSchedule)
		api.PUT("/schedules/:id/range", h.ChangeRange)
		api.PUT("/schedules/:id/comment", h.SetComment)
		api.POST("/schedules/:id/assign", h.Assign)
		api.POST("/schedules/:id/unassign", h.Unassign)
		api.POST("/schedules/:id/conflicts", h.CheckConflicts)
		api.POST("/schedules/:id/auto", h.AutoAssign)
		api.POST("/schedules/:id/optimize", h.Optimize)
		api.GET("/schedules/:id/totals", h.Totals)
		api.GET("/schedules/:id/unassigned", h.Unassigned)
		api.GET("/schedules/:id/export.xlsx", h.ExportXLSX)
		api.GET("/schedules/:id/export.csv", h.ExportCSV)
	}

	return r
}
