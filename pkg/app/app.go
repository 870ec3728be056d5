package app

import (
	"fmt"

	"github.com/arnavshah/rota-api-go/pkg/auth"
	"github.com/arnavshah/rota-api-go/pkg/config"
	"github.com/arnavshah/rota-api-go/pkg/database"
	"github.com/arnavshah/rota-api-go/pkg/handlers"
	"github.com/arnavshah/rota-api-go/pkg/optimizer"
	"github.com/arnavshah/rota-api-go/pkg/planner"
	"github.com/arnavshah/rota-api-go/pkg/scheduler"
	"github.com/arnavshah/rota-api-go/pkg/store"
	"github.com/arnavshah/rota-api-go/pkg/weather"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the wired service shared by the server binary and the serverless entry point
type App struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// New opens the database, seeds the operator account and builds the router
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := scheduler.ValidateTemplate(cfg.Shifts); err != nil {
		return nil, fmt.Errorf("invalid shift template: %w", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	authSvc := auth.New(cfg.Auth)
	if err := authSvc.EnsureAdminExists(db, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, logger); err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}

	var opt optimizer.Optimizer
	if cfg.Optimizer.BaseURL != "" {
		opt = optimizer.NewClient(cfg.Optimizer, logger.Named("optimizer"))
	} else {
		logger.Warn("optimizer not configured, /optimize will report it unavailable")
	}

	p := planner.New(
		store.NewGormStore(db),
		weather.NewClient(cfg.Weather, logger.Named("weather")),
		opt,
		cfg.Shifts,
		logger.Named("planner"),
	)

	h := &handlers.Handler{DB: db, Planner: p, Auth: authSvc, Logger: logger}
	return &App{DB: db, Router: handlers.NewRouter(h, cfg.Server)}, nil
}
