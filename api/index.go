package handler

import (
	"net/http"
	"os"

	"github.com/arnavshah/rota-api-go/pkg/app"
	"github.com/arnavshah/rota-api-go/pkg/config"
	"github.com/arnavshah/rota-api-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var r http.Handler

func init() {
	// .env is only present with vercel dev
	config.LoadEnv()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.ServiceName)
	if err != nil {
		panic(err)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to start", zap.Error(err))
		r = unavailable(err)
		return
	}
	r = a.Router
}

func unavailable(err error) http.Handler {
	engine := gin.New()
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	})
	return engine
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
