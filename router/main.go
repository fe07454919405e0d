package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ierezell/ml-infra/common/helper"
	"github.com/ierezell/ml-infra/controller"
)

// Handlers groups the controllers mounted on the engine.
type Handlers struct {
	Questions *controller.QuestionController
	Health    *controller.HealthController
	// Metrics exposes /metrics when true.
	Metrics bool
}

func SetRouter(router *gin.Engine, h Handlers) {
	// engine level so preflight requests on unregistered OPTIONS routes are answered
	router.Use(cors.New(corsConfig()))

	router.GET("/healthz", h.Health.Healthz)
	router.GET("/readyz", h.Health.Readyz)
	if h.Metrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	SetApiRouter(router, h)
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, helper.RequestIdKey)
	cfg.ExposeHeaders = []string{helper.RequestIdKey}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}
