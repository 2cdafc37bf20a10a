package bootstrap

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/presensia/presensia-core/internal/api/http"
	"github.com/presensia/presensia-core/internal/api/http/middleware"
	"github.com/presensia/presensia-core/internal/api/http/routes"
	"github.com/presensia/presensia-core/internal/app"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	App         *app.App
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	cfg := dep.App.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.App.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, cfg.Gateway.Backend, dep.App.Pool, dep.App.Session)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(dep.App.Registry, promhttp.HandlerOpts{})))

	if cfg.Server.RateLimit > 0 {
		r.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst, dep.App.Log))
	}
	routes.RegisterV1(r, routes.V1Deps{App: dep.App})

	return r
}
