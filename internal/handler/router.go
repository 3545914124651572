package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"houser/internal/config"
	"houser/internal/logger"
)

// BuildInfo identifies the running binary
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes bundles everything the router serves. Metrics and Database may be nil.
type Routes struct {
	Chat      *ChatHandler
	Search    *SearchHandler
	Stats     *StatsHandler
	Assistant *AssistantHandler
	Metrics   http.Handler
	Database  Pinger
	Build     BuildInfo
}

// NewRouter creates the gin engine with middleware and all routes
func NewRouter(cfg config.ServerConfig, r Routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitList(cfg.AllowedOrigins)
	corsConfig.AllowMethods = splitList(cfg.AllowedMethods)
	corsConfig.AllowHeaders = splitList(cfg.AllowedHeaders)
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	if len(corsConfig.AllowOrigins) == 0 || corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if r.Database != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := r.Database.Ping(ctx); err != nil {
				logger.FromContext(c.Request.Context()).Warn("health check failed", "error", err)
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    "houser",
			"version":    r.Build.Version,
			"build_time": r.Build.BuildTime,
			"git_commit": r.Build.GitCommit,
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    r.Build.Version,
			"build_time": r.Build.BuildTime,
			"git_commit": r.Build.GitCommit,
		})
	})

	if r.Metrics != nil {
		router.GET("/metrics", gin.WrapH(r.Metrics))
	}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/chat", r.Chat.Chat)
		apiV1.POST("/search", r.Search.Search)
		apiV1.POST("/intent", r.Search.Intent)
		apiV1.POST("/stats", r.Stats.Stats)
		apiV1.GET("/hello", r.Assistant.Hello)
		apiV1.POST("/cache/clear", r.Assistant.ClearCache)
	}

	return router
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
