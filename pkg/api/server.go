// Package api serves the dashboard HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rbrabson/chronicles/pkg/achievement"
	"github.com/rbrabson/chronicles/pkg/activity"
	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/economy"
	"github.com/rbrabson/chronicles/pkg/mission"
	"github.com/rbrabson/chronicles/pkg/moderation"
	"github.com/rbrabson/chronicles/pkg/shop"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// Services are the engines behind the API.
type Services struct {
	Store        store.Store
	Catalog      *config.Catalog
	Bank         *economy.Bank
	Shop         *shop.Engine
	Missions     *mission.Tracker
	Achievements *achievement.Evaluator
	Moderation   *moderation.Moderator
	Activity     *activity.Recorder
}

// Options configure the HTTP server.
type Options struct {
	Port string
	// APIKey protects every route but the health check. An empty key leaves the API open.
	APIKey string
	// GuildID is the guild used by routes that take no guild in their path.
	GuildID     string
	RateLimit   int
	RateWindow  time.Duration
	RateLimiter *RateLimiter
}

// Server is the dashboard API server.
type Server struct {
	services Services
	opts     Options
	router   *gin.Engine
	srv      *http.Server
}

// NewServer builds the router for the services.
func NewServer(services Services, opts Options) *Server {
	s := &Server{services: services, opts: opts}
	s.router = s.routes()
	s.srv = &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), requestMetrics())

	r.GET("/health", s.health)
	r.GET("/metrics", APIKeyAuth(s.opts.APIKey), gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(APIKeyAuth(s.opts.APIKey))
	if s.opts.RateLimiter != nil && s.opts.RateLimit > 0 {
		api.Use(s.opts.RateLimiter.Middleware(s.opts.RateLimit, s.opts.RateWindow))
	}

	api.GET("/user_stats/:member", s.userStats)
	api.GET("/ranking/:kind", s.ranking)
	api.GET("/server_stats", s.serverStats)
	api.GET("/config/:guild", s.guildConfig)
	api.GET("/user_inventory/:member", s.userInventory)
	api.GET("/user_achievements/:guild/:member", s.userAchievements)

	api.GET("/shop/items", s.listItems)
	api.POST("/shop/buy/:item", s.buyItem)

	api.GET("/premium/packages", s.listPackages)
	api.POST("/premium/finalize/:package", s.finalizePackage)

	api.POST("/warnings", s.addWarning)
	api.DELETE("/warnings/:id", s.removeWarning)
	api.GET("/warnings/:guild/:member", s.listWarnings)

	api.POST("/contests/win", s.contestWin)

	api.GET("/missions/definitions", s.missionDefinitions)
	api.GET("/missions/progress/:guild/:member", s.missionProgress)
	api.GET("/missions/completed/:guild/:member", s.missionsCompleted)

	admin := api.Group("/admin")
	admin.GET("/shop-items", s.listItems)
	admin.GET("/shop-items/:item", s.getItem)
	admin.POST("/shop-items", s.createItem)
	admin.PUT("/shop-items/:item", s.updateItem)
	admin.DELETE("/shop-items/:item", s.deleteItem)

	return r
}

// ListenAndServe serves the API until Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.WithField("addr", s.srv.Addr).Info("starting API server")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("stopping API server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := s.services.Store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
