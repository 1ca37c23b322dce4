package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codehaven/codehaven/pkg/apiserver/handlers"
	"github.com/codehaven/codehaven/pkg/apiserver/middleware"
	"github.com/codehaven/codehaven/pkg/auth"
	"github.com/codehaven/codehaven/pkg/catalog"
	"github.com/codehaven/codehaven/pkg/config"
	"github.com/codehaven/codehaven/pkg/eventbus"
	"github.com/codehaven/codehaven/pkg/quota"
	"github.com/codehaven/codehaven/pkg/sandbox"
	"github.com/codehaven/codehaven/pkg/store/postgres"
	redisclient "github.com/codehaven/codehaven/pkg/store/redis"
)

type Server struct {
	router  *gin.Engine
	db      *postgres.Store
	redis   *redisclient.Client
	catalog *catalog.Catalog
	cfg     *config.Config
	logger  *zap.Logger
}

func NewServer(db *postgres.Store, redis *redisclient.Client, cat *catalog.Catalog, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		db:      db,
		redis:   redis,
		catalog: cat,
		cfg:     cfg,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tokens := auth.NewSessionTokenManager([]byte(s.cfg.Auth.JWTSecret), s.cfg.Auth.TokenTTL)

	gormDB := s.gormDB()
	registry := sandbox.NewRegistry(gormDB)
	policies := quota.NewPolicyStore(gormDB, s.cfg.Quota)
	admission := quota.NewAdmissionController(policies, registry, s.catalog, s.catalog)

	var bus *eventbus.Bus
	if s.redis != nil {
		bus = eventbus.NewBus(s.redis.Client())
	}

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(tokens))

		catalogHandler := handlers.NewCatalogHandler(s.catalog)
		api.GET("/tiers", catalogHandler.ListTiers)
		api.GET("/addons", catalogHandler.ListAddons)

		sandboxHandler := handlers.NewSandboxHandler(s.db, registry, admission, s.logger, bus)
		api.POST("/sandboxes", sandboxHandler.Create)
		api.GET("/sandboxes", sandboxHandler.List)
		api.GET("/sandboxes/:id", sandboxHandler.Get)
		api.DELETE("/sandboxes/:id", sandboxHandler.Delete)
		api.POST("/sandboxes/:id/start", sandboxHandler.Start)
		api.POST("/sandboxes/:id/stop", sandboxHandler.Stop)
		api.POST("/sandboxes/:id/status", sandboxHandler.UpdateStatus)

		quotaHandler := handlers.NewQuotaHandler(policies, registry, s.logger)
		api.GET("/quota", quotaHandler.Get)
		api.PUT("/users/:id/quota", quotaHandler.Update)
		api.DELETE("/users/:id/quota", quotaHandler.Delete)

		activityHandler := handlers.NewActivityHandler(postgres.NewActivityRepository(gormDB), s.logger)
		api.GET("/activity", activityHandler.List)
	}

	s.router = r
}

func (s *Server) gormDB() *gorm.DB {
	if s.db == nil {
		return nil
	}
	return s.db.DB()
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
