package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-supervision-api/api/swagger"
	"github.com/noah-isme/sma-supervision-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-supervision-api/internal/middleware"
	"github.com/noah-isme/sma-supervision-api/internal/repository"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/cache"
	"github.com/noah-isme/sma-supervision-api/pkg/config"
	"github.com/noah-isme/sma-supervision-api/pkg/database"
	"github.com/noah-isme/sma-supervision-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-supervision-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-supervision-api/pkg/middleware/requestid"
)

// @title SMA Supervision API
// @version 0.1.0
// @description Supervision duty auto-assignment and duty exchange service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	teacherRepo := repository.NewTeacherRepository(db)
	banDayRepo := repository.NewBanDayRepository(db)
	scheduleRepo := repository.NewSupervisionScheduleRepository(db)
	exchangeRepo := repository.NewExchangeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Exchange.CacheTTL, logr, cfg.Exchange.CacheEnabled)
	authService := service.NewAuthService(teacherRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	assignmentService := service.NewAssignmentService(
		teacherRepo,
		banDayRepo,
		scheduleRepo,
		db,
		metrics,
		validate,
		logr,
		service.AssignmentServiceConfig{
			RangeCapDays:       cfg.Assignment.RangeCapDays,
			OccupiedDatePolicy: cfg.Assignment.OccupiedDatePolicy,
			Weights: service.PriorityWeights{
				Recency:   cfg.Assignment.RecencyWeight,
				TotalLoad: cfg.Assignment.TotalLoadWeight,
				TypeLoad:  cfg.Assignment.TypeLoadWeight,
			},
		},
	)
	exchangeService := service.NewExchangeService(scheduleRepo, exchangeRepo, db, cacheService, metrics, validate, logr)

	authHandler := handler.NewAuthHandler(authService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, cfg.Export.Title)
	exchangeHandler := handler.NewExchangeHandler(exchangeService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(internalmiddleware.JWT(authService))
	{
		protected.POST("/supervision/assignments", assignmentHandler.Assign)
		protected.GET("/supervision/schedules", assignmentHandler.List)
		protected.GET("/supervision/schedules/export", assignmentHandler.Export)
		protected.POST("/supervision/exchanges", exchangeHandler.Create)
		protected.GET("/supervision/exchanges", exchangeHandler.List)
		protected.POST("/supervision/exchanges/:id/accept", exchangeHandler.Accept)
		protected.POST("/supervision/exchanges/:id/reject", exchangeHandler.Reject)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
