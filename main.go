package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quicktask/backend/internal/analytics"
	"quicktask/backend/internal/cache"
	"quicktask/backend/internal/config"
	"quicktask/backend/internal/database"
	"quicktask/backend/internal/handlers"
	"quicktask/backend/internal/logging"
	"quicktask/backend/internal/middleware"
	"quicktask/backend/internal/monitoring"
	"quicktask/backend/internal/services"
	"quicktask/backend/internal/worker"
)

const cacheKeyPrefix = "quicktask:"

// Application holds all application dependencies and state
type Application struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Pool      *database.DatabasePool
	Redis     *redis.Client
	Cache     *cache.MultiLevelCache
	Analytics *analytics.Client
	Monitor   *monitoring.Monitor
	Router    *gin.Engine
	Server    *http.Server

	Worker   *worker.Worker
	JobQueue *worker.JobQueue

	// Services
	AuthService      services.AuthService
	RegisterService  services.RegisterService
	TaskService      services.TaskService
	DashboardService services.DashboardService
}

func main() {
	logging.Configure()

	cfg, err := config.LoadConfig()
	if err != nil {
		fallback := logging.Fallback()
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	app.setupRoutes()
	app.startServer()
}

func initializeApplication(cfg *config.Config, logger zerolog.Logger) (*Application, error) {
	app := &Application{
		Config:  cfg,
		Logger:  logger,
		Monitor: monitoring.NewMonitor(),
	}

	logger.Info().Str("environment", cfg.Server.Environment).Msg("initializing QuickTask backend")

	pool, err := database.NewDatabasePool(database.PoolConfigFromConfig(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	app.Pool = pool

	if err := pool.Migrate(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		client := cache.NewRedisClient(cache.CacheConfigFromConfig(cfg))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, continuing with memory cache only")
			_ = client.Close()
		} else {
			app.Redis = client
			redisCache = cache.NewRedisCache(client, cacheKeyPrefix)
			logger.Info().Str("addr", cfg.GetRedisAddr()).Msg("redis connected")
		}
	}
	app.Cache = cache.NewMultiLevelCache(redisCache)

	hasher, err := services.NewPasswordHasher(cfg.Auth.PasswordScheme, cfg.Auth.BCryptCost)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("password hashing: %w", err)
	}

	app.Analytics = analytics.NewClient(cfg.Analytics, app.Cache, logger)
	var productivity services.ProductivitySource
	if app.Analytics.Enabled() {
		productivity = app.Analytics
		logger.Info().Str("url", cfg.Analytics.BaseURL).Msg("analytics client enabled")
	}

	db := pool.DB
	app.AuthService = services.NewAuthService(db, cfg.Auth, hasher)
	app.RegisterService = services.NewRegisterService(db, hasher)
	dashboard := services.NewDashboardService(db, app.Cache, productivity, cfg.Analytics.ProductivityDays, logger)
	app.DashboardService = dashboard

	var scheduler services.SummaryScheduler
	if app.Redis != nil && len(cfg.Worker.Queues) > 0 {
		app.JobQueue = worker.NewJobQueue(app.Redis, cfg.Worker.Queues[0], cfg.Worker.MaxTries, logger)
		app.Worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  app.Redis,
			PollInterval: cfg.Worker.PollInterval,
			Queues:       cfg.Worker.Queues,
			RetryDelay:   cfg.Worker.RetryDelay,
			Logger:       logger,
		})
		app.Worker.RegisterHandler(worker.JobTypeSummaryRefresh, worker.NewSummaryRefreshHandler(dashboard))
		scheduler = app.JobQueue
	}

	app.TaskService = services.NewCachedTaskService(services.NewTaskService(db), dashboard, scheduler, logger)

	app.registerHealthChecks()

	logger.Info().Msg("all services initialized")
	return app, nil
}

func (app *Application) registerHealthChecks() {
	app.Monitor.RegisterHealthCheck("database", app.Pool.HealthContext)
	app.Monitor.RegisterStats("database", func() interface{} { return app.Pool.Stats() })
	app.Monitor.RegisterStats("cache", func() interface{} { return app.Cache.Stats() })
	app.Monitor.RegisterStats("analytics", func() interface{} {
		if !app.Analytics.Enabled() {
			return gin.H{"enabled": false}
		}
		return app.Analytics.Breaker().GetStats()
	})

	if app.Redis != nil {
		app.Monitor.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}

	if app.Analytics.Enabled() {
		app.Monitor.RegisterOptionalCheck("analytics", app.Analytics.Health)
	}

	if app.JobQueue != nil {
		app.Monitor.RegisterStats("worker", app.queueStats)
	}
}

func (app *Application) queueStats() interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	queues := make(map[string]int64, len(app.Config.Worker.Queues)+1)
	for _, queue := range append([]string{worker.DeadQueue}, app.Config.Worker.Queues...) {
		size, err := app.JobQueue.GetQueueSize(ctx, queue)
		if err != nil {
			return gin.H{"error": err.Error()}
		}
		queues[queue] = size
	}
	return gin.H{"queues": queues}
}

func (app *Application) setupRoutes() {
	r := gin.New()

	r.Use(middleware.RecoveryWithLog(app.Logger))
	r.Use(middleware.RequestLogger(app.Logger))
	r.Use(app.Monitor.MetricsMiddleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     app.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           app.Config.CORS.MaxAge,
	}))

	// Health and monitoring endpoints (no auth required)
	r.GET("/health", app.Monitor.HealthHandler())
	r.GET("/ready", app.Monitor.ReadinessHandler())
	r.GET("/metrics", app.Monitor.MetricsHandler())

	api := r.Group("/api")
	api.GET("/health", app.Monitor.HealthHandler())

	guard := middleware.AuthMiddleware(app.AuthService, app.Config.Auth.CookieName, app.Logger)

	authHandler := handlers.NewAuthHandler(app.AuthService, app.RegisterService, handlers.CookieConfigFromConfig(app.Config), app.Logger)
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.GET("/me", guard, authHandler.Me)
	}

	taskHandler := handlers.NewTaskHandler(app.TaskService, app.Logger)
	taskRoutes := api.Group("/tasks", guard)
	{
		taskRoutes.GET("", taskHandler.GetTasks)
		taskRoutes.POST("", taskHandler.CreateTask)
		taskRoutes.GET("/:id", taskHandler.GetTaskByID)
		taskRoutes.PUT("/:id", taskHandler.UpdateTask)
		taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
	}

	dashboardHandler := handlers.NewDashboardHandler(app.DashboardService, app.Logger)
	dashboardRoutes := api.Group("/dashboard", guard)
	{
		dashboardRoutes.GET("", dashboardHandler.GetDashboard)
		dashboardRoutes.GET("/summary", dashboardHandler.GetSummary)
	}

	app.Router = r
}

func (app *Application) startServer() {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	if app.Worker != nil {
		app.Worker.Start(app.Config.Worker.Concurrency)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		app.Logger.Info().Str("addr", addr).Msg("server starting")
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			app.Logger.Error().Err(err).Msg("server failed")
			app.cleanup()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	app.Logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("server forced to shutdown")
	}

	app.cleanup()
	app.Logger.Info().Msg("server stopped gracefully")
}

func (app *Application) cleanup() {
	if app.Worker != nil {
		app.Worker.Stop()
	}

	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("error closing cache")
		}
	}

	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("error closing redis")
		}
	}

	if app.Pool != nil {
		if err := app.Pool.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("error closing database")
		}
	}
}
