package main

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"taskboard/internal/audit"
	"taskboard/internal/handler"
	"taskboard/internal/middleware"
	"taskboard/pkg/config"
	"taskboard/pkg/database"
	"taskboard/pkg/jwtutil"
	"taskboard/pkg/logger"
	"taskboard/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting taskboard service...", zap.String("environment", cfg.Server.Env))

	// Initialize database; the handle is injected into every handler
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	jwt := jwtutil.New(&cfg.JWT)
	recorder := audit.NewRecorder(db, log)

	authHandler := handler.NewAuthHandler(db, jwt, recorder)
	tenantHandler := handler.NewTenantHandler(db, recorder)
	userHandler := handler.NewUserHandler(db, recorder)
	projectHandler := handler.NewProjectHandler(db, recorder)
	taskHandler := handler.NewTaskHandler(db, recorder)
	dashboardHandler := handler.NewDashboardHandler(db)

	// Initialize Echo framework
	e := echo.New()
	e.Validator = handler.NewRequestValidator()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestID)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register-tenant", authHandler.RegisterTenant)
	auth.POST("/login", authHandler.Login)

	// API routes - all require authentication
	api := e.Group("")
	api.Use(middleware.Auth(jwt))

	api.GET("/auth/me", authHandler.Me)

	tenants := api.Group("/tenants")
	tenants.GET("", tenantHandler.List)
	tenants.GET("/:id", tenantHandler.Get)
	tenants.PUT("/:id", tenantHandler.Update)
	tenants.DELETE("/:id", tenantHandler.Delete)

	users := api.Group("/users")
	users.POST("", userHandler.Create)
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	projects := api.Group("/projects")
	projects.POST("", projectHandler.Create)
	projects.GET("", projectHandler.List)
	projects.GET("/:id", projectHandler.Get)
	projects.PUT("/:id", projectHandler.Update)
	projects.DELETE("/:id", projectHandler.Delete)
	projects.GET("/:id/tasks", taskHandler.ListByProject)
	projects.POST("/:id/tasks", taskHandler.Create)

	tasks := api.Group("/tasks")
	tasks.POST("", taskHandler.Create)
	tasks.GET("", taskHandler.List)
	tasks.GET("/:id", taskHandler.Get)
	tasks.PUT("/:id", taskHandler.Update)
	tasks.PATCH("/:id/status", taskHandler.UpdateStatus)
	tasks.POST("/:id/claim", taskHandler.Claim)
	tasks.DELETE("/:id", taskHandler.Delete)

	api.GET("/my-tasks", taskHandler.MyTasks)
	api.GET("/dashboard/stats", dashboardHandler.Stats)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
