package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kimgyuhyun/ott-project-sub001/internal/background"
	"github.com/kimgyuhyun/ott-project-sub001/internal/config"
	"github.com/kimgyuhyun/ott-project-sub001/internal/handlers"
	"github.com/kimgyuhyun/ott-project-sub001/internal/middleware"
	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments/iamport"
	"github.com/kimgyuhyun/ott-project-sub001/internal/repository"
	"github.com/kimgyuhyun/ott-project-sub001/internal/seed"
	"github.com/kimgyuhyun/ott-project-sub001/internal/service"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/cache"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/logger"
)

type Application struct {
	cfg *config.Config

	db      *gorm.DB
	cache   *cache.Cache
	bridge  *iamport.Bridge
	billing *background.BillingWorker

	repositories repositoryContainer
	services     serviceContainer
	handlers     handlerContainer

	router *gin.Engine
	server *http.Server
}

type repositoryContainer struct {
	User         repository.UserRepository
	Plan         repository.PlanRepository
	Payment      repository.PaymentRepository
	Subscription repository.SubscriptionRepository
}

type serviceContainer struct {
	Auth       *service.AuthService
	Session    *service.SessionService
	Checkout   *service.CheckoutService
	Membership *service.MembershipService
}

type handlerContainer struct {
	Auth       *handlers.AuthHandler
	Checkout   *handlers.CheckoutHandler
	Membership *handlers.MembershipHandler
	Webhook    *handlers.WebhookHandler
}

func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &Application{cfg: cfg}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.runMigrations(); err != nil {
		return nil, err
	}

	if err := app.initCache(); err != nil {
		return nil, err
	}

	if err := app.initBridge(); err != nil {
		return nil, err
	}

	app.initRepositories()
	app.initServices()

	seed.EnsureDefaultPlans(app.repositories.Plan, app.cache)

	app.initHandlers()
	app.initRouter()

	app.billing = background.NewBillingWorker(app.services.Membership, background.BillingConfig{
		Interval:   cfg.BillingInterval,
		MaxRetries: 2,
	})

	app.server = &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        app.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return app, nil
}

func (a *Application) Run() error {
	logger.Info("Server starting", map[string]interface{}{
		"port":        a.cfg.Port,
		"environment": a.cfg.Environment,
	})

	a.billing.Start(context.Background())

	return a.server.ListenAndServe()
}

func (a *Application) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	if a.billing != nil {
		if err := a.billing.Stop(ctx); err != nil {
			logger.Error(err, "Failed to stop billing worker", nil)
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Error(err, "Failed to close cache connection", nil)
		}
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	return nil
}

func (a *Application) Router() *gin.Engine {
	return a.router
}

func (a *Application) initDatabase() error {
	logger.Info("Connecting to database", nil)

	db, err := gorm.Open(postgres.Open(a.cfg.DatabaseURL), &gorm.Config{
		Logger: logger.NewGormLogger(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	a.db = db
	return nil
}

func (a *Application) runMigrations() error {
	if a.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	logger.Info("Running database migrations", nil)

	if err := a.db.AutoMigrate(
		&models.User{},
		&models.MembershipPlan{},
		&models.Payment{},
		&models.Subscription{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database migration completed", nil)
	return nil
}

func (a *Application) initCache() error {
	enable := a.cfg.EnableCache && a.cfg.EnableRedis
	c, err := cache.NewCache(a.cfg.RedisURL, enable)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.cache = c
	return nil
}

func (a *Application) initBridge() error {
	// The PG bridge handle loads lazily on the first checkout; only the
	// credentials are wired here. Development deployments without API keys
	// still boot, payment routes fail with a configuration error instead.
	if a.cfg.PGAPIKey == "" || a.cfg.PGAPISecret == "" {
		if a.cfg.IsProduction() {
			return fmt.Errorf("PG API credentials are required in production")
		}
		logger.Warn("PG API credentials missing, payments will be unavailable", nil)
		return nil
	}

	bridge, err := iamport.NewBridge(a.cfg.PGAPIKey, a.cfg.PGAPISecret)
	if err != nil {
		return fmt.Errorf("failed to initialize payment bridge: %w", err)
	}
	if a.cfg.PGAPIBaseURL != "" {
		bridge.SetAPIBaseURL(a.cfg.PGAPIBaseURL)
	}
	a.bridge = bridge
	return nil
}

func (a *Application) initRepositories() {
	a.repositories = repositoryContainer{
		User:         repository.NewUserRepository(a.db),
		Plan:         repository.NewPlanRepository(a.db),
		Payment:      repository.NewPaymentRepository(a.db),
		Subscription: repository.NewSubscriptionRepository(a.db),
	}
}

func (a *Application) initServices() {
	session := service.NewSessionService(
		a.repositories.Plan,
		a.repositories.Payment,
		a.repositories.Subscription,
		a.cache,
	)

	var bridge payments.Bridge
	if a.bridge != nil {
		bridge = a.bridge
	}

	checkout := service.NewCheckoutService(session, bridge, service.CheckoutConfig{
		SiteURL:         a.cfg.SiteURL,
		MerchantCode:    a.cfg.MerchantCode,
		DefaultGateway:  payments.Gateway(a.cfg.DefaultGateway),
		ConfirmAttempts: a.cfg.ConfirmAttempts,
		ConfirmDelay:    a.cfg.ConfirmDelay,
	})

	a.services = serviceContainer{
		Auth:     service.NewAuthService(a.repositories.User, a.cfg.JWTSecret),
		Session:  session,
		Checkout: checkout,
		Membership: service.NewMembershipService(
			a.repositories.Plan,
			a.repositories.Subscription,
			a.repositories.Payment,
			checkout,
			a.cache,
		),
	}
}

func (a *Application) initHandlers() {
	// Unsigned notifications are a development convenience only; production
	// rejects them outright.
	if a.cfg.PGWebhookSecret == "" && !a.cfg.IsProduction() {
		logger.Warn("PG webhook secret missing, notifications are accepted unsigned", nil)
	}

	a.handlers = handlerContainer{
		Auth:       handlers.NewAuthHandler(a.services.Auth),
		Checkout:   handlers.NewCheckoutHandler(a.services.Checkout, a.services.Session),
		Membership: handlers.NewMembershipHandler(a.services.Membership),
		Webhook:    handlers.NewWebhookHandler(a.services.Membership, a.cfg.PGWebhookSecret, a.cfg.IsProduction()),
	}
}

func (a *Application) initRouter() {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RateLimitMiddleware(a.cfg))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	if a.cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", a.handlers.Auth.Register)
			auth.POST("/login", a.handlers.Auth.Login)
			auth.POST("/logout", a.handlers.Auth.Logout)
		}

		membership := api.Group("/membership")
		{
			membership.GET("/plans", a.handlers.Membership.ListPlans)
			membership.POST("/plan", middleware.AuthMiddleware(a.cfg.JWTSecret), a.handlers.Membership.ChangePlan)
		}

		paymentsGroup := api.Group("/payments")
		{
			paymentsGroup.POST("/webhook", a.handlers.Webhook.HandleNotification)

			authorized := paymentsGroup.Group("")
			authorized.Use(middleware.AuthMiddleware(a.cfg.JWTSecret))
			{
				authorized.POST("/checkout", a.handlers.Checkout.Checkout)
				authorized.GET("/:id/status", a.handlers.Checkout.Status)
			}
		}
	}

	a.router = router
}
