// Package server wires repositories, services and handlers into the HTTP
// engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"electricity-billing/internal/clock"
	"electricity-billing/internal/config"
	"electricity-billing/internal/handler"
	"electricity-billing/internal/lock"
	"electricity-billing/internal/metrics"
	"electricity-billing/internal/middleware"
	"electricity-billing/internal/repository"
	"electricity-billing/internal/service"
	"electricity-billing/internal/token"
	"electricity-billing/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Locker  lock.Locker
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// App is the assembled application. Hub must be started with Run before
// events are delivered.
type App struct {
	Engine *gin.Engine
	Hub    *websocket.Hub
	Issuer *token.Issuer
}

func New(d Deps) (*App, error) {
	if d.Locker == nil {
		d.Locker = lock.NewNoop()
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Default()
	}

	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}
	enforcer, err := middleware.NewRouteEnforcer(d.DB)
	if err != nil {
		return nil, err
	}

	issuer := token.NewIssuer(d.Config.Auth.JWTSecret, d.Config.Auth.TokenTTL, d.Clock)
	hub := websocket.NewHub(d.Log)

	// Set up dependencies (Repository -> Service -> Handler)
	providerRepo := repository.NewProviderRepository(d.DB)
	pricingRepo := repository.NewPricingRepository(d.DB)
	userRepo := repository.NewUserRepository(d.DB)
	roleRepo := repository.NewRoleRepository(d.DB)
	invoiceRepo := repository.NewInvoiceRepository(d.DB)
	auditRepo := repository.NewAuditRepository(d.DB)
	txManager := repository.NewTransactionManager(d.DB)

	pricingService := service.NewPricingService(providerRepo, pricingRepo, txManager, d.Locker, hub, d.Clock, d.Metrics, d.Log)
	roleService := service.NewRoleService(userRepo, roleRepo, txManager, d.Clock, d.Log)
	auditService := service.NewAuditService(auditRepo, d.Clock, d.Metrics, d.Log)
	invoiceService := service.NewInvoiceService(service.InvoiceServiceDeps{
		UserRepo:    userRepo,
		InvoiceRepo: invoiceRepo,
		PricingRepo: pricingRepo,
		Roles:       roleService,
		Pricing:     pricingService,
		Audit:       auditService,
		TxManager:   txManager,
		Publisher:   hub,
		Clock:       d.Clock,
		Metrics:     d.Metrics,
		Log:         d.Log,
	})
	auditorService := service.NewAuditorService(userRepo, invoiceRepo, roleService, pricingService, auditService, d.Log)
	adminService := service.NewAdminService(providerRepo, pricingService, txManager, d.Log)
	userService := service.NewUserService(providerRepo, userRepo, roleRepo, roleService, txManager, d.Clock, d.Log)
	authService := service.NewAuthService(userRepo, roleService, issuer, d.Log)
	statisticsService := service.NewStatisticsService(repository.NewStatisticsRepository(d.DB), userRepo, roleService, d.Clock, d.Log)

	if d.Config.Admin.Email != "" {
		if err := userService.EnsureAdmin(context.Background(), d.Config.Admin.Email, d.Config.Admin.Password); err != nil {
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	cookieMaxAge := int(d.Config.Auth.TokenTTL.Seconds())
	authHandler := handler.NewAuthHandler(authService, issuer, cookieMaxAge, d.Config.IsRelease())
	adminHandler := handler.NewAdminHandler(adminService)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	auditHandler := handler.NewAuditHandler(auditorService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)

	if d.Config.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(d.Log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.Config.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-Id"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	resolveProvider := func(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
		user, err := userRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !user.IsActive {
			return nil, errors.New("account is disabled")
		}
		return user.ProviderID, nil
	}
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(hub, c, issuer, resolveProvider)
	})

	public := router.Group("")
	authHandler.RegisterRoutes(public)

	protected := router.Group("", middleware.Authenticate(issuer), middleware.RequireRoutePermission(enforcer, d.Log))
	adminHandler.RegisterRoutes(protected)
	userHandler.RegisterRoutes(protected)
	roleHandler.RegisterRoutes(protected)
	invoiceHandler.RegisterRoutes(protected)
	auditHandler.RegisterRoutes(protected)
	statisticsHandler.RegisterRoutes(protected)

	return &App{Engine: router, Hub: hub, Issuer: issuer}, nil
}
