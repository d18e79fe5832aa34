package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/movielix/auth-api/api/swagger"
	"github.com/movielix/auth-api/internal/handler"
	"github.com/movielix/auth-api/internal/middleware"
	"github.com/movielix/auth-api/internal/models"
	"github.com/movielix/auth-api/internal/repository"
	"github.com/movielix/auth-api/internal/service"
	"github.com/movielix/auth-api/pkg/cache"
	"github.com/movielix/auth-api/pkg/config"
	"github.com/movielix/auth-api/pkg/database"
	"github.com/movielix/auth-api/pkg/logger"
	"github.com/movielix/auth-api/pkg/mailer"
	corsmiddleware "github.com/movielix/auth-api/pkg/middleware/cors"
	reqidmiddleware "github.com/movielix/auth-api/pkg/middleware/requestid"
)

// @title Movielix Auth API
// @version 1.0.0
// @description Authentication and credential-recovery service for the movie catalog
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	tokenSvc, err := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		logr.Sugar().Fatalw("failed to init token service", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	otpRepo := repository.NewOtpRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	notifier := service.NewNotifierService(mailer.NewSMTPSender(cfg.SMTP), logr, service.NotifierConfig{
		DispatchTimeout: cfg.SMTP.DispatchTimeout,
		Workers:         cfg.SMTP.Workers,
		MaxRetries:      cfg.SMTP.MaxRetries,
	})
	rootCtx, stopNotifier := context.WithCancel(context.Background())
	notifier.Start(rootCtx)
	defer func() {
		stopNotifier()
		notifier.Stop()
	}()

	userSvc := service.NewUserService(userRepo, cacheRepo, cfg.Cache.UserTTL, logr)
	authSvc := service.NewAuthService(userRepo, tokenRepo, tokenSvc, validate, logr, metricsSvc, service.AuthConfig{
		RefreshExpiry: cfg.JWT.RefreshExpiration,
	})
	resetSvc := service.NewPasswordResetService(userRepo, otpRepo, notifier, validate, logr, metricsSvc, service.ResetConfig{
		OtpWindow: cfg.OTP.Window,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	resetHandler := handler.NewPasswordResetHandler(resetSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Authenticate(tokenSvc, userSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.RequireAuth(), authHandler.Logout)
		auth.GET("/me", middleware.RequireRoles(models.RoleAdmin, models.RoleUser), authHandler.Me)

		reset := api.Group("/forgotPassword")
		reset.POST("/verifyMail/:email", resetHandler.VerifyMail)
		reset.POST("/verifyOtp/:otp/:email", resetHandler.VerifyOtp)
		reset.POST("/changePassword/:email", resetHandler.ChangePassword)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
