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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pollreminder/reminder-api/config"
	"github.com/pollreminder/reminder-api/internal/cache"
	"github.com/pollreminder/reminder-api/internal/handlers"
	"github.com/pollreminder/reminder-api/internal/middleware"
	"github.com/pollreminder/reminder-api/internal/pollclient"
	"github.com/pollreminder/reminder-api/internal/services"
	"github.com/pollreminder/reminder-api/internal/signupform"
	"github.com/pollreminder/reminder-api/pkg/httpclient"
	"github.com/pollreminder/reminder-api/pkg/jwt"
	"github.com/pollreminder/reminder-api/pkg/logger"
	"github.com/pollreminder/reminder-api/pkg/metrics"
	"github.com/pollreminder/reminder-api/pkg/phone"
	"github.com/pollreminder/reminder-api/pkg/profiling"
	"github.com/pollreminder/reminder-api/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// registerFormRoutes registers the signup form endpoints. Every route runs
// inside the caller's form session.
func registerFormRoutes(
	group *gin.RouterGroup,
	cfg *config.Config,
	tokenManager *jwt.TokenManager,
	generalRateLimiter, verifyRateLimiter, submitRateLimiter *middleware.RateLimiter,
	formHandler *handlers.FormHandler,
) {
	form := group.Group("/form")
	form.Use(generalRateLimiter.Middleware())
	form.Use(middleware.BodySizeLimitMiddleware(16 * 1024))
	form.Use(middleware.FormSessionMiddleware(tokenManager, middleware.FormSessionConfig{
		CookieName:   cfg.Session.CookieName,
		CookieDomain: cfg.Session.CookieDomain,
		CookieSecure: cfg.Session.CookieSecure,
		IdleTTL:      cfg.SessionTTL(),
	}))

	form.GET("", formHandler.GetForm)
	form.POST("/fields", formHandler.UpdateField)
	form.POST("/phone", formHandler.UpdatePhone)
	form.POST("/postcode/verify", verifyRateLimiter.Middleware(), formHandler.VerifyPostcode)
	form.POST("/address", formHandler.SelectAddress)
	form.POST("/cancel", formHandler.Cancel)
	form.POST("/submit", submitRateLimiter.Middleware(), formHandler.Submit)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting poll reminder API",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
	)

	tracerShutdown, err := tracing.InitTracer(tracing.Config{
		ServiceName:       cfg.Observability.ServiceName,
		ServiceNamespace:  cfg.Observability.ServiceNamespace,
		ServiceVersion:    cfg.Observability.ServiceVersion,
		ServiceInstanceID: cfg.Observability.ServiceInstanceID,
		Environment:       cfg.Server.AppEnv,
		Endpoint:          cfg.Observability.ExporterEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	stopProfiler, err := profiling.InitProfiler(cfg.Profiling, cfg.Observability, cfg.Server.AppEnv)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer stopProfiler()

	// Background workers stop when ctx is cancelled during shutdown
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metrics.RecordInfrastructureMetrics(ctx.Done())

	httpClient := httpclient.NewStandardClient(cfg.PollAPITimeout())
	pollClient := pollclient.NewClient(cfg.PollAPI.BaseURL, httpClient, cfg.PollAPI.LookupMaxRetries)
	phoneNormalizer := phone.NewNormalizer(cfg.Phone.DefaultRegion)

	sessions := cache.NewFormSessionCache(cfg.SessionTTL(), func() *signupform.Controller {
		return signupform.New(pollClient, phoneNormalizer)
	})
	signupService := services.NewSignupService(sessions, cfg, httpClient)
	tokenManager := jwt.NewTokenManager(cfg.Session.Secret, cfg.Session.Issuer, cfg.SessionTokenTTL())

	formHandler := handlers.NewFormHandler(signupService)
	healthHandler := handlers.NewHealthHandler(pollClient.BreakerStatus, signupService.ActiveSessions)
	logsHandler := handlers.NewLogsHandler(cfg.Logging.Dir)

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// The widget is served from other origins and sends the session cookie
	allowedOrigins := cfg.Server.AllowedOrigins
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader, "traceparent", "tracestate"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	generalRateLimiter := middleware.NewRateLimiter(ctx, 20, 40) // 20 req/sec, burst of 40
	verifyRateLimiter := middleware.NewRateLimiter(ctx, 1, 5)    // each verify costs an upstream lookup
	submitRateLimiter := middleware.NewRateLimiter(ctx, 0.2, 3)  // 1 req/5s, burst of 3

	api := router.Group("/api")
	api.GET("/healthcheck", healthHandler.Healthcheck)
	api.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	registerFormRoutes(v1, cfg, tokenManager, generalRateLimiter, verifyRateLimiter, submitRateLimiter, formHandler)
	v1.POST("/logs", generalRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(1*1024*1024), logsHandler.ReceiveFrontendLogs)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		// lookups may retry, so leave room beyond one upstream timeout
		WriteTimeout:   cfg.PollAPITimeout()*time.Duration(cfg.PollAPI.LookupMaxRetries+1) + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("Server started",
			zap.String("port", cfg.Server.Port),
			zap.String("poll_api", cfg.PollAPI.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited", zap.Int("open_sessions", sessions.Count()))
}
