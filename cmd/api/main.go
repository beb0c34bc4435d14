package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/config"
	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/handler"
	"github.com/bahiamar/hoa-backend/internal/importer"
	"github.com/bahiamar/hoa-backend/internal/middleware"
	"github.com/bahiamar/hoa-backend/internal/port"
	"github.com/bahiamar/hoa-backend/internal/repository/mail"
	"github.com/bahiamar/hoa-backend/internal/repository/rates"
	"github.com/bahiamar/hoa-backend/internal/repository/storage"
	"github.com/bahiamar/hoa-backend/internal/service"
	"github.com/bahiamar/hoa-backend/internal/store"
	"github.com/bahiamar/hoa-backend/internal/store/memory"
	"github.com/bahiamar/hoa-backend/internal/store/postgres"
	"github.com/bahiamar/hoa-backend/internal/websocket"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("Falling back to default timezone")
		loc = fiscal.DefaultLocation
	}

	// Select the document store backend
	var st store.Store
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()
		if err := pool.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping database")
		}
		log.Info().Msg("Connected to database")
		st = postgres.New(pool)
	case "memory":
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		st = memory.New()
	}

	// Outbound adapters
	var email port.EmailSender = mail.Disabled{}
	if cfg.EmailEnabled {
		email = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailFrom, cfg.SMTPPassword)
	}
	var rateProvider port.ExchangeRateProvider = &rates.Static{}
	if cfg.ExchangeRateURL != "" {
		rateProvider = rates.NewCached(rates.NewHTTPProvider(cfg.ExchangeRateURL))
	}

	// WebSocket hub for live events
	hub := websocket.NewHub()

	// Initialize services
	ids := fiscal.NewIDGenerator(loc)
	auditService := service.NewAuditService(st)
	clientService := service.NewClientService(st, auditService)
	creditService := service.NewCreditService(st)
	duesService := service.NewDuesService(st, clientService, auditService)
	readingsService := service.NewReadingsService(st, auditService)
	penaltyService := service.NewPenaltyService(st, clientService)
	waterBillService := service.NewWaterBillService(st, clientService, readingsService, penaltyService, auditService)
	transactionService := service.NewTransactionService(st, clientService, creditService, duesService, waterBillService, auditService, ids)
	paymentService := service.NewPaymentService(st, clientService, creditService, duesService, waterBillService, transactionService, penaltyService, auditService, email)
	reportService := service.NewReportService(clientService, creditService, duesService, waterBillService, transactionService)

	// Import and purge jobs stream progress over the hub
	reporter := importer.ReporterFunc(func(run *domain.ImportRun) {
		hub.Broadcast(run.ClientID, websocket.ImportProgress(run))
	})
	jobs := importer.NewJobs()
	imports := importer.NewImporter(st, auditService, ids, reporter)
	purger := importer.NewPurger(st, auditService, reporter)
	fileSources := func(ctx context.Context, clientID string) (port.FileSource, error) {
		return storage.NewS3Source(ctx, cfg.S3, clientID)
	}

	// Initialize handlers
	rl := middleware.NewRateLimiter()
	defer rl.Stop()
	clientHandler := handler.NewClientHandler(clientService)
	transactionHandler := handler.NewTransactionHandler(transactionService)
	duesHandler := handler.NewDuesHandler(duesService)
	waterHandler := handler.NewWaterHandler(readingsService, waterBillService, penaltyService, hub)
	paymentHandler := handler.NewPaymentHandler(paymentService, clientService, hub)
	reportHandler := handler.NewReportHandler(reportService, rateProvider)
	adminHandler := handler.NewAdminHandler(st, jobs, imports, purger, auditService, fileSources, hub)
	wsHandler := handler.NewWebSocketHandler(hub, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, middleware.HeaderUserID, middleware.HeaderSuperAdmin, middleware.HeaderPropertyAccess},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Register API routes
	handler.RegisterRoutes(e, rl, clientHandler, transactionHandler, duesHandler, waterHandler, paymentHandler, reportHandler, adminHandler, wsHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
