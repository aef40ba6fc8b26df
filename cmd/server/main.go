package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/admission"
	"github.com/AnshRaj112/civicpulse-backend/internal/auth"
	"github.com/AnshRaj112/civicpulse-backend/internal/billing"
	"github.com/AnshRaj112/civicpulse-backend/internal/classifier"
	"github.com/AnshRaj112/civicpulse-backend/internal/config"
	"github.com/AnshRaj112/civicpulse-backend/internal/database"
	"github.com/AnshRaj112/civicpulse-backend/internal/handlers"
	"github.com/AnshRaj112/civicpulse-backend/internal/logging"
	"github.com/AnshRaj112/civicpulse-backend/internal/mailer"
	"github.com/AnshRaj112/civicpulse-backend/internal/middleware"
	"github.com/AnshRaj112/civicpulse-backend/internal/objectstore"
	"github.com/AnshRaj112/civicpulse-backend/internal/orgs"
	"github.com/AnshRaj112/civicpulse-backend/internal/pipeline"
	"github.com/AnshRaj112/civicpulse-backend/internal/realtime"
	"github.com/AnshRaj112/civicpulse-backend/internal/routes"
	"github.com/AnshRaj112/civicpulse-backend/internal/session"
	"github.com/AnshRaj112/civicpulse-backend/internal/store"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger := logging.New(cfg.Environment)
	defer func() { _ = logger.Sync() }()
	if envErr != nil {
		logger.Info("no .env file found")
	}
	if cfg.JWTSecret == "your-secret-key-change-in-production" {
		logger.Warn("JWT_SECRET is the development default; set it before deploying")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	logger.Info("connecting to PostgreSQL", zap.String("uri", logging.MaskURI(cfg.PostgresURI)))
	if err := database.ConnectPostgres(cfg.PostgresURI, logger); err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.DisconnectPostgres()

	logger.Info("connecting to Redis", zap.String("uri", logging.MaskURI(cfg.RedisURI)))
	if err := database.ConnectRedis(cfg.RedisURI, logger); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer database.DisconnectRedis()

	logger.Info("connecting to MongoDB", zap.String("uri", logging.MaskURI(cfg.MongoURI)))
	if err := database.Connect(cfg.MongoURI, logger); err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer database.Disconnect()

	reports := store.NewMongoReports(database.DB)
	if err := reports.EnsureIndexes(ctx); err != nil {
		logger.Warn("failed to ensure report indexes", zap.Error(err))
	}

	// Synchronization layer
	hub := realtime.NewHub(database.RedisClient, logger)
	hub.Start(ctx)
	publisher := realtime.NewPublisher(database.RedisClient)

	// Admission control and per-client sessions
	gate := admission.New(admission.NewRedisStore(database.RedisClient),
		cfg.AdmissionLimit, cfg.AdmissionWindow, admission.WithLogger(logger))
	sessions := session.NewManager(session.Deps{
		Admission: gate,
		Pointers:  session.NewRedisPointers(database.RedisClient),
		Reports:   reports,
		Hub:       hub,
		Logger:    logger,
	})
	sessions.StartCleanup(ctx)
	defer sessions.Close()

	ai := classifier.New(classifier.Config{
		BaseURL:  cfg.AIBaseURL,
		APIKey:   cfg.AIAPIKey,
		Model:    cfg.AIModel,
		Language: cfg.AILanguage,
		Timeout:  cfg.AITimeout,
	}, logger)
	if !ai.Configured() {
		logger.Warn("AI_API_KEY not set; submissions will be rejected until it is configured")
	}

	objects := objectstore.FromConfig(ctx, cfg, logger)
	logger.Info("object storage ready", zap.String("backend", objects.Name()))

	submit := pipeline.New(ai, reports, objects,
		pipeline.WithPublisher(publisher),
		pipeline.WithLogger(logger))
	watcher := pipeline.NewDuplicateWatcher(ai, pipeline.DefaultDebounce, logger)

	orgService := orgs.NewService(store.NewPostgresOrgs(database.PostgresDB), orgs.NewCache(database.RedisClient), logger)
	tokens := auth.NewTokens(cfg.JWTSecret, auth.DefaultTokenTTL)
	authService := auth.NewService(store.NewPostgresStaff(database.PostgresDB), tokens, logger)

	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
	defer mail.Wait()
	if !mail.IsConfigured() {
		logger.Warn("SMTP not configured; staff email is disabled")
	}

	guard := middleware.NewIPGuard(database.RedisClient, logger)

	h := handlers.New(handlers.Deps{
		Sessions:  sessions,
		Pipeline:  submit,
		Watcher:   watcher,
		Reports:   reports,
		Publisher: publisher,
		Orgs:      orgService,
		Auth:      authService,
		Insights:  ai,
		Objects:   objects,
		Mailer:    mail,
		Billing:   billing.New(cfg.CheckoutURL, cfg.PriceIDs, logger),
		Guard:     guard,
		Logger:    logger,

		AllowedOrigins: cfg.AllowedOrigins,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit.
	// Every environment also gets the Redis-backed per-IP guard.
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
		logger.Info("production security enabled")
	}
	r.Use(guard.Middleware)
	r.Use(middleware.FeedRateLimit)
	r.Use(middleware.ClientID)
	r.Use(middleware.OptionalAuth(tokens))

	routes.SetupRoutes(r, h, tokens)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("civicpulse backend listening", zap.String("addr", server.Addr), zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	stop()
}
