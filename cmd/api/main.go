package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/keypass/internal/auth"
	"github.com/BradenHooton/keypass/internal/background"
	"github.com/BradenHooton/keypass/internal/config"
	"github.com/BradenHooton/keypass/internal/database"
	"github.com/BradenHooton/keypass/internal/handlers"
	middlewareCustom "github.com/BradenHooton/keypass/internal/middleware"
	"github.com/BradenHooton/keypass/internal/repositories"
	"github.com/BradenHooton/keypass/internal/routes"
	"github.com/BradenHooton/keypass/internal/services"
	pkgauth "github.com/BradenHooton/keypass/pkg/auth"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
		err := database.Migrate(migrateCtx, cfg.Database.URL(), "up")
		cancel()
		if err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	recordRepo := repositories.NewRecordRepository(db)
	feedbackRepo := repositories.NewFeedbackRepository(db)

	// Auth building blocks
	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	guestPolicy := auth.NewGuestPolicy(cfg.Auth.Guest.Enabled, cfg.Auth.Guest.Emails, cfg.Auth.Guest.Code, cfg.Auth.Guest.TTL)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Outbound collaborators
	mailer, err := newMailer(ctx, cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}
	notifier := services.NewNotifier(mailer, cfg.Email.AdminEmail, logger)
	payments := services.NewPaystackVerifier(cfg.Payment.PaystackBaseURL, cfg.Payment.PaystackSecret, cfg.Payment.Timeout, logger)

	// Initialize services
	authService := services.NewAuthService(userRepo, hasher, auth.NewOTPGenerator(), tokenManager, guestPolicy, notifier, logger, auditLogger,
		services.AuthSettings{OTPTTL: cfg.Auth.OTPTTL, ResendCooldown: cfg.Auth.ResendCooldown})
	recordService := services.NewRecordService(recordRepo, logger, services.RecordSettings{
		FreeQuota:           cfg.Records.FreeQuota,
		RecycleRetention:    cfg.Records.RecycleRetention,
		StrictBulkOwnership: cfg.Records.StrictBulkOwnership,
	})
	userService := services.NewUserService(userRepo, recordRepo, hasher, payments, notifier, logger, auditLogger, cfg.Subscription.MonthLength)
	subscriptionService := services.NewSubscriptionService(userRepo, notifier, logger)
	feedbackService := services.NewFeedbackService(feedbackRepo, logger)

	// Background maintenance
	scheduler, closeLocker, err := newScheduler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	maintenance := background.NewMaintenanceJob(subscriptionService, recordService, logger)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Register(cfg.Scheduler.Spec, background.MaintenanceJobName, maintenance.Run); err != nil {
			return err
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()

		if cfg.Scheduler.RunOnStart {
			go scheduler.RunOnce(ctx, background.MaintenanceJobName)
		}
	}

	// Setup router
	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.ClientIP(ipConfig))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(router,
		routes.Handlers{
			Auth:     handlers.NewAuthHandler(authService),
			Records:  handlers.NewRecordHandler(recordService),
			Users:    handlers.NewUserHandler(userService),
			Feedback: handlers.NewFeedbackHandler(feedbackService),
			Health:   handlers.Health(db),
		},
		auth.NewSessionGuard(tokenManager, userRepo, logger, auditLogger),
		routes.Limits{
			PerIP:   middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Server.AuthRateLimit},
			PerUser: middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Server.UserRateLimit},
		},
	)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// newMailer picks the delivery backend named by EMAIL_PROVIDER
func newMailer(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) (services.Mailer, error) {
	switch cfg.Provider {
	case "ses":
		mailer, err := services.NewSESMailer(ctx, cfg.AWSRegion, cfg.From, logger)
		if err != nil {
			return nil, err
		}
		return mailer, nil
	case "smtp":
		return services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From), nil
	default:
		logger.Warn("email provider is log, codes are written to the log only")
		return services.NewLogMailer(logger), nil
	}
}

// newScheduler builds the job scheduler with a Redis lock when REDIS_URL is
// set so only one API instance runs the daily sweep.
func newScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*background.Scheduler, func(), error) {
	var locker background.Locker = background.NewLocalLocker()
	closeLocker := func() {}

	if cfg.Redis.URL != "" {
		client, err := background.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = background.NewRedisLocker(client, "keypass:lock:")
		closeLocker = func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", slog.Any("error", err))
			}
		}
		logger.Info("scheduler using redis lock")
	}

	scheduler, err := background.NewScheduler(cfg.Scheduler.Timezone, locker, cfg.Scheduler.LockTTL, logger)
	if err != nil {
		closeLocker()
		return nil, nil, err
	}
	return scheduler, closeLocker, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
