package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/lab-cases/internal/config"
	"github.com/jwalitptl/lab-cases/internal/email"
	authhandler "github.com/jwalitptl/lab-cases/internal/handler/auth"
	caseshandler "github.com/jwalitptl/lab-cases/internal/handler/cases"
	"github.com/jwalitptl/lab-cases/internal/handler/events"
	"github.com/jwalitptl/lab-cases/internal/handler/health"
	"github.com/jwalitptl/lab-cases/internal/handler/labs"
	promhandler "github.com/jwalitptl/lab-cases/internal/handler/prometheus"
	"github.com/jwalitptl/lab-cases/internal/middleware"
	"github.com/jwalitptl/lab-cases/internal/router"
	"github.com/jwalitptl/lab-cases/internal/service/auth"
	"github.com/jwalitptl/lab-cases/internal/service/bundle"
	"github.com/jwalitptl/lab-cases/internal/service/cases"
	"github.com/jwalitptl/lab-cases/internal/service/notification"
	jwtauth "github.com/jwalitptl/lab-cases/pkg/auth"
	"github.com/jwalitptl/lab-cases/pkg/logger"
	"github.com/jwalitptl/lab-cases/pkg/messaging"
	"github.com/jwalitptl/lab-cases/pkg/messaging/redis"
	"github.com/jwalitptl/lab-cases/pkg/metrics"
	"github.com/jwalitptl/lab-cases/pkg/security"
	"github.com/jwalitptl/lab-cases/pkg/storage"
)

const metricsNamespace = "labcases"

func main() {
	configFile := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = *l.Zerolog()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(metricsNamespace, registry)

	// The persistence provider is chosen once; nothing below knows which.
	be, err := openBackend(cfg, l)
	if err != nil {
		l.Fatal(err, "failed to open persistence backend", "mode", cfg.ResolveBackend())
	}
	defer be.Close()
	checks := map[string]health.Checker{"store": be.Repo}

	// Change broadcast
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		rb, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL, MaxRetries: 3, PoolSize: 10}, l.Zerolog())
		if err != nil {
			l.Fatal(err, "failed to connect to Redis")
		}
		checks["redis"] = rb
		broker = rb
	} else {
		broker = messaging.NewLocalBroker(64)
	}

	// Notifications
	notifiers := notification.Multi{
		notification.NewWebhook(cfg.Notify.WebhookURL, time.Duration(cfg.Notify.WebhookTimeoutSeconds)*time.Second, m),
	}
	if cfg.Notify.SMTP.Enabled() {
		notifiers = append(notifiers, notification.NewLabEmail(email.NewSMTPService(cfg.Notify.SMTP), m))
	}

	// Identity
	hasher := security.NewBcryptHasher(0)
	userEntries := cfg.Auth.Users
	if len(userEntries) == 0 && cfg.ResolveBackend() == config.BackendMock {
		l.Warn(nil, "no users configured, using demo accounts")
		userEntries = auth.DemoUsers()
	}
	users, err := auth.UsersFromConfig(userEntries, hasher)
	if err != nil {
		l.Fatal(err, "invalid user directory")
	}
	identity := auth.NewService(users, hasher, jwtauth.NewJWTService(cfg.JWT.Secret, "lab-cases", cfg.JWT.Expiry()))

	// Case engine
	fetcher := storage.NewURLFetcher(&http.Client{Timeout: 30 * time.Second}, be.Objects)
	builder := bundle.NewBuilder(fetcher, l.With("component", "bundle"), m)
	caseSvc := cases.NewService(be.Repo, notifiers, broker, builder, l.With("component", "cases"), m)

	// Setup router
	r := router.NewRouter(middleware.NewAuthMiddleware(identity), router.Handlers{
		Auth:    authhandler.NewHandler(identity),
		Cases:   caseshandler.NewHandler(caseSvc),
		Labs:    labs.NewHandler(caseSvc),
		Events:  events.NewHandler(broker, l.With("component", "events")),
		Health:  health.NewHandler(checks),
		Metrics: promhandler.New(metricsNamespace, registry),
	}, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		RequestTimeout:   cfg.Server.Timeout(),
		MaxUploadBytes:   cfg.Server.MaxUploadBytes,
	})
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		l.Info("server listening", "addr", srv.Addr, "backend", cfg.ResolveBackend())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("shutting down server...")

	// Closing the broker first ends open event streams.
	broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.Error(err, "server forced to shutdown")
	}

	l.Info("server exited properly")
}
