package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"mailburst/internal/config"
	"mailburst/internal/events"
	"mailburst/internal/metrics"
	"mailburst/internal/provider"
	"mailburst/internal/repository"
	"mailburst/internal/service"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.Fatalf("Failed to ping database: %v", err)
	}
	logrus.Info("Connected to database")

	// Outcome events are best-effort: a missing broker only disables them
	var publisher service.OutcomePublisher
	conn, err := events.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		logrus.WithError(err).Warn("RabbitMQ unavailable, outcome events disabled")
	} else {
		defer conn.Close()
		pub, err := events.NewPublisher(conn, cfg.RabbitMQ.Queue)
		if err != nil {
			logrus.WithError(err).Warn("Failed to create publisher, outcome events disabled")
		} else {
			publisher = pub
		}
	}

	m := metrics.New()

	// Serve this process's collectors; the API's /metrics is a separate
	// registry and never sees sweep counters
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.Dispatcher.MetricsPort,
		Handler: metricsMux,
	}
	go func() {
		logrus.WithField("port", cfg.Dispatcher.MetricsPort).Info("Metrics server starting")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("Metrics server failed")
		}
	}()

	var mailer provider.Provider
	if cfg.Provider.APIKey != "" {
		mailer = provider.NewResendClient(cfg.Provider.APIKey, cfg.Provider.BaseURL)
		logrus.Info("Using Resend provider")
	} else {
		mailer = provider.NewMockSender(0.95)
		logrus.Warn("RESEND_API_KEY not set, using mock provider")
	}

	dispatcher := service.NewDispatcher(
		repository.NewCampaignRepository(db),
		repository.NewItemRepository(db),
		mailer,
		publisher,
		m,
		service.DispatcherConfig{
			SendTimeout:   cfg.Dispatcher.SendTimeout,
			Concurrency:   cfg.Dispatcher.Concurrency,
			BatchLimit:    cfg.Dispatcher.BatchLimit,
			SendingDomain: cfg.Provider.SendingDomain,
			FromAddress:   cfg.Provider.FromAddress,
			FromName:      cfg.Provider.FromName,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logrus.Info("Shutting down gracefully")
		cancel()
	}()

	logrus.WithField("interval", cfg.Dispatcher.Interval.String()).Info("Dispatcher started")

	ticker := time.NewTicker(cfg.Dispatcher.Interval)
	defer ticker.Stop()

	// One sweep right away so a restart picks up overdue items immediately
	runSweep(ctx, dispatcher)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logrus.WithError(err).Error("Error shutting down metrics server")
			}
			shutdownCancel()
			logrus.Info("Dispatcher stopped")
			return
		case <-ticker.C:
			runSweep(ctx, dispatcher)
		}
	}
}

func runSweep(ctx context.Context, d *service.Dispatcher) {
	if ctx.Err() != nil {
		return
	}
	if _, err := d.Sweep(ctx, time.Now().UTC()); err != nil {
		logrus.WithError(err).Error("Sweep failed")
	}
}
