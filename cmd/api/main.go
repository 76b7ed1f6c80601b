package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"mailburst/internal/config"
	"mailburst/internal/handler"
	"mailburst/internal/metrics"
	"mailburst/internal/middleware"
	"mailburst/internal/schedule"
	"mailburst/internal/service"
)

const version = "1.0.0"

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

	m := metrics.New()
	campaignSvc := service.NewCampaignService(db, schedule.NewPlanner(), m)
	healthSvc := service.NewHealthService(db, cfg.GetRabbitMQURL(), version)

	campaignHandler := handler.NewCampaignHandler(campaignSvc)
	healthHandler := handler.NewHealthHandler(healthSvc)

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logger)

	router.HandleFunc("/campaigns", campaignHandler.Create).Methods("POST")
	router.HandleFunc("/campaigns/{id}", campaignHandler.GetByID).Methods("GET")
	router.HandleFunc("/scheduled", campaignHandler.ListScheduled).Methods("GET")
	router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("API server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logrus.Info("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Error during shutdown: %v", err)
	}

	logrus.Info("API server stopped")
}
