package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ordersvc/internal/clients"
	"ordersvc/internal/config"
	"ordersvc/internal/handlers"
	"ordersvc/internal/models"
	"ordersvc/internal/repositories"
	"ordersvc/internal/services"
	"ordersvc/pkg/logger"
	"ordersvc/pkg/metrics"
	"ordersvc/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()
	logger.New(logger.Options{Service: cfg.ServiceName, Level: cfg.LogLevel})

	// --- Database ---
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.OrderReceipt{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	slog.Info("connected to the database")

	// --- Messaging client ---
	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
		URL:            cfg.RabbitMQURL,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
	}
	defer mqClient.Close()

	// --- Wiring ---
	orderRepo := repositories.NewGORMOrderRepository(db)
	catalog := clients.NewCatalogClient(mqClient)
	payments := clients.NewPaymentClient(mqClient)
	orderService := services.NewOrderService(orderRepo, catalog, payments)

	orderMetrics := metrics.NewOrderMetrics(cfg.ServiceName)
	orderHandler := handlers.NewOrderHandler(orderService, orderMetrics)
	if err := orderHandler.Register(mqClient); err != nil {
		log.Fatalf("Failed to register message handlers: %v", err)
	}
	slog.Info("message handlers registered")

	// --- Metrics endpoint ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server failed: %v", err)
		}
	}()
	slog.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during metrics server shutdown", "error", err)
	}

	// RabbitMQ connection close is handled by the defer above.
	slog.Info("stopped")
}
