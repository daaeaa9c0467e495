package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ringnet/hazardcore/internal/api"
	"github.com/ringnet/hazardcore/internal/config"
	"github.com/ringnet/hazardcore/internal/dashboard"
	"github.com/ringnet/hazardcore/internal/dispatch"
	"github.com/ringnet/hazardcore/internal/events"
	"github.com/ringnet/hazardcore/internal/ingestion"
	"github.com/ringnet/hazardcore/internal/logging"
	"github.com/ringnet/hazardcore/internal/matcher"
	"github.com/ringnet/hazardcore/internal/observability"
	"github.com/ringnet/hazardcore/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	store, err := repository.NewSQLiteStore(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	// Bus carries fresh inserts from ingestion to the dispatcher.
	bus := events.NewBus()

	mgr := ingestion.NewManager(cfg, store, bus, metrics)
	mgr.Start(ctx)

	var delivery dispatch.Delivery
	var kafkaDelivery *dispatch.KafkaDelivery
	if cfg.Kafka.Enabled {
		kafkaDelivery = dispatch.NewKafkaDelivery(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		delivery = kafkaDelivery
		slog.Info("kafka delivery enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		delivery = dispatch.LogDelivery{}
	}

	dispatcher := dispatch.New(store, store, delivery, metrics, cfg.Alerting.DefaultRadiusKm)
	go dispatcher.Run(ctx, bus)

	m := matcher.New(store)
	agg := dashboard.New(store, store, m, nil,
		cfg.Alerting.RecencyWindow, cfg.Alerting.NearestLimit, cfg.Alerting.DefaultRadiusKm)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-RingNet-User"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(5)) // 5 req/s global limit

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := api.NewHandler(store, store, store, m, agg)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	bus.Close() // Stops the dispatcher loop
	if kafkaDelivery != nil {
		if err := kafkaDelivery.Close(); err != nil {
			slog.Error("kafka writer close error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
