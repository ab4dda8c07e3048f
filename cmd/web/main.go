package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"estate/internal/config"
	"estate/internal/discovery"
	"estate/internal/events"
	"estate/internal/logger"
	"estate/internal/marketapi"
	"estate/internal/metrics"
	"estate/internal/session"
	"estate/internal/web"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "estate-web"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: serviceName,
	})
	logger.SetDefault(log)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.Info("Starting web service",
		"port", cfg.Port,
		"redis_addr", cfg.RedisAddr,
		"consul_enabled", cfg.ConsulEnabled(),
		"kafka_enabled", cfg.KafkaEnabled(),
	)

	// Session snapshots
	rdb := session.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("Redis not reachable, sessions will not survive reloads until it is", "error", err)
	} else {
		slog.Info("Connected to Redis")
	}
	cancelPing()

	// Marketplace API location
	var consulClient *discovery.Client
	if cfg.ConsulEnabled() {
		consulClient, err = discovery.NewClientWithToken(cfg.ConsulAddr, cfg.ConsulToken)
		if err != nil {
			slog.Error("Failed to create Consul client", "error", err)
			os.Exit(1)
		}
		slog.Info("Connected to Consul")
	}

	var resolver discovery.Resolver
	if cfg.MarketAPIURL != "" {
		resolver, err = discovery.NewStaticResolver(cfg.MarketAPIURL)
		if err != nil {
			slog.Error("Invalid MARKET_API_URL", "error", err)
			os.Exit(1)
		}
	} else {
		resolver = discovery.NewConsulResolver(consulClient, cfg.MarketAPIService)
	}

	// Observability
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	observers := []session.Observer{m.ObserveChange}

	if cfg.KafkaEnabled() {
		producer, err := events.NewProducer(events.ProducerConfig{Brokers: cfg.KafkaBrokers}, log)
		if err != nil {
			slog.Warn("Kafka producer unavailable, session events disabled", "error", err)
		} else {
			defer producer.Close()
			notifier := events.NewSessionNotifier(producer, cfg.SessionEventsTopic, log)
			observers = append(observers, notifier.Observe)
		}
	}

	router := web.SetupRouter(web.Deps{
		Backend:          session.NewRedisBackend(rdb),
		Market:           marketapi.NewClient(resolver, cfg.HTTPClientTimeout),
		Proxy:            web.NewProxyHandler(resolver),
		SnapshotTTL:      cfg.SnapshotTTL,
		SecureCookies:    cfg.Production(),
		AllowedOrigins:   cfg.AllowedOrigins,
		SessionObservers: observers,
		DecisionObserver: m.ObserveDecision,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("Web service listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Announce ourselves once the listener is up
	serviceID := fmt.Sprintf("%s-%s", serviceName, cfg.Host)
	if consulClient != nil {
		registerWithConsul(consulClient, serviceID, cfg)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down web service")

	if consulClient != nil {
		if err := consulClient.Deregister(serviceID); err != nil {
			slog.Warn("Failed to deregister from Consul", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Web service stopped")
}

// registerWithConsul replaces any stale registration left by a crash
func registerWithConsul(client *discovery.Client, serviceID string, cfg *config.Config) {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		slog.Warn("Skipping Consul registration, port is not numeric", "port", cfg.Port)
		return
	}

	_ = client.Deregister(serviceID)

	err = client.Register(discovery.Registration{
		ID:        serviceID,
		Name:      serviceName,
		Address:   cfg.Host,
		Port:      port,
		Tags:      []string{"web", "session"},
		HealthURL: fmt.Sprintf("http://%s:%s/health", cfg.Host, cfg.Port),
	})
	if err != nil {
		slog.Warn("Failed to register with Consul", "error", err)
		return
	}
	slog.Info("Registered with Consul", "service_id", serviceID)
}
