package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-reconciler/config"
	"payment-reconciler/internal/api"
	"payment-reconciler/internal/broker"
	"payment-reconciler/internal/provider"
	"payment-reconciler/internal/redisclient"
	"payment-reconciler/internal/service"
	"payment-reconciler/internal/store"
	"payment-reconciler/internal/util"
	"payment-reconciler/internal/webhook"
	"payment-reconciler/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting payment reconciler")

	tp, err := util.InitTracer("payment-reconciler", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(
		cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		time.Duration(cfg.Webhook.DedupeTTLSeconds)*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	auditProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAudit)
	defer auditProducer.Close()
	resyncProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicResync)
	defer resyncProducer.Close()
	log.Println("Kafka producers initialized")

	auditTrail := broker.NewAuditTrail(auditProducer, db)
	resyncPublisher := broker.NewResyncPublisher(resyncProducer)

	catalog := provider.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.AccessToken,
		cfg.Provider.LocationID,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second)

	preorderReconciler := service.NewPreorderReconciler(db)
	inventoryAdjuster := service.NewInventoryAdjuster(catalog, cfg.Provider.LocationID)
	orderReconciler := service.NewOrderReconciler(db, inventoryAdjuster, preorderReconciler, resyncPublisher)
	checkout := service.NewPaymentCompletionService(catalog, orderReconciler)

	dispatcher := webhook.NewEventDispatcher(catalog, orderReconciler)
	gateway := webhook.NewGateway(
		[]byte(cfg.Webhook.SignatureKey),
		cfg.Webhook.SignatureHeader,
		cfg.Webhook.TimestampHeader,
		dispatcher, auditTrail, redisClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	resyncConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicResync, cfg.Kafka.ConsumerGroup)
	resyncWorker := worker.NewResyncWorker(
		resyncConsumer, catalog, inventoryAdjuster, resyncPublisher, redisClient,
		cfg.Webhook.ResyncMaxAttempts)
	go func() {
		if err := resyncWorker.Start(workerCtx); err != nil {
			log.Printf("Resync worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(checkout, preorderReconciler, gateway)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	resyncWorker.Stop()

	log.Println("Server exited")
}
