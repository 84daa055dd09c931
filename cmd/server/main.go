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

	"pass-service/config"
	"pass-service/internal/api"
	"pass-service/internal/broker"
	"pass-service/internal/mailer"
	"pass-service/internal/redisclient"
	"pass-service/internal/service"
	"pass-service/internal/store"
	"pass-service/internal/util"
	"pass-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pass service")

	tp, err := util.InitTracer("pass-service", cfg.Observ.JaegerEndpoint)
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

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPass)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	mailTransport, err := mailer.NewMailer(
		cfg.Mail.Host, cfg.Mail.Port,
		cfg.Mail.Username, cfg.Mail.Password,
		cfg.Mail.FromName, cfg.Mail.FromEmail)
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
	}

	dispatchClient := service.NewHTTPDispatchClient(cfg.Dispatch.BaseURL, cfg.Dispatch.CallbackBaseURL)

	issuer := service.NewIssuer(db)
	notifier := service.NewNotifier(db, mailTransport,
		time.Duration(cfg.Mail.TimeoutSeconds)*time.Second,
		cfg.Business.PortalBaseURL)
	reconciler := service.NewReconciler(db, redisClient,
		time.Duration(cfg.Business.DedupWindowSeconds)*time.Second,
		eventPublisher)
	configStore := service.NewCachedConfigStore(db, redisClient, 5*time.Minute)
	processor := service.NewProcessor(db, configStore, db, issuer, notifier, dispatchClient, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweepWorker := worker.NewSweepWorker(processor, redisClient,
		time.Duration(cfg.Business.SweepIntervalSeconds)*time.Second)
	go func() {
		if err := sweepWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Sweep worker error: %v", err)
		}
	}()

	rebuyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPass, cfg.Kafka.ConsumerGroup)
	rebuyWorker := worker.NewRebuyWorker(rebuyConsumer, db, dispatchClient,
		time.Duration(cfg.Business.RebuyDelayDays)*24*time.Hour)
	go func() {
		if err := rebuyWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Rebuy worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(reconciler, processor, notifier, db)
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
	sweepWorker.Stop()
	rebuyWorker.Stop()

	log.Println("Server exited")
}
