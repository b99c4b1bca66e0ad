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

	"kanzey-backend/config"
	"kanzey-backend/internal/api"
	"kanzey-backend/internal/broker"
	"kanzey-backend/internal/redisclient"
	"kanzey-backend/internal/service"
	"kanzey-backend/internal/store"
	"kanzey-backend/internal/util"
	"kanzey-backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting kanzey backend")

	tp, err := util.InitTracer("kanzey-backend", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTickets)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	intouchClient := service.NewInTouchClient(cfg.InTouch, cfg.Server.FrontendURL)
	inventoryService := service.NewInventoryService(db, redisClient)
	purchaseService := service.NewPurchaseService(db, inventoryService, intouchClient, cfg.Server.FrontendURL)
	paymentService := service.NewPaymentService(db, db, inventoryService, eventPublisher, intouchClient, redisClient)
	verificationService := service.NewVerificationService(db, eventPublisher)
	eventService := service.NewEventService(db, inventoryService)

	ctx := context.Background()
	if err := inventoryService.SyncToCache(ctx); err != nil {
		log.Printf("Failed to sync availability to Redis: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	mailer, err := service.NewMailer(cfg.SMTP)
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
	}

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTickets, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, mailer)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	sweeper, err := worker.NewExpirySweeper(db,
		time.Duration(cfg.Business.PaymentTimeoutSeconds)*time.Second,
		time.Duration(cfg.Business.SweepIntervalSeconds)*time.Second)
	if err != nil {
		log.Fatalf("Failed to initialize expiry sweeper: %v", err)
	}
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start expiry sweeper: %v", err)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.FrontendURL}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	handler := api.NewHandler(eventService, purchaseService, paymentService, verificationService, cfg.Auth.JWTSecret)
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
	notificationWorker.Stop()
	sweeper.Stop()

	log.Println("Server exited")
}
