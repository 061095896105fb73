package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/cache"
	"github.com/storehook/webhook-svc/internal/config"
	"github.com/storehook/webhook-svc/internal/crm"
	"github.com/storehook/webhook-svc/internal/database"
	"github.com/storehook/webhook-svc/internal/delivery"
	"github.com/storehook/webhook-svc/internal/dispatcher"
	"github.com/storehook/webhook-svc/internal/emitter"
	"github.com/storehook/webhook-svc/internal/handlers"
	"github.com/storehook/webhook-svc/internal/logger"
	"github.com/storehook/webhook-svc/internal/queue"
	"github.com/storehook/webhook-svc/internal/rabbitmq"
	"github.com/storehook/webhook-svc/internal/routes"
	"github.com/storehook/webhook-svc/internal/store"
	"github.com/storehook/webhook-svc/internal/sweeper"
)

func main() {
	// .env is optional, real deployments set environment variables directly
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	// Connect to PostgreSQL and apply migrations
	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(&cfg.Database, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to Redis
	rdb, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()

	// Connect to RabbitMQ
	rmq := rabbitmq.NewConnection(&cfg.RabbitMQ, log)
	if err := rmq.Connect(); err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	if err := rmq.DeclareDeliveryTopology(cfg.Dispatcher.DeliveryExchange, cfg.Dispatcher.DeliveryRoutingKey, cfg.Dispatcher.DeliveryQueue); err != nil {
		log.Fatal("Failed to declare delivery topology", zap.Error(err))
	}

	// Wire the dispatcher and its trigger surfaces
	st := store.New(db)
	subs := cache.NewSubscriptionCache(rdb, st, cfg.Redis.SubscriptionTTL, log)
	client := delivery.NewClient(cfg.Dispatcher.HTTPTimeout, cfg.Dispatcher.MaxResponseBodySize, log)
	disp := dispatcher.New(&cfg.Dispatcher, st, subs, client, log)

	publisher := queue.NewPublisher(rmq, &cfg.Dispatcher)
	emit := emitter.New(st, publisher, cfg.Dispatcher.MaxAttempts, log)
	crmClient := crm.NewClient(&cfg.CRM)

	taskConsumer := queue.NewTaskConsumer(&cfg.Dispatcher, rmq, disp, log)
	if err := taskConsumer.Start(); err != nil {
		log.Fatal("Failed to start task consumer", zap.Error(err))
	}
	defer func() {
		if err := taskConsumer.Stop(); err != nil {
			log.Error("Error stopping task consumer", zap.Error(err))
		}
	}()

	sweep := sweeper.New(disp, cfg.Dispatcher.SweepInterval, log)
	sweep.Start()
	defer sweep.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Commerce Webhook Service",
		ServerHeader: "Fiber",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,x-webhook-secret",
	}))

	routes.SetupRoutes(app,
		handlers.NewHealthHandler(db, rdb, rmq),
		handlers.NewWebhookHandler(disp, cfg.Dispatcher.DispatchSecret, log),
		handlers.NewPaymentHandler(st, crmClient, emit, disp, log),
		handlers.NewTasksHandler(db, log),
	)

	// Start server in a goroutine
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Server starting",
			zap.String("address", addr),
		)
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
