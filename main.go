package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"leadflow/config"
	"leadflow/engine"
	"leadflow/middleware"
	"leadflow/routes"
	"leadflow/store"
	"leadflow/utils"
	"leadflow/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "LEADFLOW: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Wire the executor: store, mailer, dispatcher, poller
	executionStore := store.NewGormStore(config.DB)
	mailer := utils.NewSMTPMailer(config.AppConfig.SMTP)
	dispatcher := engine.NewDispatcher(executionStore, mailer,
		time.Duration(config.AppConfig.SendTimeout)*time.Second)
	poller := engine.NewPoller(executionStore, dispatcher, config.AppConfig.PollBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the sequence worker: polls due executions on a fixed interval
	sequenceWorker := worker.NewSequenceWorker(poller,
		time.Duration(config.AppConfig.PollInterval)*time.Second,
		log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags))
	go sequenceWorker.Start(ctx)

	// Start the reply worker: ingests inbox replies for the "replied" predicate
	replyWorker := worker.NewReplyWorker(config.DB, log.New(os.Stdout, "REPLY: ", log.LstdFlags))
	go replyWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, poller)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
