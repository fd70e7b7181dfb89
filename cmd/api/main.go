package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/api/handlers"
	"github.com/docchat/backend/internal/cache/redis"
	"github.com/docchat/backend/internal/chunker"
	"github.com/docchat/backend/internal/extract"
	"github.com/docchat/backend/internal/index"
	"github.com/docchat/backend/internal/ingestion"
	"github.com/docchat/backend/internal/llm"
	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/middleware/ratelimit"
	"github.com/docchat/backend/internal/query"
	"github.com/docchat/backend/internal/session"
	"github.com/docchat/backend/internal/storage/sqlite"
	"github.com/docchat/backend/pkg/config"
	appLogger "github.com/docchat/backend/pkg/logger"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting document QA API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	indexStore := index.NewStore(cfg.Index.Dir)
	llmFactory := llm.NewFactory(cfg.LLM)
	splitter := chunker.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)

	processor := ingestion.NewProcessor(sqliteClient, indexStore, splitter, extract.NewPDF())
	engine := query.NewEngine(sqliteClient, indexStore, cacheClient, cfg.Retrieval, llmFactory.ModelName())

	ledgers := session.NewRegistry()
	locks := session.NewLocks()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	authHandler := handlers.NewAuthHandler(sqliteClient)
	documentHandler := handlers.NewDocumentHandler(sqliteClient, processor, llmFactory, locks)
	queryHandler := handlers.NewQueryHandler(sqliteClient, engine, llmFactory, ledgers, locks)
	wsHandler := handlers.NewWebSocketHandler(sqliteClient, engine, llmFactory, ledgers, locks)

	api := app.Group("/api/v1", limiter.Middleware())

	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	api.Post("/documents", documentHandler.Upload)
	api.Post("/documents/reindex", documentHandler.Reindex)
	api.Get("/documents", documentHandler.List)

	api.Post("/query", queryHandler.Ask)
	api.Get("/query/history", queryHandler.History)
	api.Get("/query/history/export", queryHandler.ExportHistory)
	api.Delete("/query/history", queryHandler.ClearHistory)
	api.Get("/documents/passages", queryHandler.Passages)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Shutdown error", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
