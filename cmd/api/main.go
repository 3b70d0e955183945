package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/examgen/backend/internal/api/handlers"
	"github.com/examgen/backend/internal/cache/redis"
	"github.com/examgen/backend/internal/embedding"
	"github.com/examgen/backend/internal/exam"
	"github.com/examgen/backend/internal/ingestion"
	"github.com/examgen/backend/internal/llm"
	"github.com/examgen/backend/internal/metrics"
	"github.com/examgen/backend/internal/middleware/ratelimit"
	"github.com/examgen/backend/internal/middleware/security"
	"github.com/examgen/backend/internal/retrieval"
	"github.com/examgen/backend/internal/storage/sqlite"
	"github.com/examgen/backend/internal/vector/milvus"
	"github.com/examgen/backend/pkg/config"
	appLogger "github.com/examgen/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting exam generation API server")

	metrics.Register()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(context.Background(), cfg.Milvus.Endpoint)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background(), cfg.Milvus.CollectionName, cfg.Milvus.VectorDim); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.Milvus.VectorDim,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	var embedder embedding.Embedder = llmClient
	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer cache.Close()
			embedder = embedding.NewCached(llmClient, cache)
		}
	}

	coordinator := ingestion.NewCoordinator(sqliteClient, embedder, milvusClient, ingestion.Config{
		Collection:    cfg.Milvus.CollectionName,
		ChunkSize:     cfg.Ingest.ChunkSize,
		ChunkOverlap:  cfg.Ingest.ChunkOverlap,
		BatchSize:     cfg.Ingest.BatchSize,
		MaxRetries:    cfg.Ingest.MaxRetries,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
	})

	retriever := retrieval.NewRetriever(embedder, milvusClient, cfg.Milvus.CollectionName)
	generator := exam.NewQuestionGenerator(llmClient)
	controller := exam.NewController(llmClient, milvusClient)
	examService := exam.NewService(controller, retriever, generator, exam.NewLatestCell(), exam.ServiceConfig{
		MaxParallelQuestions: cfg.Exam.MaxParallelQuestions,
		QuestionTimeout:      time.Duration(cfg.Exam.QuestionTimeoutSec) * time.Second,
		RetrieveTopK:         cfg.Exam.RetrieveTopK,
	})

	if err := controller.Initialize(context.Background()); err != nil {
		appLogger.Warn("Exam service initialization failed, generation disabled until re-initialized", zap.Error(err))
	}

	go coordinator.IngestDirectory(context.Background(), cfg.Ingest.PDFDir)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 30,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	documentHandler := handlers.NewDocumentHandler(coordinator, sqliteClient)
	paperHandler := handlers.NewPaperHandler(examService, sqliteClient)
	statusHandler := handlers.NewStatusHandler(controller)
	searchHandler := handlers.NewSearchHandler(retriever)
	wsHandler := handlers.NewWebSocketHandler(examService)

	api := app.Group("/api/v1")

	api.Post("/documents", limiter.Middleware(), documentHandler.UploadDocument)
	api.Get("/documents", documentHandler.ListDocuments)

	api.Post("/papers/generate", limiter.Middleware(), paperHandler.GeneratePaper)
	api.Get("/papers/latest", paperHandler.LatestPaper)
	api.Post("/papers/save", paperHandler.SaveLatest)
	api.Get("/papers", paperHandler.ListSaved)
	api.Get("/papers/:id", paperHandler.GetSaved)
	api.Delete("/papers/:id", paperHandler.DeleteSaved)

	api.Post("/search", searchHandler.Search)

	api.Get("/status", statusHandler.Status)
	api.Post("/initialize", statusHandler.Initialize)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.Handler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/generate", websocket.New(wsHandler.HandleConnection))

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
