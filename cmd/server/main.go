package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/gitsage/gitsage/internal/adapter/ai"
	"github.com/gitsage/gitsage/internal/adapter/githost"
	"github.com/gitsage/gitsage/internal/adapter/store"
	"github.com/gitsage/gitsage/internal/handler"
	"github.com/gitsage/gitsage/internal/middleware"
	"github.com/gitsage/gitsage/internal/service"
	"github.com/gitsage/gitsage/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting GitSage",
		"port", cfg.Port,
		"chat_model", cfg.GeminiChatModel,
		"embed_model", cfg.GeminiEmbedModel,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	vectorStore := store.NewVectorStore(pgStore, cfg.EmbeddingDimension)

	// ── Adapters ─────────────────────────────────────────────────────────
	gemini := ai.NewGeminiProvider(ai.GeminiConfig{
		BaseURL:    cfg.GeminiBaseURL,
		APIKey:     cfg.GeminiAPIKey,
		ChatModel:  cfg.GeminiChatModel,
		EmbedModel: cfg.GeminiEmbedModel,
	})
	github := githost.NewGitHubHost()

	// ── Services ─────────────────────────────────────────────────────────
	estimator := service.NewCreditEstimator(github, cfg.CrawlConcurrency)
	crawler := service.NewRepoCrawler(github, service.DefaultIgnoredFiles, cfg.CrawlConcurrency)
	indexer := service.NewIndexingPipeline(crawler, gemini, vectorStore, pgStore, cfg.IndexConcurrency)
	qaService := service.NewQAService(gemini, vectorStore)
	poller := service.NewCommitPoller(github, gemini, pgStore, cfg.CommitPollLimit)
	projectService := service.NewProjectService(pgStore, vectorStore, estimator, indexer, poller)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// ── Public Routes ────────────────────────────────────────────────────
	webhookHandler := handler.NewWebhookHandler(cfg.PaymentWebhookSecret, pgStore)
	webhookHandler.Register(app)

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtMiddleware := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	})

	api := app.Group("/api/v1", jwtMiddleware)

	jobTracker := handler.NewJobTracker()

	projectHandler := handler.NewProjectHandler(projectService, indexer, pgStore, jobTracker)
	projectHandler.Register(api)

	qaHandler := handler.NewQAHandler(qaService)
	qaHandler.Register(api)

	commitHandler := handler.NewCommitHandler(pgStore, poller)
	commitHandler.Register(api)

	jobsHandler := handler.NewJobsHandler(jobTracker)
	jobsHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
