package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/adapters/camera"
	"github.com/lumenlabs/lumen-server/adapters/devices"
	"github.com/lumenlabs/lumen-server/adapters/display"
	"github.com/lumenlabs/lumen-server/adapters/llm"
	"github.com/lumenlabs/lumen-server/adapters/mongo"
	"github.com/lumenlabs/lumen-server/adapters/stt"
	"github.com/lumenlabs/lumen-server/adapters/tts"
	"github.com/lumenlabs/lumen-server/domain/repositories"
	"github.com/lumenlabs/lumen-server/internal/api"
	"github.com/lumenlabs/lumen-server/internal/assistant"
	"github.com/lumenlabs/lumen-server/internal/websocket"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()

	// Initialize adapters
	gemini, err := llm.NewGemini(ctx, llm.GeminiConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini", zap.Error(err))
	}

	speechOut, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Eleven Labs TTS", zap.Error(err))
	}

	var speechIn repositories.SpeechToText
	if os.Getenv("USE_MOCK_STT") == "true" {
		speechIn = stt.NewMockSpeechToText(logger)
	} else {
		speechIn = stt.NewGoogleSpeechToText(logger)
	}

	cam := camera.NewHTTPCamera(0, logger)
	hud := display.NewWSDisplay(logger)
	registry := devices.NewInMemoryRegistry()

	// Durable conversation memory is optional; without Mongo the
	// assistant still runs on its in-process history.
	var memory repositories.MemoryService
	if os.Getenv("MONGODB_URI") != "" {
		mongoClient, err := mongo.NewClient(ctx, mongo.ClientConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Close(shutdownCtx)
		}()
		memory = mongo.NewConversationRepository(mongoClient.Database)
	} else {
		logger.Warn("MONGODB_URI not set, conversation persistence disabled")
	}

	// Initialize WebSocket hub and the assistant pipeline. The hub is
	// the pipeline's event sink, so it is created first and wired after.
	hub := websocket.NewHub(speechIn, logger)
	service := assistant.NewService(
		assistant.DefaultConfig(),
		cam,
		gemini,
		gemini,
		speechOut,
		hud,
		memory,
		hub,
		logger,
	)
	hub.SetService(service)
	go hub.Run()

	reaper := websocket.NewLiveReaper(service, time.Minute, logger)
	reaper.Start()
	defer reaper.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, hub, service, registry, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
