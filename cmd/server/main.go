package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/11im/whisper-api/internal/api"
	"github.com/11im/whisper-api/internal/config"
	"github.com/11im/whisper-api/internal/device"
	"github.com/11im/whisper-api/internal/health"
	"github.com/11im/whisper-api/internal/logging"
	"github.com/11im/whisper-api/internal/storage"
	"github.com/11im/whisper-api/internal/stt"
	"github.com/11im/whisper-api/internal/upload"
)

func main() {
	startedAt := time.Now()

	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Options{Verbose: cfg.LogVerbose, JSON: cfg.LogJSON})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	devices := device.Detect(logger)
	info := devices.Probe(context.Background())
	deviceName := "cpu"
	if info.Available {
		deviceName = "cuda"
	}
	logger.Info("device detected",
		zap.String("device", deviceName),
		zap.Int("gpu_count", len(info.GPUs)))

	engineStart := time.Now()
	engine, err := stt.NewEngine(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize speech engine", zap.Error(err))
	}
	logger.Info("speech engine ready",
		zap.String("engine", engine.Name()),
		zap.String("model", cfg.Model),
		zap.Duration("startup", time.Since(engineStart)))

	store, err := storage.New(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal("failed to initialize upload storage", zap.Error(err))
	}

	coordinator := stt.NewCoordinator(engine, cfg.EngineTimeout, logger)
	reporter := health.NewReporter(modelLabel(cfg), deviceName, devices, startedAt)

	r := gin.New()
	r.Use(
		api.RequestLogger(logger),
		api.Recovery(logger),
		corsMiddleware(),
		api.BodyLimit(cfg.MaxUploadBytes()),
	)
	api.RegisterRoutes(r, api.NewHandler(store, coordinator, reporter, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Minute,
		WriteTimeout: serverWriteTimeout(cfg.EngineTimeout),
		IdleTimeout:  2 * time.Minute,
	}

	logger.Info("whisper API listening",
		zap.String("addr", srv.Addr),
		zap.Strings("extensions", upload.Extensions()),
		zap.Int64("max_upload_mb", cfg.MaxUploadMB))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func modelLabel(cfg *config.Config) string {
	if cfg.Engine == config.EngineOpenAI {
		return cfg.OpenAIModel
	}
	return "whisper-" + cfg.Model
}

// serverWriteTimeout leaves room for a full engine run plus upload handling.
// An unbounded engine means an unbounded response window.
func serverWriteTimeout(engineTimeout time.Duration) time.Duration {
	if engineTimeout <= 0 {
		return 0
	}
	return engineTimeout + 5*time.Minute
}

// corsMiddleware adds CORS headers for browser and mobile clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
