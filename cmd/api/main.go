package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zombar/flash"
	"github.com/zombar/flash/api"
	"github.com/zombar/flash/db"
	"github.com/zombar/flash/oracle"
	"github.com/zombar/flash/storage"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Local development overrides; absence is not an error.
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded environment from .env")
	}

	logger.Info("flash service initializing", "version", "1.0.0")

	// Default values
	defaultPort := getEnv("PORT", "8080")
	defaultStoragePath := getEnv("STORAGE_BASE_PATH", "./storage")
	defaultOracleURL := getEnv("ORACLE_BASE_URL", "")
	defaultOracleModel := getEnv("ORACLE_MODEL", "gpt-4o-mini")
	defaultSearchURL := getEnv("SEARCH_URL", "")
	defaultLinkScoreThreshold := getEnv("LINK_SCORE_THRESHOLD", "0.3")

	// Parse link score threshold
	linkScoreThreshold, err := strconv.ParseFloat(defaultLinkScoreThreshold, 64)
	if err != nil {
		logger.Warn("invalid LINK_SCORE_THRESHOLD value, using default",
			"provided", defaultLinkScoreThreshold,
			"default", 0.3,
			"error", err,
		)
		linkScoreThreshold = 0.3
	}

	// Command-line flags (override environment variables)
	port := flag.String("port", defaultPort, "Server port")
	oracleURL := flag.String("oracle-url", defaultOracleURL, "OpenAI-compatible gateway base URL (empty for api.openai.com)")
	oracleModel := flag.String("oracle-model", defaultOracleModel, "Model to use for suggestions")
	searchURL := flag.String("search-url", defaultSearchURL, "SearXNG-compatible search instance URL (empty disables web search)")
	scoreThreshold := flag.Float64("link-score-threshold", linkScoreThreshold, "Minimum relevance for an internal link (0.0-1.0)")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	flag.Parse()

	// PostgreSQL database configuration (required)
	dbHost := getEnv("DB_HOST", "")
	if dbHost == "" {
		logger.Error("DB_HOST environment variable is required")
		os.Exit(1)
	}

	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "flash")
	dbPassword := getEnv("DB_PASSWORD", "flash_dev_pass")
	dbName := getEnv("DB_NAME", "flash")

	dbConfig := db.Config{
		DSN: fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort, dbUser, dbPassword, dbName),
	}
	logger.Info("using PostgreSQL database", "host", dbHost, "port", dbPort, "database", dbName)

	engineConfig := flash.DefaultConfig()
	engineConfig.LinkScoreThreshold = *scoreThreshold

	oracleAPIKey := getEnv("ORACLE_API_KEY", "")
	if oracleAPIKey == "" {
		logger.Warn("ORACLE_API_KEY not set, running with deterministic fallbacks only")
	}

	// Optional S3-compatible snapshot storage (MinIO, Spaces, AWS).
	var s3Config *storage.S3Config
	if bucket := getEnv("S3_BUCKET", ""); bucket != "" {
		s3Config = &storage.S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          bucket,
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "") == "true",
		}
		logger.Info("using S3 snapshot storage", "bucket", bucket, "endpoint", s3Config.Endpoint)
	}

	config := api.Config{
		Addr:         ":" + *port,
		DBConfig:     dbConfig,
		EngineConfig: engineConfig,
		OracleConfig: oracle.Config{
			APIKey:  oracleAPIKey,
			BaseURL: *oracleURL,
			Model:   *oracleModel,
			Timeout: engineConfig.OracleTimeout,
		},
		SearchURL:   *searchURL,
		StoragePath: defaultStoragePath,
		S3Config:    s3Config,
		CORSEnabled: !*disableCORS,
	}

	server, err := api.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Start server in a goroutine
	go func() {
		logger.Info("flash service starting",
			"port", *port,
			"database_host", dbHost,
			"database_name", dbName,
			"storage_path", defaultStoragePath,
			"oracle_model", *oracleModel,
			"oracle_configured", oracleAPIKey != "",
			"search_configured", *searchURL != "",
			"link_score_threshold", *scoreThreshold,
		)

		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
