package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/existflow/goalpost/internal/db"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/server"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := logger.Init(logger.Config{
		Level:      logger.ParseLevel(os.Getenv("LOG_LEVEL")),
		FilePath:   os.Getenv("LOG_FILE"),
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     7,
		MaxBackups: 5,
		Console:    true,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Without DATABASE_URL the server keeps its records in ~/.goalpost/goals.db
	var database *db.DB
	var err error
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		database, err = db.OpenURL(dbURL)
	} else {
		database, err = db.OpenDefault()
	}
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	srv := server.New(database, logger.Default())

	go func() {
		logger.Info("Goalpost record server starting", logger.F("port", port), logger.F("dialect", database.Dialect()))
		if err := srv.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("Shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", logger.Err(err))
	}
}
