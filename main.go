package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threadboard/internal/app"
	"threadboard/internal/config"
	"threadboard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := utils.NewLogger(os.Getenv("ENV"))
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}

	utils.LoadEnv(logger)

	cfg := config.LoadConfig()

	// .env may have changed ENV.
	if cfg.Env != os.Getenv("ENV") || cfg.Env == "" {
		if l, err := utils.NewLogger(cfg.Env); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Config loaded",
		zap.String("server_port", cfg.ServerPort),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("upload_driver", cfg.UploadDriver),
		zap.Int("posts_per_page", cfg.PostsPerPage),
		zap.String("env", cfg.Env),
	)

	application, err := app.Bootstrap(context.Background(), &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to bootstrap application", zap.Error(err))
	}

	addr := ":" + cfg.ServerPort
	srv := &http.Server{
		Addr:    addr,
		Handler: application.Router.Engine,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", "localhost"+addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped with error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := application.Close(ctx); err != nil {
		logger.Error("Failed to close post store", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}
