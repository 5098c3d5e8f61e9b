package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/app"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/configs"
	"go.uber.org/zap"
)

// @title       Storefront Orders API
// @version     1.0
// @description Order ledger, Razorpay payment reconciliation and invoice delivery.
// @BasePath    /
func main() {
	// Initialize logger
	pkg.InitLogger("order-api")
	logger := pkg.Logger

	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, cleanup, err := app.NewApp(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}

	// Start a server in goroutine to allow signal handling
	go func() {
		logger.Sugar().Infow("Order API started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Handle shutdown signals (SIGINT, SIGTERM) for a K8s pod termination grace period
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	// Drain in-flight requests before closing pools and the producer
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	cleanup()

	_ = logger.Sync()
}
