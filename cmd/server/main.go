// Package main runs the meeting-notes sync server: Zoom recording webhooks
// in, Gemini analysis and GoHighLevel notes out.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-crm/meetsync/config"
	"github.com/aura-crm/meetsync/internal/contacts"
	"github.com/aura-crm/meetsync/internal/crm"
	"github.com/aura-crm/meetsync/internal/fetcher"
	"github.com/aura-crm/meetsync/internal/middleware"
	"github.com/aura-crm/meetsync/internal/pipeline"
	"github.com/aura-crm/meetsync/internal/transcribe"
	"github.com/aura-crm/meetsync/internal/webhook"
	"github.com/aura-crm/meetsync/internal/worker"
	"github.com/aura-crm/meetsync/internal/zoom"
	"github.com/aura-crm/meetsync/pkg/queue"
	"github.com/aura-crm/meetsync/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Webhook.Secret == "" {
		logger.Warn("ZOOM_WEBHOOK_SECRET not set; webhook signatures will not be verified")
	}

	jobQueue := queue.NewQueue(cfg.Pipeline.QueueCapacity, logger)

	zoomClient := zoom.NewClient(cfg.Zoom, logger)
	var participants contacts.ParticipantSource
	if zoomClient.Configured() {
		participants = zoomClient
	} else {
		logger.Info("zoom server-to-server credentials not set; participant lookup disabled")
	}

	crmClient := crm.NewClient(cfg.CRM, logger)
	resolver := contacts.NewResolver(participants, crmClient, cfg.CRM.AppointmentWindow, logger)
	recordingFetcher := fetcher.New(cfg.Pipeline.TempDir, logger)
	transcriber := transcribe.NewClient(cfg.Gemini, logger)
	processor := pipeline.NewProcessor(recordingFetcher, transcriber, resolver, crmClient, logger)
	pool := worker.NewPool(jobQueue, processor, cfg.Pipeline.WorkerCount, logger)

	webhookHandler := webhook.NewHandler(jobQueue, cfg.Webhook, cfg.Pipeline, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Liveness
	status := func(c *gin.Context) { response.OK(c, gin.H{"status": "ok", "service": "meetsync"}) }
	router.GET("/", status)
	router.GET("/health", status)

	// Webhooks (no auth middleware; the handler verifies the HMAC signature)
	router.POST("/webhooks/zoom", webhookHandler.HandleEvent)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go pool.Run(workerCtx)
	logger.Info("worker pool started", zap.Int("workers", cfg.Pipeline.WorkerCount))

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
