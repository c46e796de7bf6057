package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/escolahub/comms-api/api/swagger"
	"github.com/escolahub/comms-api/internal/handler"
	internalmiddleware "github.com/escolahub/comms-api/internal/middleware"
	"github.com/escolahub/comms-api/internal/models"
	"github.com/escolahub/comms-api/internal/repository"
	"github.com/escolahub/comms-api/internal/service"
	"github.com/escolahub/comms-api/pkg/cache"
	"github.com/escolahub/comms-api/pkg/config"
	"github.com/escolahub/comms-api/pkg/database"
	"github.com/escolahub/comms-api/pkg/jobs"
	"github.com/escolahub/comms-api/pkg/logger"
	corsmiddleware "github.com/escolahub/comms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/escolahub/comms-api/pkg/middleware/requestid"
	"github.com/escolahub/comms-api/pkg/push"
	"github.com/escolahub/comms-api/pkg/storage"
)

// @title EscolaHub Communications API
// @version 1.0.0
// @description Broadcast communications, per-guardian reply threads and realtime inbox updates.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := models.ValidateChannelStyles(); err != nil {
		logr.Sugar().Fatalw("channel style table invalid", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	communicationRepo := repository.NewCommunicationRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	replyRepo := repository.NewReplyRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.InboxTTL, logr, cfg.Cache.Enabled)

	dispatcher := push.NewDispatcher(push.Config{
		FunctionURL: cfg.Push.FunctionURL,
		APIKey:      cfg.Push.APIKey,
		Timeout:     cfg.Push.Timeout,
		Enabled:     cfg.Push.Enabled,
	}, logr)

	distributionSvc := service.NewDistributionService(rosterRepo, recipientRepo, communicationRepo, dispatcher, metricsSvc, cfg.Distribution.BatchSize, logr)

	pushQueue := jobs.NewQueue("push-dispatch", distributionSvc.HandlePushJob, jobs.QueueConfig{
		Workers:    cfg.Distribution.PushWorkers,
		MaxRetries: cfg.Distribution.PushRetries,
		RetryDelay: cfg.Distribution.PushRetryWait,
		Logger:     logr,
	})
	pushQueue.Start(ctx)
	defer pushQueue.Stop()
	distributionSvc.AttachPushQueue(pushQueue)

	feedPublisher := service.NewFeedPublisher(redisClient, logr)
	threadSvc := service.NewThreadService(replyRepo, rosterRepo, logr)
	trackerSvc := service.NewTrackerService(recipientRepo, threadSvc, logr)
	trackerSvc.AttachDashboardCache(cacheSvc)
	communicationSvc := service.NewCommunicationService(communicationRepo, recipientRepo, replyRepo, distributionSvc, feedPublisher, cacheSvc, nil, logr)
	communicationSvc.SetDashboardTTL(cfg.Cache.DashboardTTL)

	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)
	attachmentSvc := service.NewAttachmentService(replyRepo, signer, logr)

	realtimeRouter := service.NewRealtimeRouter(redisClient, replyRepo, threadSvc, trackerSvc, metricsSvc, cfg.Realtime.ResubscribeDelay, logr)
	if cfg.Realtime.Enabled {
		realtimeRouter.Start(ctx)
		defer realtimeRouter.Stop()
	}

	// Handlers.
	communicationHandler := handler.NewCommunicationHandler(communicationSvc)
	threadHandler := handler.NewThreadHandler(threadSvc, trackerSvc, communicationSvc)
	attachmentHandler := handler.NewAttachmentHandler(attachmentSvc)
	streamHandler := handler.NewStreamHandler(realtimeRouter, logr)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/communications", communicationHandler.List)
		api.POST("/communications", communicationHandler.Create)
		api.GET("/communications/:id", communicationHandler.Get)
		api.GET("/communications/:id/threads", threadHandler.ListConversations)
		api.GET("/communications/:id/pending", threadHandler.PendingThreads)
		api.POST("/communications/:id/threads/:guardianId/replies", threadHandler.SendReply)
		api.GET("/communications/:id/stream", streamHandler.Stream)

		api.POST("/recipients/:id/read", threadHandler.MarkRead)
		api.POST("/recipients/:id/response", threadHandler.Respond)
		api.POST("/recipients/:id/archive", threadHandler.Archive)

		api.GET("/guardians/:id/unread", threadHandler.UnreadCount)
		api.GET("/dashboard/communications", communicationHandler.Dashboard)

		api.GET("/replies/:replyId/attachment-url", attachmentHandler.SignedURL)
		api.GET("/attachments/resolve", attachmentHandler.Resolve)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
