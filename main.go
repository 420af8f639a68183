package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediadl/config"
	"mediadl/internal/extractor"
	"mediadl/internal/handler"
	"mediadl/internal/model"
	"mediadl/internal/service"
	"mediadl/internal/storage"
	"mediadl/pkg/logger"
	"mediadl/pkg/middleware"
	"mediadl/pkg/validator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Media Download Server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("platform_variant", cfg.Security.PlatformVariant),
	)

	if err := extractor.EnsureDownloadDir(cfg.Storage.DownloadDir); err != nil {
		logger.Logger.Fatal("Failed to create download directory", zap.Error(err))
	}

	ytdlp := extractor.NewYTDLP(&cfg.Extractor)
	installCtx, installCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := ytdlp.EnsureInstalled(installCtx); err != nil {
		logger.Logger.Warn("yt-dlp auto-install failed, relying on PATH", zap.Error(err))
	}
	installCancel()

	var playlists service.PlaylistExtractor = ytdlp
	if cfg.Extractor.PlaylistBackend == "native" {
		playlists = extractor.NewNativePlaylist(ytdlp)
		logger.Logger.Info("Native playlist backend enabled")
	}

	// Optional Redis mirror for job status
	var mirror storage.StatusMirror
	if cfg.Redis.Addr != "" {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisMirror, err := storage.NewRedisMirror(pingCtx, &cfg.Redis)
		pingCancel()
		if err != nil {
			logger.Logger.Warn("Redis not available, keeping job status in memory only", zap.Error(err))
		} else {
			logger.Logger.Info("Redis job mirror connected", zap.String("addr", cfg.Redis.Addr))
			mirror = redisMirror
			defer redisMirror.Close()
		}
	}

	store := storage.NewProgressStore(&cfg.Jobs, mirror)
	store.Start()
	defer store.Stop()

	// Initialize services
	classifier := validator.NewClassifier(&cfg.Security)
	videoService := service.NewVideoService(classifier, ytdlp, cfg.Extractor.InfoTimeout)
	playlistService := service.NewPlaylistService(classifier, playlists, cfg.Extractor.InfoTimeout)
	downloadService := service.NewDownloadService(cfg, classifier, store, ytdlp)
	downloadService.Start()
	defer downloadService.Stop()

	rateLimitService := service.NewRateLimitService(&cfg.RateLimit)
	defer rateLimitService.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, rateLimitService,
		handler.NewVideoHandler(videoService, playlistService),
		handler.NewDownloadHandler(downloadService, store),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Logger.Info("Server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server stopped")
}

func newRouter(cfg *model.Config, rls *service.RateLimitService, videoHandler *handler.VideoHandler, downloadHandler *handler.DownloadHandler) *gin.Engine {
	router := gin.New()
	router.Use(logger.Recovery())
	router.Use(logger.GinLogger())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 || cfg.CORS.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	router.Use(cors.New(corsCfg))

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(rls))
		logger.Logger.Info("Rate limiting enabled", zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute))
	}

	api := router.Group("/api")
	{
		// Metadata
		api.GET("/video/info", videoHandler.GetVideoInfo)
		api.POST("/video/info", videoHandler.GetVideoInfo)
		api.POST("/playlist/info", videoHandler.GetPlaylistInfo)
		api.POST("/batch/expand", videoHandler.ExpandBatch)

		// Jobs
		api.POST("/download", downloadHandler.StartDownload)
		api.POST("/playlist/download", downloadHandler.StartPlaylistDownload)
		api.POST("/batch/download", downloadHandler.StartBatchDownload)
		api.DELETE("/download/:id", downloadHandler.CancelDownload)
		api.GET("/progress/:id", downloadHandler.GetProgress)
		api.GET("/progress/:id/ws", downloadHandler.StreamProgress)

		api.GET("/health", downloadHandler.HealthCheck)
	}

	return router
}
