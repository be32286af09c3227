package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gamezipserver/internal/common/cache"
	"gamezipserver/internal/common/storage"
	"gamezipserver/internal/gamezip/archive"
	"gamezipserver/internal/gamezip/cgi"
	"gamezipserver/internal/gamezip/middleware"
	"gamezipserver/internal/gamezip/polyfill"
	"gamezipserver/internal/gamezip/server"
	"gamezipserver/internal/gamezip/service"
	"gamezipserver/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultConfigPath = "configs/gamezip.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() { _ = logger.Sync() }()

	manager := archive.NewManager()
	defer manager.UnmountAll()

	var rateService *service.RateLimitService
	if appCfg.Rate.Enabled {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() { _ = redisCache.Close() }()
		rateService = service.NewRateLimitService(redisCache, appCfg.Rate.Window, appCfg.Redis.ReadTimeout)
	}

	var executor *cgi.Executor
	if appCfg.CGI.Enabled {
		executor, err = cgi.NewExecutor(appCfg.CGI.Config)
		if err != nil {
			logger.Error(context.Background(), "init cgi executor failed", zap.Error(err))
			return
		}
	}

	var fetcher *archive.Fetcher
	if appCfg.Storage.Enabled {
		objectStorage, err := storage.NewMinIOStorage(appCfg.Storage.MinIOConfig)
		if err != nil {
			logger.Error(context.Background(), "init object storage failed", zap.Error(err))
			return
		}
		fetcher = archive.NewFetcher(objectStorage, appCfg.Storage.Bucket, appCfg.Games.Dir, appCfg.Games.MaxArchiveBytes)
	}

	srv, err := server.New(server.Config{
		ServiceName:  appCfg.Server.ServiceName,
		GamesDir:     appCfg.Games.Dir,
		MaxBodyBytes: appCfg.Server.MaxBodyBytes,
		CacheMaxAge:  appCfg.Server.CacheMaxAge,
		CORS: middleware.CORSConfig{
			Enabled:        appCfg.CORS.Enabled,
			AllowedOrigins: appCfg.CORS.AllowedOrigins,
			AllowedMethods: appCfg.CORS.AllowedMethods,
			AllowedHeaders: appCfg.CORS.AllowedHeaders,
			ExposedHeaders: appCfg.CORS.ExposedHeaders,
			MaxAge:         corsMaxAge(appCfg.CORS),
		},
		RateLimit: server.RateLimitConfig{
			Enabled:  appCfg.Rate.Enabled,
			Window:   appCfg.Rate.Window,
			IPMax:    appCfg.Rate.IPMax,
			RouteMax: appCfg.Rate.RouteMax,
		},
	}, manager, executor, fetcher, rateService, polyfill.NewInjector(appCfg.Polyfill.Scripts))
	if err != nil {
		logger.Error(context.Background(), "build server failed", zap.Error(err))
		return
	}

	mountOnStart(manager, appCfg)

	httpServer := &http.Server{
		Addr:           appCfg.Server.Addr,
		Handler:        srv.Router(),
		ReadTimeout:    appCfg.Server.ReadTimeout,
		WriteTimeout:   appCfg.Server.WriteTimeout,
		IdleTimeout:    appCfg.Server.IdleTimeout,
		MaxHeaderBytes: appCfg.Server.MaxHeaderBytes,
	}

	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "gamezip http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

// mountOnStart mounts the configured archives before serving. A missing
// archive is logged and skipped so one bad entry does not block startup.
func mountOnStart(manager *archive.Manager, cfg *AppConfig) {
	for _, id := range cfg.Games.MountOnStart {
		zipPath := filepath.Join(cfg.Games.Dir, id+".zip")
		if err := manager.Mount(id, zipPath); err != nil {
			logger.Warn(context.Background(), "startup mount failed",
				zap.String("id", id), zap.String("zipPath", zipPath), zap.Error(err))
			continue
		}
		logger.Info(context.Background(), "archive mounted on startup", zap.String("id", id))
	}
}

func corsMaxAge(cfg CORSConfig) string {
	if cfg.MaxAge <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", int(cfg.MaxAge.Seconds()))
}
