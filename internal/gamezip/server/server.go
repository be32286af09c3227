// Package server is the HTTP front end: mount management endpoints plus a
// catch-all route that serves archived content and executes legacy PHP
// through the CGI executor.
package server

import (
	"net/http"
	"path/filepath"
	"time"

	"gamezipserver/internal/gamezip/archive"
	"gamezipserver/internal/gamezip/cgi"
	"gamezipserver/internal/gamezip/middleware"
	"gamezipserver/internal/gamezip/polyfill"
	"gamezipserver/internal/gamezip/service"
	pkgerrors "gamezipserver/pkg/errors"
	"gamezipserver/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultMaxBodyBytes = 1 << 20 // 1 MiB
	defaultCacheMaxAge  = 24 * time.Hour
)

// Config holds the HTTP front end settings.
type Config struct {
	ServiceName  string
	GamesDir     string // allow-listed root for mount sources
	MaxBodyBytes int64
	CacheMaxAge  time.Duration
	CORS         middleware.CORSConfig
	RateLimit    RateLimitConfig
}

// RateLimitConfig bounds the mount management routes.
type RateLimitConfig struct {
	Enabled  bool
	Window   time.Duration
	IPMax    int
	RouteMax int
}

// Server ties the archive registry, the CGI executor, and the polyfill
// injector together behind gin routes.
type Server struct {
	cfg      Config
	gamesDir string // absolute, symlinks resolved
	manager  *archive.Manager
	executor *cgi.Executor    // nil when CGI is disabled
	fetcher  *archive.Fetcher // nil when remote storage is disabled
	rate     *service.RateLimitService
	injector *polyfill.Injector
}

// New builds a server. executor, fetcher, and rate may be nil to disable the
// corresponding feature.
func New(cfg Config, manager *archive.Manager, executor *cgi.Executor, fetcher *archive.Fetcher, rate *service.RateLimitService, injector *polyfill.Injector) (*Server, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "gamezipserver"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = defaultCacheMaxAge
	}
	gamesDir, err := filepath.Abs(cfg.GamesDir)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(gamesDir); err == nil {
		gamesDir = resolved
	}
	if injector == nil {
		injector = polyfill.NewInjector(nil)
	}
	return &Server{
		cfg:      cfg,
		gamesDir: gamesDir,
		manager:  manager,
		executor: executor,
		fetcher:  fetcher,
		rate:     rate,
		injector: injector,
	}, nil
}

// Router assembles the gin engine with all middleware and routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.CORSMiddleware(s.cfg.CORS))
	router.Use(requestLogger())
	router.Use(s.bodyLimit())

	mountHandlers := []gin.HandlerFunc{}
	if s.cfg.RateLimit.Enabled && s.rate != nil {
		policy := middleware.RateLimitPolicy{
			Window:   s.cfg.RateLimit.Window,
			IPMax:    s.cfg.RateLimit.IPMax,
			RouteMax: s.cfg.RateLimit.RouteMax,
		}
		mountHandlers = append(mountHandlers, middleware.RateLimitMiddleware(s.rate, "mount", policy))
	}

	router.POST("/mount/:id", append(mountHandlers, s.handleMount)...)
	router.DELETE("/mount/:id", append(mountHandlers, s.handleUnmount)...)
	router.GET("/mounts", s.handleMounts)
	router.GET("/health", s.handleHealth)

	// Everything else is archived content.
	router.NoRoute(s.handleFile)

	return router
}

// bodyLimit caps request bodies; exceeding it aborts the connection.
func (s *Server) bodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		}
		c.Next()
	}
}

// abortPlain writes the plaintext error contract of the serving API: status
// from the error code, message as the body.
func abortPlain(c *gin.Context, err error) {
	customErr := pkgerrors.GetError(err)
	logger.Warn(c.Request.Context(), "request failed",
		zap.Int("code", int(customErr.Code)),
		zap.String("message", customErr.Error()),
		zap.String("path", c.Request.URL.Path),
	)
	c.String(customErr.Code.HTTPStatus(), customErr.Error())
	c.Abort()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
