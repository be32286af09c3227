package main

import (
	"fmt"
	"os"
	"time"

	"gamezipserver/internal/common/cache"
	"gamezipserver/internal/common/storage"
	"gamezipserver/internal/gamezip/cgi"
	"gamezipserver/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxHeaderBytes  = 1 << 20
	defaultMaxBodyBytes    = 1 << 20
	defaultCacheMaxAge     = 24 * time.Hour
	defaultGamesDir        = "games"
	defaultMaxArchiveBytes = 2 << 30
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ServiceName    string        `yaml:"serviceName"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	MaxHeaderBytes int           `yaml:"maxHeaderBytes"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes"`
	CacheMaxAge    time.Duration `yaml:"cacheMaxAge"`
}

// GamesConfig holds archive directory settings.
type GamesConfig struct {
	Dir             string   `yaml:"dir"`
	MountOnStart    []string `yaml:"mountOnStart"` // archive IDs mounted at boot
	MaxArchiveBytes int64    `yaml:"maxArchiveBytes"`
}

// CGIConfig wraps the executor settings with an enable switch.
type CGIConfig struct {
	Enabled    bool `yaml:"enabled"`
	cgi.Config `yaml:",inline"`
}

// PolyfillConfig lists script URLs injected into served HTML.
type PolyfillConfig struct {
	Scripts []string `yaml:"scripts"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled        bool          `yaml:"enabled"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	AllowedMethods []string      `yaml:"allowedMethods"`
	AllowedHeaders []string      `yaml:"allowedHeaders"`
	ExposedHeaders []string      `yaml:"exposedHeaders"`
	MaxAge         time.Duration `yaml:"maxAge"`
}

// RateLimitConfig bounds the mount management routes. Requires redis.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Window   time.Duration `yaml:"window"`
	IPMax    int           `yaml:"ipMax"`
	RouteMax int           `yaml:"routeMax"`
}

// StorageConfig holds remote archive storage settings.
type StorageConfig struct {
	Enabled             bool `yaml:"enabled"`
	storage.MinIOConfig `yaml:",inline"`
}

// AppConfig holds the full server configuration.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Logger   logger.Config     `yaml:"logger"`
	Games    GamesConfig       `yaml:"games"`
	CGI      CGIConfig         `yaml:"cgi"`
	Polyfill PolyfillConfig    `yaml:"polyfill"`
	CORS     CORSConfig        `yaml:"cors"`
	Rate     RateLimitConfig   `yaml:"rateLimit"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Storage  StorageConfig     `yaml:"storage"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = defaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Server.CacheMaxAge == 0 {
		cfg.Server.CacheMaxAge = defaultCacheMaxAge
	}

	if cfg.Games.Dir == "" {
		cfg.Games.Dir = defaultGamesDir
	}
	if cfg.Games.MaxArchiveBytes == 0 {
		cfg.Games.MaxArchiveBytes = defaultMaxArchiveBytes
	}

	if cfg.CGI.Enabled && cfg.CGI.Interpreter == "" {
		return nil, fmt.Errorf("cgi.interpreter is required when cgi is enabled")
	}
	if cfg.CGI.Enabled && cfg.CGI.DocumentRoot == "" {
		return nil, fmt.Errorf("cgi.documentRoot is required when cgi is enabled")
	}

	if cfg.Rate.Enabled {
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis addr is required when rateLimit is enabled")
		}
		if cfg.Rate.Window == 0 {
			cfg.Rate.Window = time.Minute
		}
	}
	applyRedisDefaults(&cfg.Redis)

	if cfg.Storage.Enabled {
		if cfg.Storage.Endpoint == "" {
			return nil, fmt.Errorf("storage.endpoint is required when storage is enabled")
		}
		if cfg.Storage.Bucket == "" {
			return nil, fmt.Errorf("storage.bucket is required when storage is enabled")
		}
	}

	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	d := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = d.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = d.MinIdleConns
	}
	for _, t := range []struct {
		dst *time.Duration
		def time.Duration
	}{
		{&cfg.DialTimeout, d.DialTimeout},
		{&cfg.ReadTimeout, d.ReadTimeout},
		{&cfg.WriteTimeout, d.WriteTimeout},
		{&cfg.PoolTimeout, d.PoolTimeout},
		{&cfg.ConnMaxIdleTime, d.ConnMaxIdleTime},
		{&cfg.ConnMaxLifetime, d.ConnMaxLifetime},
	} {
		if *t.dst == 0 {
			*t.dst = t.def
		}
	}
}
