// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageBackend はコレクションの保存先の種別。
type StorageBackend string

const (
	// StorageFile はDATA_DIR配下のJSONファイルに保存する。
	StorageFile StorageBackend = "file"
	// StoragePostgres はPostgreSQLのcollectionsテーブルに保存する。
	StoragePostgres StorageBackend = "postgres"
	// StorageMemory はプロセス内のみに保持する（開発・テスト用）。
	StorageMemory StorageBackend = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string
	PublicDir  string

	// Storage
	StorageBackend StorageBackend
	DataDir        string
	DatabaseURL    string

	// Session
	SessionMaxAge int

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitWrite   int

	// Domain
	ThreadMaxDepth  int
	VisitorLogLimit int

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int

	// Workers
	SyndicationInterval time.Duration
	SitemapInterval     time.Duration
}

// Load は環境変数からConfigを読み込む。
// STORAGE_BACKEND=postgres の場合のみ DATABASE_URL を必須とする。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StorageBackend = StorageBackend(strings.ToLower(getEnvString("STORAGE_BACKEND", string(StorageFile))))
	switch cfg.StorageBackend {
	case StorageFile, StoragePostgres, StorageMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND: %q", cfg.StorageBackend)
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageBackend == StoragePostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:3000"), "/")
	cfg.PublicDir = getEnvString("PUBLIC_DIR", "public")
	cfg.DataDir = getEnvString("DATA_DIR", "data")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 3600)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 30)
	cfg.ThreadMaxDepth = getEnvInt("THREAD_MAX_DEPTH", 50)
	cfg.VisitorLogLimit = getEnvInt("VISITOR_LOG_LIMIT", 1000)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 4)
	cfg.SyndicationInterval = getEnvDuration("SYNDICATION_INTERVAL", 15*time.Minute)
	cfg.SitemapInterval = getEnvDuration("SITEMAP_INTERVAL", 24*time.Hour)

	return cfg, nil
}

// Addr はHTTPサーバーの待ち受けアドレスを返す。
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
