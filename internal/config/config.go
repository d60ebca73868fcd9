package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
	StoreBackendSQLite = "sqlite"
	StoreBackendNoop   = "noop"
)

type Config struct {
	HubURL         string
	HTTPListenAddr string

	TokenStoreBackend string
	InboxStoreBackend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string

	InboxCap            int
	HighlightTTL        time.Duration
	ReconnectMinBackoff time.Duration
	ReconnectMaxBackoff time.Duration
	InvokeTimeout       time.Duration

	LogLevel  string
	LogFormat string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	EnableOTelHTTP            bool
}

func Load() (*Config, error) {
	cfg := &Config{
		HubURL:         getEnv("TICKETSYNC_HUB_URL", "wss://localhost:7194/ticketHub"),
		HTTPListenAddr: getEnv("TICKETSYNC_HTTP_ADDR", "127.0.0.1:8980"),

		TokenStoreBackend: strings.ToLower(getEnv("TICKETSYNC_TOKEN_STORE", StoreBackendMemory)),
		InboxStoreBackend: strings.ToLower(getEnv("TICKETSYNC_INBOX_STORE", StoreBackendSQLite)),

		RedisAddr:     getEnv("TICKETSYNC_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("TICKETSYNC_REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("TICKETSYNC_SQLITE_PATH", "ticketsync.db"),

		LogLevel:  strings.ToLower(getEnv("TICKETSYNC_LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("TICKETSYNC_LOG_FORMAT", "text")),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "ticketsync"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("TICKETSYNC_REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.InboxCap, err = getEnvInt("TICKETSYNC_INBOX_CAP", 50); err != nil {
		return nil, err
	}
	if cfg.HighlightTTL, err = getEnvDuration("TICKETSYNC_HIGHLIGHT_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconnectMinBackoff, err = getEnvDuration("TICKETSYNC_RECONNECT_MIN_BACKOFF", time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconnectMaxBackoff, err = getEnvDuration("TICKETSYNC_RECONNECT_MAX_BACKOFF", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.InvokeTimeout, err = getEnvDuration("TICKETSYNC_INVOKE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = getEnvBool("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracesEnabled, err = getEnvBool("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELLogsEnabled, err = getEnvBool("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = getEnvDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.EnableOTelHTTP, err = getEnvBool("TICKETSYNC_ENABLE_OTEL_HTTP", false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.HubURL) == "" {
		return fmt.Errorf("hub url must not be empty")
	}
	switch {
	case strings.HasPrefix(c.HubURL, "ws://"), strings.HasPrefix(c.HubURL, "wss://"):
	default:
		return fmt.Errorf("hub url %q must use ws:// or wss://", c.HubURL)
	}
	switch c.TokenStoreBackend {
	case StoreBackendMemory, StoreBackendRedis:
	default:
		return fmt.Errorf("unknown token store backend %q", c.TokenStoreBackend)
	}
	switch c.InboxStoreBackend {
	case StoreBackendMemory, StoreBackendRedis, StoreBackendSQLite, StoreBackendNoop:
	default:
		return fmt.Errorf("unknown inbox store backend %q", c.InboxStoreBackend)
	}
	if c.InboxCap <= 0 {
		return fmt.Errorf("inbox cap must be positive, got %d", c.InboxCap)
	}
	if c.HighlightTTL <= 0 {
		return fmt.Errorf("highlight ttl must be positive, got %s", c.HighlightTTL)
	}
	if c.ReconnectMinBackoff <= 0 || c.ReconnectMaxBackoff < c.ReconnectMinBackoff {
		return fmt.Errorf("reconnect backoff window %s..%s is invalid", c.ReconnectMinBackoff, c.ReconnectMaxBackoff)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
