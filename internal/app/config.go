package app

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	// AutoplayStore selects where pending stream autoplay info lives:
	// memory, mongo or redis.
	AutoplayStore   string
	AutoplayEnabled bool
	MongoURI        string
	MongoDatabase   string
	RedisURL        string
	// AutoplayInfoTTLSec bounds how long Redis keeps pending info. Zero keeps
	// it until cleared.
	AutoplayInfoTTLSec int64

	// BackendURL is the media server base URL. Empty disables the outbound
	// API client and the event stream subscription.
	BackendURL       string
	BackendEventsURL string
	BackendTimeoutMs int64

	SubtitleDecodeWorkers int64
	SubtitleDebug         bool
	OverlayWidth          int
	OverlayHeight         int

	RateLimitRPS   float64
	RateLimitBurst int

	OTelEndpoint   string
	OTelSampleRate float64

	CORSAllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:              getEnv("HTTP_ADDR", ":8090"),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AutoplayStore:         strings.ToLower(getEnv("AUTOPLAY_STORE", "memory")),
		AutoplayEnabled:       getEnvBool("AUTOPLAY_ENABLED", true),
		MongoURI:              getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:         getEnv("MONGO_DB", "torrentstream"),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AutoplayInfoTTLSec:    getEnvInt64("AUTOPLAY_INFO_TTL_SECONDS", 0),
		BackendURL:            strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
		BackendEventsURL:      getEnv("BACKEND_EVENTS_URL", ""),
		BackendTimeoutMs:      getEnvInt64("BACKEND_TIMEOUT_MS", 10000),
		SubtitleDecodeWorkers: getEnvInt64("SUBTITLE_DECODE_WORKERS", 4),
		SubtitleDebug:         getEnvBool("SUBTITLE_DEBUG", false),
		OverlayWidth:          int(getEnvInt64("OVERLAY_WIDTH", 1920)),
		OverlayHeight:         int(getEnvInt64("OVERLAY_HEIGHT", 1080)),
		RateLimitRPS:          getEnvFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:        int(getEnvInt64("RATE_LIMIT_BURST", 200)),
		OTelEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelSampleRate:        getEnvFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// EventsURL derives the websocket endpoint from BackendURL when no explicit
// events URL is configured.
func (c Config) EventsURL() string {
	if c.BackendEventsURL != "" {
		return c.BackendEventsURL
	}
	if c.BackendURL == "" {
		return ""
	}
	base := c.BackendURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/events"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
