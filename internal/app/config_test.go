package app

import (
	"reflect"
	"testing"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

var configEnvVars = []string{
	"HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT",
	"AUTOPLAY_STORE", "AUTOPLAY_ENABLED", "AUTOPLAY_INFO_TTL_SECONDS",
	"MONGO_URI", "MONGO_DB", "REDIS_URL",
	"BACKEND_URL", "BACKEND_EVENTS_URL", "BACKEND_TIMEOUT_MS",
	"SUBTITLE_DECODE_WORKERS", "SUBTITLE_DEBUG", "OVERLAY_WIDTH", "OVERLAY_HEIGHT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_TRACE_SAMPLE_RATE",
	"CORS_ALLOWED_ORIGINS",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":8090"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"AutoplayStore", cfg.AutoplayStore, "memory"},
		{"AutoplayEnabled", cfg.AutoplayEnabled, true},
		{"AutoplayInfoTTLSec", cfg.AutoplayInfoTTLSec, int64(0)},
		{"MongoDatabase", cfg.MongoDatabase, "torrentstream"},
		{"BackendURL", cfg.BackendURL, ""},
		{"BackendTimeoutMs", cfg.BackendTimeoutMs, int64(10000)},
		{"SubtitleDecodeWorkers", cfg.SubtitleDecodeWorkers, int64(4)},
		{"SubtitleDebug", cfg.SubtitleDebug, false},
		{"OverlayWidth", cfg.OverlayWidth, 1920},
		{"OverlayHeight", cfg.OverlayHeight, 1080},
		{"RateLimitRPS", cfg.RateLimitRPS, 100.0},
		{"RateLimitBurst", cfg.RateLimitBurst, 200},
		{"OTelSampleRate", cfg.OTelSampleRate, 0.1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Errorf("CORSAllowedOrigins = %v, want nil", cfg.CORSAllowedOrigins)
	}
	if cfg.EventsURL() != "" {
		t.Errorf("EventsURL = %q, want empty without a backend", cfg.EventsURL())
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	setEnvs(t, map[string]string{
		"HTTP_ADDR":                 ":9999",
		"LOG_LEVEL":                 "DEBUG",
		"AUTOPLAY_STORE":            "Redis",
		"AUTOPLAY_ENABLED":          "false",
		"AUTOPLAY_INFO_TTL_SECONDS": "3600",
		"BACKEND_URL":               "http://media.local:43211/",
		"SUBTITLE_DEBUG":            "true",
		"RATE_LIMIT_RPS":            "2.5",
		"CORS_ALLOWED_ORIGINS":      " http://a.com , ,http://b.com",
	})
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":9999" || cfg.LogLevel != "debug" || cfg.AutoplayStore != "redis" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.AutoplayEnabled || !cfg.SubtitleDebug || cfg.AutoplayInfoTTLSec != 3600 || cfg.RateLimitRPS != 2.5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.BackendURL != "http://media.local:43211" {
		t.Fatalf("BackendURL = %q", cfg.BackendURL)
	}
	if got := cfg.EventsURL(); got != "ws://media.local:43211/events" {
		t.Fatalf("EventsURL = %q", got)
	}
	if want := []string{"http://a.com", "http://b.com"}; !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigInvalidNumbersFallBack(t *testing.T) {
	clearConfigEnv(t)
	setEnvs(t, map[string]string{
		"BACKEND_TIMEOUT_MS":      "soon",
		"SUBTITLE_DECODE_WORKERS": "-3",
		"AUTOPLAY_ENABLED":        "maybe",
		"RATE_LIMIT_RPS":          "-1",
	})
	cfg := LoadConfig()
	if cfg.BackendTimeoutMs != 10000 || cfg.SubtitleDecodeWorkers != 4 || !cfg.AutoplayEnabled || cfg.RateLimitRPS != 100 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{BackendURL: "https://media.example"}, "wss://media.example/events"},
		{Config{BackendURL: "http://localhost:1"}, "ws://localhost:1/events"},
		{Config{BackendURL: "http://x", BackendEventsURL: "ws://y/feed"}, "ws://y/feed"},
	}
	for _, tt := range tests {
		if got := tt.cfg.EventsURL(); got != tt.want {
			t.Errorf("EventsURL(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
