package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"golang.org/x/sync/errgroup"

	apihttp "torrentstream/playback/internal/api/http"
	"torrentstream/playback/internal/app"
	"torrentstream/playback/internal/domain/ports"
	"torrentstream/playback/internal/metrics"
	"torrentstream/playback/internal/observe"
	"torrentstream/playback/internal/repository/memory"
	mongorepo "torrentstream/playback/internal/repository/mongo"
	redisrepo "torrentstream/playback/internal/repository/redis"
	"torrentstream/playback/internal/services/autoplay"
	"torrentstream/playback/internal/services/backend"
	"torrentstream/playback/internal/services/stream/loading"
	"torrentstream/playback/internal/subtitle/decode"
	"torrentstream/playback/internal/subtitle/worker"
	"torrentstream/playback/internal/telemetry"
)

const serviceName = "playback"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRate:  cfg.OTelSampleRate,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("autoplayStore", cfg.AutoplayStore),
		slog.Bool("autoplayEnabled", cfg.AutoplayEnabled),
		slog.String("backendURL", cfg.BackendURL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStore, err := openAutoplayStores(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("autoplay store init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	clientID := uuid.NewString()
	api := backend.NewAPIClient(cfg.BackendURL, clientID, time.Duration(cfg.BackendTimeoutMs)*time.Millisecond, logger)

	toasts := observe.NewToasts(logger)
	defer toasts.Close()

	machine := loading.New(logger)
	defer machine.Close()

	coordinator := autoplay.New(api, api, stores.infos,
		autoplay.WithLogger(logger),
		autoplay.WithSelectedTorrents(stores.selected),
		autoplay.WithNotifier(toasts),
		autoplay.WithEnabled(cfg.AutoplayEnabled && cfg.BackendURL != ""),
	)
	defer coordinator.Close()

	renderer := worker.New(worker.Config{
		DecodeWorkers: cfg.SubtitleDecodeWorkers,
		Decoder:       decode.New(),
		Logger:        logger,
	})
	renderer.Post(worker.Init{Width: cfg.OverlayWidth, Height: cfg.OverlayHeight, Debug: cfg.SubtitleDebug})

	handler := apihttp.NewServer(
		apihttp.WithLogger(logger),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithStreamMachine(machine),
		apihttp.WithAutoplay(coordinator),
		apihttp.WithSubtitles(renderer),
		apihttp.WithToasts(toasts),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		return renderer.Run(ctx)
	})
	g.Go(func() error {
		handler.RunBroadcasts(ctx)
		return nil
	})
	if eventsURL := cfg.EventsURL(); eventsURL != "" {
		events := backend.NewEventClient(eventsURL, clientID, machine, logger)
		g.Go(func() error {
			return events.Run(ctx)
		})
	} else {
		logger.Info("backend event stream disabled")
	}
	g.Go(func() error {
		logger.Info("server started", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		handler.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

type autoplayStores struct {
	infos    ports.AutoplayInfoStore
	selected ports.SelectedTorrentStore
}

// openAutoplayStores connects the configured backing store for pending stream
// autoplay info and the selected torrent. The returned func releases its
// connection.
func openAutoplayStores(ctx context.Context, cfg app.Config, logger *slog.Logger) (autoplayStores, func(), error) {
	switch cfg.AutoplayStore {
	case "", "memory":
		return autoplayStores{
			infos:    memory.NewAutoplayInfoStore(),
			selected: memory.NewSelectedTorrentStore(),
		}, func() {}, nil
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return autoplayStores{}, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return autoplayStores{}, nil, fmt.Errorf("mongo ping: %w", err)
		}
		return autoplayStores{
			infos:    mongorepo.NewAutoplayInfoRepository(client, cfg.MongoDatabase),
			selected: mongorepo.NewSelectedTorrentRepository(client, cfg.MongoDatabase),
		}, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
			}
		}, nil
	case "redis":
		client, err := redisrepo.NewClient(cfg.RedisURL)
		if err != nil {
			return autoplayStores{}, nil, fmt.Errorf("redis url: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return autoplayStores{}, nil, fmt.Errorf("redis ping: %w", err)
		}
		ttl := time.Duration(cfg.AutoplayInfoTTLSec) * time.Second
		return autoplayStores{
			infos:    redisrepo.NewAutoplayInfoStore(client, ttl),
			selected: redisrepo.NewSelectedTorrentStore(client, ttl),
		}, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close error", slog.String("error", err.Error()))
			}
		}, nil
	default:
		return autoplayStores{}, nil, fmt.Errorf("unknown autoplay store %q", cfg.AutoplayStore)
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	handlerOpts := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
