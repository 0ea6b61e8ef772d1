package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/civiq/civiq/internal/cache"
	"github.com/civiq/civiq/internal/civic"
	"github.com/civiq/civiq/internal/config"
	"github.com/civiq/civiq/internal/directory"
	"github.com/civiq/civiq/internal/districts"
	"github.com/civiq/civiq/internal/geocode"
	"github.com/civiq/civiq/internal/logging"
	"github.com/civiq/civiq/internal/metrics"
	"github.com/civiq/civiq/internal/resolver"
	"github.com/civiq/civiq/internal/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "CIVIQ", "environment variable prefix")
		envFile    = flag.String("env-file", "", "optional .env file loaded before config")
	)
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("failed to load env file: %v", err)
		}
	} else {
		_ = godotenv.Load()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	resultCache := buildResultCache(logger.With(slog.String("component", "cache")), cfg.Server.Cache)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := resultCache.Close(shutdownCtx); err != nil {
			logger.Error("cache shutdown failed", slog.Any("error", err))
		}
	}()
	cacheTTL := time.Duration(cfg.Server.Cache.TTLSeconds) * time.Second

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promRegistry)
	stats := metrics.NewLookupStats()

	table, err := loadDistrictTable(cfg.Server.Districts)
	if err != nil {
		log.Fatalf("failed to load district table: %v", err)
	}
	store := districts.NewStore(table)
	logger.Info("district table loaded",
		slog.Int("zips", table.Len()),
		slog.Int("quarantined", len(table.Skipped())))

	if cfg.Server.Districts.File != "" && cfg.Server.Districts.Watch {
		watcher, err := store.Watch(ctx, cfg.Server.Districts.File, logger)
		if err != nil {
			logger.Error("district watcher setup failed", slog.Any("error", err))
		} else {
			defer watcher.Stop()
		}
	}

	dir := directory.New(directory.Config{
		DatasetURL: cfg.Server.Directory.DatasetURL,
		TTL:        time.Duration(cfg.Server.Directory.TTLSeconds) * time.Second,
		Timeout:    time.Duration(cfg.Server.Directory.TimeoutSeconds) * time.Second,
	}, logger, recorder)

	geocoder := geocode.New(geocode.Config{
		BaseURL:   cfg.Server.Geocoder.BaseURL,
		Benchmark: cfg.Server.Geocoder.Benchmark,
		Vintage:   cfg.Server.Geocoder.Vintage,
		Timeout:   time.Duration(cfg.Server.Geocoder.TimeoutSeconds) * time.Second,
	}, logger, recorder)

	upstream := cfg.Server.Upstream
	congress := civic.NewCongress(civic.CongressConfig{
		BaseURL: upstream.Congress.BaseURL,
		APIKey:  upstream.Congress.APIKey,
		Timeout: upstream.Congress.Timeout(8 * time.Second),
		TTL:     upstream.Congress.TTL(cacheTTL),
	}, resultCache, recorder)
	fec := civic.NewFEC(civic.FECConfig{
		BaseURL: upstream.FEC.BaseURL,
		APIKey:  upstream.FEC.APIKey,
		Timeout: upstream.FEC.Timeout(8 * time.Second),
		TTL:     upstream.FEC.TTL(cacheTTL),
	}, resultCache, recorder)
	rollcall := civic.NewRollcall(civic.RollcallConfig{
		SenateBaseURL: upstream.Rollcall.SenateBaseURL,
		HouseBaseURL:  upstream.Rollcall.HouseBaseURL,
		Timeout:       time.Duration(upstream.Rollcall.TimeoutSeconds) * time.Second,
		TTL:           time.Duration(upstream.Rollcall.TTLSeconds) * time.Second,
	}, resultCache, recorder)
	gdelt := civic.NewGDELT(civic.GDELTConfig{
		BaseURL: upstream.GDELT.BaseURL,
		Timeout: upstream.GDELT.Timeout(6 * time.Second),
		TTL:     upstream.GDELT.TTL(cacheTTL),
	}, resultCache, recorder)

	res := resolver.New(store, geocoder, dir, stats, recorder, logger)

	api := server.NewAPI(server.Deps{
		Logger:    logger,
		Resolver:  res,
		Directory: dir,
		Districts: store,
		Congress:  congress,
		FEC:       fec,
		Rollcall:  rollcall,
		GDELT:     gdelt,
		Stats:     stats,
		Recorder:  recorder,
	})

	srv, err := server.New(cfg, logger, server.NewRouter(api))
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// loadDistrictTable prefers the operator-supplied CSV and falls back to the
// embedded dataset.
func loadDistrictTable(cfg config.DistrictsConfig) (*districts.Table, error) {
	if cfg.File != "" {
		return districts.LoadFile(cfg.File)
	}
	return districts.LoadEmbedded()
}

func buildResultCache(logger *slog.Logger, cfg config.CacheConfig) cache.Store {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		logger.Info("using memory result cache", slog.Duration("ttl", ttl))
		return cache.NewMemory(ttl)
	case "redis":
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: cache.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		})
		if err != nil {
			logger.Error("redis cache initialization failed", slog.Any("error", err))
			logger.Info("falling back to memory cache")
			return cache.NewMemory(ttl)
		}
		logger.Info("using redis result cache", slog.String("address", cfg.Redis.Address))
		return redisCache
	default:
		logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", cfg.Backend))
		return cache.NewMemory(ttl)
	}
}
