package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service-template/cache"
	"service-template/config"
	"service-template/example/application"
	"service-template/example/httpapi"
	exinfra "service-template/example/infra"
	"service-template/logging"
	"service-template/metrics"
	"service-template/middleware/ratelimit"
	"service-template/middleware/ratelimit/domain"
	rlinfra "service-template/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_FILE"), "YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config_invalid")
	}
	log := logging.Setup(cfg.Log.Level, cfg.Log.JSON || cfg.IsProduction(), os.Stdout).
		With().Str("app", cfg.App.Name).Logger()

	rl, err := cfg.RateLimit()
	if err != nil {
		log.Fatal().Err(err).Msg("config_invalid")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 15*time.Second)
	rdb, err := cache.Connect(startCtx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup_failed")
	}
	defer func() { _ = rdb.Close() }()

	repo, closeRepo, err := openRepository(startCtx, cfg.Database, log)
	startCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("startup_failed")
	}
	defer closeRepo()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	uc := application.UseCases{
		Repo:     repo,
		Events:   exinfra.NewStreamPublisher(rdb, cfg.Events.StreamMaxLen),
		Cache:    cache.New(rdb, cfg.Cache.KeyPrefix, cfg.Cache.TTL),
		Topic:    cfg.Events.Topic,
		CacheTTL: cfg.Cache.TTL,
		Log:      log,
	}

	h := httpapi.NewRouter(httpapi.RouterOptions{
		UseCases: uc,
		Metrics:  m,
		Version:  cfg.App.Version,
		Log:      log,
	})
	stats, redisStats := rateStats(cfg.Stats, rdb, m)
	h = ratelimit.Middleware(ratelimit.Options{
		Config:             rl,
		Store:              rlinfra.NewRedisCounterStore(rdb, rlinfra.WithWindowMode(rl.Mode)),
		Stats:              stats,
		KeyHeader:          cfg.RateLimiter.KeyHeader,
		TrustXForwardedFor: cfg.RateLimiter.TrustXForwardedFor,
		Logger:             log,
	})(h)
	if pool := rlinfra.NewChanPool(cfg.Server.MaxInFlight); pool != nil {
		m.TrackInFlight(pool)
		h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Pool:           pool,
			AcquireTimeout: cfg.Server.AcquireTimeout,
			Logger:         log,
		})(h)
	}
	h = logging.Middleware(log)(h)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("env", cfg.App.Env).
		Str("version", cfg.App.Version).
		Msg("server_starting")
	log.Info().
		Bool("enabled", rl.Enabled).
		Int("limit", rl.Rule.Limit).
		Int("window_seconds", rl.Rule.WindowSeconds()).
		Str("mode", string(rl.Mode)).
		Strs("exempt_paths", rl.ExemptPaths).
		Msg("rate_limit_config")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server_error")
	}
	if redisStats != nil {
		totalsCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if t, err := redisStats.Totals(totalsCtx); err == nil {
			log.Info().
				Int64("allowed", t.Allowed).
				Int64("rejected", t.Rejected).
				Int64("failed_open", t.FailedOpen).
				Msg("rate_limit_totals")
		}
		cancel()
	}
	log.Info().Msg("server_stopped")
}

func openRepository(ctx context.Context, cfg config.Database, log zerolog.Logger) (application.Repository, func(), error) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("using in-memory repository, data is lost on restart")
		return exinfra.NewMemoryRepository(), func() {}, nil
	}

	client, err := exinfra.ConnectMongo(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}

	repo, err := exinfra.NewMongoRepository(ctx, client.Database(cfg.Name))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return repo, closeFn, nil
}

// rateStats: Prometheus sempre; hashes no Redis só quando habilitado.
func rateStats(cfg config.Stats, rdb *redis.Client, m *metrics.Metrics) (domain.StatsStore, *rlinfra.RedisStatsStore) {
	if !cfg.RedisEnabled {
		return m, nil
	}
	rs := rlinfra.NewRedisStatsStore(
		rdb,
		rlinfra.WithStatsPrefix(cfg.Prefix),
		rlinfra.WithStatsTTL(cfg.TTL),
		rlinfra.WithStatsBucket(cfg.Bucket),
		rlinfra.WithStatsTrackKeys(cfg.TrackKeys),
	)
	return rlinfra.TeeStats(m, rs), rs
}
