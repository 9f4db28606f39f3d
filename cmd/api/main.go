package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/buildin7days/entitlements/api"
	"github.com/buildin7days/entitlements/internal/config"
	"github.com/buildin7days/entitlements/internal/directory"
	"github.com/buildin7days/entitlements/internal/entitlement"
	"github.com/buildin7days/entitlements/internal/handler"
	"github.com/buildin7days/entitlements/internal/logging"
	"github.com/buildin7days/entitlements/internal/metrics"
	"github.com/buildin7days/entitlements/internal/middleware"
	"github.com/buildin7days/entitlements/internal/repository"
	"github.com/buildin7days/entitlements/internal/service"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("entitlements-api", cfg.LogLevel, cfg.AppEnv)

	if cfg.LemonWebhookSecret == "" {
		slog.Warn("LEMON_WEBHOOK_SECRET is not set; every webhook delivery will be refused")
	}
	if cfg.GitHubToken == "" {
		slog.Warn("GITHUB_TOKEN is not set; directory calls will fail")
	}

	teams, err := entitlement.NewMap(cfg.VariantTeams)
	if err != nil {
		slog.Error("invalid variant map", "error", err)
		os.Exit(1)
	}
	slog.Info("entitlement map loaded", "variants", teams.Len())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.LedgerEnabled() {
		db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
			MaxOpenConns:     cfg.DBMaxOpenConns,
			MaxIdleConns:     cfg.DBMaxIdleConns,
			ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
			ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		}, 30)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		slog.Info("DATABASE_URL not set; grant ledger disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(reg, cfg.MetricsNamespace)

	opts := []directory.Option{directory.WithMetrics(recorder)}
	cache, closeCache := newTeamCache(ctx, cfg)
	defer closeCache()
	if cache != nil {
		opts = append(opts, directory.WithTeamCache(cache))
	}
	client := directory.NewClient(directory.Config{
		BaseURL:            cfg.GitHubAPIURL,
		Token:              cfg.GitHubToken,
		Org:                cfg.GitHubOrg,
		Timeout:            cfg.DirectoryTimeout,
		RatePerSecond:      cfg.DirectoryRateLimit,
		Burst:              cfg.DirectoryRateBurst,
		BreakerFailures:    cfg.BreakerFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	}, opts...)

	var ledger *repository.GrantLedgerRepository
	if db != nil {
		ledger = repository.NewGrantLedgerRepository(db)
	}
	grants := newGrantService(teams, client, ledger, cfg.DedupeDeliveries)

	webhookHandler := handler.NewWebhookHandler(grants, cfg.LemonWebhookSecret, cfg.AckGrantFailures, recorder)
	healthHandler := handler.NewHealthHandler(db, version)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("GET /docs", handler.ServeDocs())
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(api.OpenAPISpec))

	limited := middleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst)
	receive := limited(http.HandlerFunc(webhookHandler.ReceiveLemonWebhook))
	mux.Handle("POST /api/webhooks/lemon", receive)
	mux.Handle("POST /api/v1/webhooks/lemon", receive)

	if cfg.AdminAPIEnabled() {
		grantsHandler := handler.NewGrantsHandler(grants)
		mux.Handle("GET /api/v1/grants", middleware.Auth(cfg.AdminJWTSecret)(http.HandlerFunc(grantsHandler.ListGrants)))
		slog.Info("admin API enabled")
	}

	var h http.Handler = mux
	h = middleware.Logging(h)
	h = middleware.Tracing(h)
	h = middleware.Recovery(h)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.DirectoryTimeout*2 + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "version", version, "org", cfg.GitHubOrg)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newGrantService keeps a nil *GrantLedgerRepository from reaching the
// service as a non-nil interface.
func newGrantService(teams *entitlement.Map, client *directory.Client, ledger *repository.GrantLedgerRepository, dedupe bool) *service.GrantService {
	if ledger == nil {
		return service.NewGrantService(teams, client, service.NoopLedger{}, dedupe)
	}
	return service.NewGrantService(teams, client, ledger, dedupe)
}

// newTeamCache returns nil when caching is disabled. Redis is used when
// configured and reachable; otherwise resolutions are cached in memory.
func newTeamCache(ctx context.Context, cfg *config.Config) (directory.TeamCache, func()) {
	noop := func() {}
	if cfg.TeamCacheTTL == 0 {
		return nil, noop
	}
	if cfg.RedisURL == "" {
		return directory.NewMemoryTeamCache(cfg.TeamCacheTTL), noop
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Warn("invalid REDIS_URL, using in-memory team cache", "error", err)
		return directory.NewMemoryTeamCache(cfg.TeamCacheTTL), noop
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unreachable, using in-memory team cache", "error", err)
		rdb.Close()
		return directory.NewMemoryTeamCache(cfg.TeamCacheTTL), noop
	}

	slog.Info("team cache backed by redis", "addr", opts.Addr)
	return directory.NewRedisTeamCache(rdb, "entitlements:team:", cfg.TeamCacheTTL), func() { rdb.Close() }
}
