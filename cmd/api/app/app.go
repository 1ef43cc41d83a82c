package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pelyams/cached_product_service/internal/adapters/cache"
	"github.com/pelyams/cached_product_service/internal/adapters/memory"
	"github.com/pelyams/cached_product_service/internal/adapters/repository"
	"github.com/pelyams/cached_product_service/internal/config"
	"github.com/pelyams/cached_product_service/internal/metrics"
	"github.com/pelyams/cached_product_service/internal/ports"
	"github.com/pelyams/cached_product_service/internal/routing"
	"github.com/pelyams/cached_product_service/internal/service"
)

const (
	serviceName = "products"

	startupPingTimeout = 5 * time.Second
	readHeaderTimeout  = 5 * time.Second
)

type App struct {
	config  *config.Config
	log     *zap.Logger
	db      ports.Repository
	cache   ports.Cache
	service ports.ResourceService
	router  http.Handler
	closers []func() error
}

func New() (*App, error) {
	cfg := config.Load()

	logger, err := routing.NewLogger(serviceName, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &App{
		config: cfg,
		log:    logger,
	}

	repo, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = repo
	a.cache = a.openCache()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithRecorder(metrics.NewCacheMetrics(reg)),
	}
	if cfg.CacheCoalesceMisses {
		opts = append(opts, service.WithMissCoalescing(cfg.RequestTimeout))
	}
	a.service = service.NewResourceService(a.db, a.cache, opts...)

	handler := routing.NewProductHandler(a.service, logger)
	a.router = routing.NewRouter(handler, routing.RouterDeps{
		Log:            logger,
		Service:        serviceName,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		RequestTimeout: cfg.RequestTimeout,
	}).SetupRoutes()

	return a, nil
}

func (a *App) openStore() (ports.Repository, error) {
	var (
		driver string
		dsn    string
	)
	switch a.config.StoreDriver {
	case config.StoreDriverMemory:
		a.log.Info("using in-memory record store")
		return memory.NewRepository(), nil
	case config.StoreDriverPostgres, config.StoreDriverPgx:
		driver, dsn = a.config.StoreDriver, a.config.PostgresURL()
	case config.StoreDriverMySQL:
		if a.config.MySQLDSN == "" {
			return nil, errors.New("MYSQL_DSN is required for the mysql store driver")
		}
		driver, dsn = "mysql", a.config.MySQLDSN
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.config.StoreDriver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	a.closers = append(a.closers, db.Close)

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach %s database: %w", driver, err)
	}
	a.log.Info("record store connected", zap.String("driver", driver))

	if driver == "mysql" {
		return repository.NewMySQLRepository(db), nil
	}
	return repository.NewPostgresRepository(db), nil
}

// openCache never fails: an unreachable redis leaves the service running
// against the record store alone until the cache comes back.
func (a *App) openCache() ports.Cache {
	if a.config.CacheDriver == config.CacheDriverMemory {
		a.log.Info("using in-memory cache")
		return memory.NewCache(a.config.CacheTTL)
	}
	if a.config.CacheDriver != config.CacheDriverRedis {
		a.log.Warn("unknown cache driver, falling back to redis", zap.String("driver", a.config.CacheDriver))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     a.config.RedisAddr(),
		Password: a.config.RedisPassword,
		DB:       a.config.RedisDB,
	})
	a.closers = append(a.closers, redisClient.Close)

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		a.log.Warn("cache unreachable at startup", zap.String("addr", a.config.RedisAddr()), zap.Error(err))
	} else {
		if err := redisClient.ConfigSet(ctx, "maxmemory", a.config.RedisMaxMemory).Err(); err != nil {
			a.log.Warn("failed to set redis maxmemory", zap.Error(err))
		}
		if err := redisClient.ConfigSet(ctx, "maxmemory-policy", "allkeys-lru").Err(); err != nil {
			a.log.Warn("failed to set redis eviction policy", zap.Error(err))
		}
		a.log.Info("cache connected", zap.String("addr", a.config.RedisAddr()))
	}

	return cache.NewRedisCache(redisClient, a.config.CacheKeyPrefix, a.config.CacheTTL)
}

func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests for at
// most ShutdownTimeout.
func (a *App) Run() error {
	defer a.Close()

	addr := ":" + a.config.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		a.log.Info("shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.log.Sync()
}
