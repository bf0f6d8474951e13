package main

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"verdict/internal/config"
	"verdict/internal/constants"
	"verdict/internal/dedup"
	"verdict/internal/httpapi"
	"verdict/internal/logger"
	"verdict/internal/lookup"
	"verdict/internal/processor"
	"verdict/internal/status"
	"verdict/pkg/bootstrap"
	"verdict/pkg/health"
	"verdict/pkg/logging"
	"verdict/pkg/metrics"
	"verdict/pkg/ratelimit"
	"verdict/pkg/tracing"
)

const serviceName = "verdict"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	conns          *bootstrap.Connections
	processor      *processor.Processor
	health         *health.CheckerRegistry
	rateLimit      *ratelimit.Store
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
	}
}

// Initialize opens every configured dependency and assembles the processor.
// The HTTP server is built but not started.
func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName, a.Config.Pipeline.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterDecisionMetrics()
	metrics.RegisterLookupMetrics()
	metrics.RegisterHTTPMetrics()
	if a.Config.Broker.Kafka.Enabled() {
		metrics.RegisterBrokerMetrics()
	}
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	conns, err := a.dbConnector.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open databases: %w", err)
	}
	a.conns = conns

	a.InitPublisher()

	deps, err := a.dependencies()
	if err != nil {
		return err
	}
	p, err := processor.New(a.Config, deps)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	a.processor = p

	a.registerHealthChecks()
	a.initServer()
	return nil
}

func (a *App) dependencies() (processor.Dependencies, error) {
	deps := processor.Dependencies{
		Publisher: a.Publisher,
		Logger:    a.Logger,
	}

	switch a.Config.Status.Backend {
	case constants.StatusBackendRedis:
		if a.conns.Redis == nil {
			return deps, fmt.Errorf("status.backend redis requires database.redis")
		}
		prefix := a.Config.Status.KeyPrefix
		if prefix == "" {
			prefix = constants.CacheKeyPrefixStatus
		}
		deps.Status = status.NewRedisStore(a.conns.Redis, prefix, 0)
	default:
		deps.Status = status.NewMemoryStore()
	}

	if a.Config.Dedup.Enabled {
		if a.conns.Redis == nil {
			return deps, fmt.Errorf("dedup requires database.redis")
		}
		repo := dedup.NewRepository(a.conns.Redis)
		if a.Config.CircuitBreaker.Enabled {
			repo = dedup.WithCircuitBreaker(repo, a.Config.CircuitBreaker)
		}
		deps.Dedup = dedup.NewService(repo, a.Config.Dedup, a.Logger)
	}

	if a.Config.Lookup.Enabled {
		deps.Lookup = a.lookupProvider()
	}

	if a.Config.Claims.Mode == constants.ClaimsModeRemote {
		deps.Claims = lookup.RemoteClaims(&http.Client{Timeout: constants.DefaultHTTPTimeout}, a.Config.Claims.RemoteURL)
	}
	return deps, nil
}

// lookupProvider registers one provider per configured backend, each
// instrumented and optionally behind a circuit breaker, with a redis
// read-through cache in front when enabled.
func (a *App) lookupProvider() lookup.Provider {
	registry := lookup.NewRegistry()
	register := func(name string, p lookup.Provider) {
		p = lookup.Instrument(name, p)
		if a.Config.CircuitBreaker.Enabled {
			p = lookup.WrapWithCircuitBreaker(p, "lookup-"+name, a.Config.CircuitBreaker)
		}
		registry.Register(name, p)
	}

	lc := a.Config.Lookup
	if lc.API.BaseURL != "" {
		register(constants.ProviderNameAPI, lookup.NewAPIProvider(lc.API.BaseURL, lc.API.Method, lc.API.Headers))
	}
	if a.conns.Redis != nil {
		register(constants.ProviderNameCache, lookup.NewCacheProvider(a.conns.Redis))
	}
	if a.conns.MongoDB != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		register(constants.ProviderNameMongoDB, lookup.NewMongoDBProvider(a.conns.MongoDB, dbName))
	}
	if a.conns.Postgres != nil {
		register(constants.ProviderNamePostgreSQL, lookup.NewPostgreSQLProvider(a.conns.Postgres))
	}

	a.Logger.Infow("Lookup providers registered", "types", registry.Types())

	if lc.Cache.Enabled && a.conns.Redis != nil {
		return lookup.NewCachedProvider(registry, a.conns.Redis, constants.CacheKeyPrefixLookup, lc.Cache.TTL)
	}
	return registry
}

func (a *App) registerHealthChecks() {
	if a.conns.Redis != nil {
		a.health.Register(health.NewRedisChecker(a.conns.Redis))
	}
	if a.conns.Postgres != nil {
		a.health.Register(health.NewPostgreSQLChecker(a.conns.Postgres))
	}
	if a.conns.MongoDB != nil {
		a.health.Register(health.NewMongoDBChecker(a.conns.MongoDB))
	}
	if a.Config.Broker.Kafka.Enabled() {
		// Decisions are still rendered while the audit stream is down.
		a.health.Register(health.Optional(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers)))
	}
}

func (a *App) initServer() {
	opts := httpapi.RouterOptions{ServiceName: serviceName, Health: a.health}
	if a.Config.RateLimit.Enabled {
		a.rateLimit = ratelimit.NewStore(httpapi.RateLimitConfig(a.Config.RateLimit))
		opts.RateLimit = a.rateLimit
		a.Logger.Infow("Rate limiting enabled", "rps", a.Config.RateLimit.RPS, "burst", a.Config.RateLimit.Burst)
	}

	handler := httpapi.NewHandler(a.processor, a.Logger)
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      httpapi.NewRouter(a.Config, handler, a.Logger, opts),
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.rateLimit != nil {
		g.Go(func() error {
			a.rateLimit.Run(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	runErr := g.Wait()
	if err := a.Shutdown(context.Background()); err != nil {
		a.Logger.Errorw("Shutdown failed", "error", err)
	}
	return runErr
}

// Shutdown releases everything Initialize opened. The HTTP server is stopped
// by Run.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()
	shutdownCtx = logging.WithServiceName(shutdownCtx, serviceName)

	return a.Base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error
		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}
		return append(errs, a.dbConnector.ShutdownDatabases(ctx, a.conns)...)
	})
}
