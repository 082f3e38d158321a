// Package server wires configuration, storage, the token services and the
// gRPC and HTTP transports, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/config"
	"github.com/dmitrijs2005/bookauth/internal/server/metrics"
	"github.com/dmitrijs2005/bookauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/bookauth/internal/server/replay"
	"github.com/dmitrijs2005/bookauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookauth/internal/server/services"
	"github.com/dmitrijs2005/bookauth/internal/server/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/bookauth/internal/server/grpc"
	hs "github.com/dmitrijs2005/bookauth/internal/server/http"
)

const serviceName = "bookauth"

type App struct {
	config    *config.Config
	logger    logging.Logger
	accounts  *services.AccountService
	renewal   *services.RenewalService
	limiter   *ratelimit.Limiter
	telemetry *telemetry.Provider
	closers   []func() error
}

// newLogger picks the logging backend named by format.
func newLogger(format string) (logging.Logger, func() error, error) {
	if format == "zap" {
		z, err := logging.NewProductionZapLogger()
		if err != nil {
			return nil, nil, err
		}
		return z, z.Sync, nil
	}
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))), nil, nil
}

func NewApp(c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, syncLog, err := newLogger(c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}
	if syncLog != nil {
		app.closers = append(app.closers, syncLog)
	}

	ctx := context.Background()

	var (
		repos repomanager.RepositoryManager
		tx    dbx.Transactor
	)
	if c.DatabaseDSN != "" {
		db, err := sql.Open("pgx", c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db.Close)

		pm := repomanager.NewPostgresRepositoryManager(0)
		if err := pm.RunMigrations(ctx, db); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		repos = pm
		tx = dbx.NewSQLTransactor(db, nil)
	} else {
		logger.Warn(ctx, "no database configured, using in-memory stores")
		repos = repomanager.NewInMemoryRepositoryManager(0)
		tx = dbx.NopTransactor{}
	}

	tp, err := telemetry.New(ctx, telemetry.Config{ServiceName: serviceName, Endpoint: c.TelemetryEndpoint}, logger)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}
	app.telemetry = tp
	app.closers = append(app.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	})

	rec, err := metrics.New(tp.Meter(serviceName))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	renewalOpts := []services.RenewalOption{services.WithRenewalMetrics(rec)}
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.closers = append(app.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis not reachable, rate limiting fails open", "error", err)
		}
		app.limiter = ratelimit.New(client, c.RateLimitPerMinute, time.Minute)
		renewalOpts = append(renewalOpts, services.WithReplayTracker(replay.New(client, 0)))
	}

	codec := auth.NewCodec(auth.NewSigningKey(c.SecretKey, c.Issuer, c.Audience))
	issuer := services.NewTokenIssuer(repos, tx, codec, services.IssuerConfig{
		AccessTokenValidity:  c.AccessTokenValidityDuration,
		RefreshTokenValidity: c.RefreshTokenValidityDuration,
	}, logger, services.WithIssuerMetrics(rec))

	app.renewal = services.NewRenewalService(repos, tx, codec, issuer, logger, renewalOpts...)
	app.accounts = services.NewAccountService(repos, tx, codec, issuer, rec, logger)

	return app, nil
}

// Close releases telemetry, Redis, the database and the logger in reverse
// order of creation.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	var opts []gs.Option
	if app.limiter != nil {
		opts = append(opts, gs.WithRateLimiter(app.limiter))
	}
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.accounts, app.renewal, opts...)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// httpHandler builds the API router plus the /metrics scrape endpoint.
func (app *App) httpHandler() *gin.Engine {
	var limiter hs.RateLimiter
	if app.limiter != nil {
		limiter = app.limiter
	}
	router := hs.NewRouter(serviceName, hs.NewHandler(app.accounts, app.renewal, app.logger), limiter, app.logger)
	router.GET("/metrics", gin.WrapH(app.telemetry.Handler()))
	return router
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := hs.NewServer(app.config.EndpointAddrHTTP, app.httpHandler(), app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	if app.config.EndpointAddrHTTP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "shutdown", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
