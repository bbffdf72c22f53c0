// Package app wires the Warden server runtime: config, logging, storage,
// notification delivery, metrics and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"warden/cmd/identity"
	"warden/cmd/internal/account"
	accountapi "warden/cmd/internal/account/api"
	"warden/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the Warden server runtime: it owns the HTTP server and the
// resources behind it.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	gateway  gatewayCloser
	metrics  *Metrics
	accounts *accountapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	store, dbPool, dbEnabled, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   NewMetrics(),
	}
	if err := a.wire(store); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(store identity.Store) error {
	hasher := a.cfg.Password
	if err := hasher.Check(); err != nil {
		return err
	}

	tokens, err := token.NewService(token.Config{
		Secret: []byte(a.cfg.TokenSecret),
		Issuer: a.cfg.TokenIssuer,
	})
	if err != nil {
		return err
	}

	gw, err := newGateway(a.cfg, a.log)
	if err != nil {
		return err
	}
	a.gateway = gw

	svc, err := account.New(store, hasher, tokens,
		loggedGateway{gatewayCloser: gw, driver: a.cfg.NotifyDriver, log: a.log},
		account.WithLogger(a.log),
		account.WithMetrics(a.metrics),
		account.WithTTLs(account.TTLs{
			Verify: a.cfg.VerifyTTL,
			Login:  a.cfg.LoginTTL,
			Reset:  a.cfg.ResetTTL,
		}),
	)
	if err != nil {
		return err
	}

	a.accounts, err = accountapi.NewHandler(a.log, svc, accountapi.LoadConfigFromEnv())
	return err
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.accounts, a.metrics)

	var h http.Handler = mux
	h = WithSecurityHeaders(h)
	h = WithRequestMetrics(h, a.metrics)
	return WithRequestLogging(h, a.log)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.dbEnabled,
		"notify_driver", a.cfg.NotifyDriver,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// close releases the gateway and the pool. In-flight requests have finished by now.
func (a *App) close() {
	if a.gateway != nil {
		if err := a.gateway.Close(); err != nil {
			a.log.Error("notify.close.fail", "err", err)
		}
		a.gateway = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between the Postgres-backed store and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (identity.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewMemoryStore(), nil, false, nil
	}

	if err := MigrateDB(ctx, cfg, log); err != nil {
		return nil, nil, false, err
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	// Ownership model:
	// - app owns pool lifecycle
	// - PostgresStore never closes the pool
	st, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return st, pool, true, nil
}
