package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/docintake/docintake/core/folders"
	"github.com/docintake/docintake/core/infra/bus"
	"github.com/docintake/docintake/core/infra/config"
	"github.com/docintake/docintake/core/infra/locks"
	"github.com/docintake/docintake/core/infra/logging"
	"github.com/docintake/docintake/core/infra/metrics"
	"github.com/docintake/docintake/core/store"
	"github.com/docintake/docintake/core/tenants"
)

const lockTTL = 15 * time.Second

// app holds the collaborators one command needs.
type app struct {
	cfg      *config.Config
	store    store.Store
	bus      *bus.Bus
	metrics  metrics.ConfigMetrics
	locker   locks.Locker
	resolver *tenants.Resolver
	closers  []func()
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.Noop{}, locker: locks.Noop{}}
	switch cfg.Store {
	case config.StoreRedis:
		rs, err := store.NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.store = rs
		a.locker = locks.NewRedisLocker(rs.Client())
		a.closers = append(a.closers, func() { _ = rs.Close() })
	default:
		a.store = store.NewFileStore(cfg.ConfigDir)
	}
	if cfg.MetricsAddr != "" {
		a.metrics = metrics.NewProm(cfg.MetricsNamespace)
	}

	opts := []tenants.Option{
		tenants.WithProber(folders.NewProber()),
		tenants.WithMetrics(a.metrics),
	}
	if cfg.NatsURL != "" {
		b, err := bus.Connect(cfg.NatsURL, cfg.EventsSubject)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.bus = b
		a.closers = append(a.closers, b.Close)
		opts = append(opts, tenants.WithNotifier(b))
	}
	a.resolver = tenants.NewResolver(a.store, opts...)
	return a, nil
}

// locked runs fn while holding the client's edit lock.
func (a *app) locked(ctx context.Context, clientID string, fn func() error) error {
	release, err := a.locker.Acquire(ctx, "client:"+clientID, lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			logging.Error("docintakectl", "release client lock failed", "client", clientID, "error", err)
		}
	}()
	return fn()
}

// serveMetrics exposes /metrics until ctx is done.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logging.Info("docintakectl", "metrics listening", "addr", a.cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("docintakectl", "metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func withApp(fs *flagSet, args []string, fn func(ctx context.Context, a *app) error) error {
	cfg, err := fs.ParseArgs(args)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}
