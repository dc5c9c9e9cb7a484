package cli

import (
	"context"
	"fmt"

	"fluxo/internal/backend"
	"fluxo/internal/cache"
	"fluxo/internal/config"
	"fluxo/internal/dashboard"
	"fluxo/internal/freshness"
	"fluxo/internal/log"
	"fluxo/internal/sources"
)

// Stack is the dashboard service together with the pieces it was built from.
type Stack struct {
	Backend     backend.Backend
	Coordinator *freshness.Coordinator
	Service     *dashboard.Service
	Caches      *cache.Manager

	cleanup backend.CleanupFunc
}

// Ping reports whether the backend can serve reads. Backends without a
// connection are always ready.
func (s *Stack) Ping(ctx context.Context) error {
	if p, ok := s.Backend.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close stops background work and releases the backend.
func (s *Stack) Close() error {
	s.Coordinator.Close()
	s.Caches.Stop()
	if s.cleanup != nil {
		return s.cleanup()
	}
	return nil
}

// NewStack opens the configured backend and wires the cached dashboard on
// top of it.
func NewStack(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Stack, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	store := cache.NewLRUCache[any](cfg.CacheMaxEntries, cfg.CacheMaxAge)
	caches := cache.NewManager(logger)
	caches.Register(store)
	caches.StartCleanup(cfg.CacheCleanupInterval)

	var bindings freshness.Bindings
	dashboard.Bind(&bindings)
	coord := freshness.New(store,
		freshness.WithBindings(bindings),
		freshness.WithLogger(logger))

	opts := dashboard.DefaultOptions()
	opts.Horizon = cfg.HorizonMonths
	opts.Lookback = cfg.LookbackMonths
	opts.Concurrency = cfg.SourceConcurrency
	opts.Location = cfg.Location()
	opts.Logger = logger
	opts.Policy = freshness.Policy{
		DedupeWindow:      cfg.DedupeWindow,
		EscalateAfter:     cfg.EscalateAfter,
		BackgroundRetries: cfg.BackgroundRetries,
		RefreshInterval:   cfg.RefreshInterval,
	}

	svc, err := dashboard.NewService(sources.SetOf(res.Backend), coord, opts)
	if err != nil {
		coord.Close()
		caches.Stop()
		if res.Cleanup != nil {
			_ = res.Cleanup()
		}
		return nil, fmt.Errorf("create dashboard: %w", err)
	}

	return &Stack{
		Backend:     res.Backend,
		Coordinator: coord,
		Service:     svc,
		Caches:      caches,
		cleanup:     res.Cleanup,
	}, nil
}
