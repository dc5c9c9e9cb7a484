// Package dashboard composes the collaborator sources, the projection engine
// and the invoice classifier behind one cached, self-refreshing dataset.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"fluxo/internal/core"
	"fluxo/internal/freshness"
	"fluxo/internal/invoice"
	"fluxo/internal/log"
	"fluxo/internal/projection"
	"fluxo/internal/sources"
)

// Key caches the unified dashboard dataset.
const Key = "dashboard-unified"

// Entities whose mutations change the dashboard.
var Entities = []string{"account", "card", "invoice", "recurring", "installment", "financing", "transaction"}

// Screens that edit dashboard data; returning from one revalidates it.
var Screens = []string{"accounts", "cards", "transactions", "recurring", "installments", "financings"}

// Bind registers the dashboard key for every mutation entity and screen.
func Bind(b *freshness.Bindings) {
	b.Bind(Key, Entities, Screens)
}

// Snapshot is one load of the dashboard, computed against Today.
type Snapshot struct {
	GeneratedAt time.Time
	Today       time.Time
	Months      []core.MonthBucket
	Invoices    invoice.Summary
	// Failed names the sources that could not be fetched.
	Failed []string

	inputs projection.Inputs
}

// Options configures a Service.
type Options struct {
	Horizon     int
	Lookback    int
	Concurrency int
	Policy      freshness.Policy
	Location    *time.Location
	Now         func() time.Time
	Logger      *log.Logger
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Horizon:     projection.DefaultHorizon,
		Lookback:    projection.DefaultLookback,
		Concurrency: 4,
		Policy:      freshness.DefaultPolicy(),
		Location:    time.UTC,
		Now:         time.Now,
	}
}

// Service serves the dashboard from the freshness coordinator.
type Service struct {
	src    sources.Set
	coord  *freshness.Coordinator
	opts   Options
	logger *log.Logger
	months singleflight.Group
}

// NewService registers the dashboard key on coord.
func NewService(src sources.Set, coord *freshness.Coordinator, opts Options) (*Service, error) {
	if opts.Horizon < 1 {
		return nil, &core.InputValidationError{Field: "horizon", Reason: "must be at least 1 month"}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}

	s := &Service{
		src:    src,
		coord:  coord,
		opts:   opts,
		logger: opts.Logger.WithComponent(log.ComponentDashboard),
	}
	if _, err := coord.Register(Key, func(ctx context.Context) (any, error) {
		return s.load(ctx)
	}, opts.Policy); err != nil {
		return nil, fmt.Errorf("register %s: %w", Key, err)
	}
	return s, nil
}

// Coordinator returns the coordinator the service reads through.
func (s *Service) Coordinator() *freshness.Coordinator { return s.coord }

func (s *Service) today() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

func (s *Service) bounds() projection.Bounds {
	return projection.Bounds{Horizon: s.opts.Horizon, Lookback: s.opts.Lookback}
}

func (s *Service) load(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	today := s.today()
	current := core.PeriodOf(today)

	ds, err := fetchAll(ctx, s.src, current, s.opts.Concurrency, s.logger)
	if err != nil {
		return Snapshot{}, err
	}

	months, err := projection.Project(s.opts.Horizon, ds.inputs, today)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		GeneratedAt: s.opts.Now(),
		Today:       today,
		Months:      months,
		Invoices:    invoice.Summarize(ds.cards, today),
		Failed:      ds.failed,
		inputs:      ds.inputs,
	}
	s.logger.InfoContext(ctx, "Dashboard loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldHorizon, s.opts.Horizon,
		log.FieldCount, snap.Invoices.Count(),
		"failed_sources", len(ds.failed),
		log.FieldDuration, time.Since(start).Milliseconds())
	return snap, nil
}

// Snapshot returns the cached dashboard, loading it on first use.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	return freshness.WithFreshness(ctx, s.coord, Key, s.load, s.opts.Policy)
}

// Projection returns the month buckets of the current snapshot.
func (s *Service) Projection(ctx context.Context) ([]core.MonthBucket, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Months, nil
}

// Invoices returns the classified invoices of the current snapshot.
func (s *Service) Invoices(ctx context.Context) (invoice.Summary, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return invoice.Summary{}, err
	}
	return snap.Invoices, nil
}

// MonthDetail resolves one month against the snapshot. Realized records of
// past months are not part of the snapshot and are queried on demand;
// concurrent requests for the same month share one query.
func (s *Service) MonthDetail(ctx context.Context, month, year int) (core.MonthDetail, error) {
	if _, err := s.bounds().Check(month, year, s.today()); err != nil {
		return core.MonthDetail{}, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.MonthDetail{}, err
	}

	in := snap.inputs
	p := core.Period{Year: year, Month: month}
	if p.Before(core.PeriodOf(snap.Today)) {
		in = s.withRealized(ctx, in, p)
	}

	detail, err := projection.Detail(month, year, in, snap.Today, s.bounds())
	if err != nil {
		return core.MonthDetail{}, err
	}
	s.logger.DebugContext(ctx, "Month detail resolved",
		log.FieldOperation, log.OpDetail, log.FieldYear, year, log.FieldMonth, month,
		log.FieldCount, detail.TotalTransactionCount)
	return detail, nil
}

// withRealized swaps the snapshot's realized records for those of p.
func (s *Service) withRealized(ctx context.Context, in projection.Inputs, p core.Period) projection.Inputs {
	in.Unavailable = without(in.Unavailable, core.SourceRealized)
	if s.src.Transactions == nil {
		in.Transactions = nil
		in.Unavailable = append(in.Unavailable, core.SourceRealized)
		return in
	}

	v, err, _ := s.months.Do(p.String(), func() (any, error) {
		return s.src.Transactions.ListTransactions(ctx, p.Start(), p.End())
	})
	if err != nil {
		fields := log.NewFields().WithPeriod(p.Year, p.Month).WithError(err)
		s.logger.WarnContext(ctx, "Realized transactions unavailable", fields.ToSlice()...)
		in.Transactions = nil
		in.Unavailable = append(in.Unavailable, core.SourceRealized)
		return in
	}
	in.Transactions = v.([]core.TransactionRecord)
	return in
}

func without(kinds []core.SourceKind, k core.SourceKind) []core.SourceKind {
	out := make([]core.SourceKind, 0, len(kinds))
	for _, x := range kinds {
		if x != k {
			out = append(out, x)
		}
	}
	return out
}

// Refresh reloads the dashboard and waits for it, surfacing the failure.
func (s *Service) Refresh(ctx context.Context) error {
	err := s.coord.Refresh(ctx, Key)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Manual refresh failed", log.FieldOperation, log.OpRefresh, log.FieldError, err.Error())
	}
	return err
}

// Invalidate marks the dashboard stale or refreshes it in the background.
func (s *Service) Invalidate(urgency freshness.Urgency) error {
	return s.coord.Invalidate(Key, urgency)
}
