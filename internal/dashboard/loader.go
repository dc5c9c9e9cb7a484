package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fluxo/internal/core"
	"fluxo/internal/log"
	"fluxo/internal/projection"
	"fluxo/internal/sources"
)

// Source names used in logs and in Snapshot.Failed.
const (
	SourceAccounts     = "accounts"
	SourceCards        = "cards"
	SourceRecurring    = "recurring"
	SourceInstallments = "installments"
	SourceFinancings   = "financings"
	SourceTransactions = "transactions"
)

const sourceCount = 6

var errNoPort = errors.New("no collaborator configured")

// dataset is everything one load fetched, before projection.
type dataset struct {
	inputs projection.Inputs
	cards  []core.CardInvoice
	failed []string
}

type fetchResult struct {
	mu     sync.Mutex
	errs   []error
	failed []string
	marks  []core.SourceKind
}

func (r *fetchResult) fail(name string, mark core.SourceKind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, name)
	r.errs = append(r.errs, &core.SourceUnavailableError{Source: name, Err: err})
	if mark != "" {
		r.marks = append(r.marks, mark)
	}
}

// fetchAll queries every port concurrently. A failed port is recorded and the
// load continues; the load only fails when every port failed.
func fetchAll(ctx context.Context, src sources.Set, window core.Period, limit int, logger *log.Logger) (dataset, error) {
	var (
		ds  dataset
		res fetchResult
		g   errgroup.Group
	)
	g.SetLimit(limit)

	run := func(name string, mark core.SourceKind, ok bool, fn func() error) {
		g.Go(func() error {
			if !ok {
				res.fail(name, mark, errNoPort)
				return nil
			}
			start := time.Now()
			if err := fn(); err != nil {
				logger.WarnContext(ctx, "Source fetch failed",
					log.FieldSource, name, log.FieldError, err.Error(),
					log.FieldDuration, time.Since(start).Milliseconds())
				res.fail(name, mark, err)
			}
			return nil
		})
	}

	run(SourceAccounts, core.SourceBalances, src.Accounts != nil, func() (err error) {
		ds.inputs.Accounts, err = src.Accounts.ListAccounts(ctx)
		return err
	})
	run(SourceCards, "", src.Cards != nil, func() (err error) {
		ds.cards, err = src.Cards.ListCards(ctx)
		return err
	})
	run(SourceRecurring, core.SourceRecurring, src.Recurring != nil, func() (err error) {
		ds.inputs.Recurring, err = src.Recurring.ListRecurringRules(ctx)
		return err
	})
	run(SourceInstallments, core.SourceInstallment, src.Installments != nil, func() (err error) {
		ds.inputs.Installments, err = src.Installments.ListInstallments(ctx)
		return err
	})
	run(SourceFinancings, core.SourceFinancing, src.Financings != nil, func() (err error) {
		ds.inputs.Financings, err = src.Financings.ListFinancings(ctx)
		return err
	})
	run(SourceTransactions, core.SourceRealized, src.Transactions != nil, func() (err error) {
		ds.inputs.Transactions, err = src.Transactions.ListTransactions(ctx, window.Start(), window.End())
		return err
	})
	_ = g.Wait()

	if len(res.failed) == sourceCount {
		return dataset{}, &core.SourceUnavailableError{Source: "all", Err: errors.Join(res.errs...)}
	}

	for _, ci := range ds.cards {
		ds.inputs.Cards = append(ds.inputs.Cards, ci.Card)
	}
	ds.inputs.Unavailable = res.marks
	ds.failed = res.failed
	return ds, nil
}
