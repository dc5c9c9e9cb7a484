// Package memory is an in-process collaborator backend seeded from a JSON
// file. It serves every source port and keeps data for the life of the process.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"fluxo/internal/core"
	"fluxo/internal/sources"
)

type Store struct {
	mu sync.RWMutex
	ds sources.Dataset
}

func New(ds sources.Dataset) *Store {
	return &Store{ds: ds}
}

// NewFromFile seeds the store from path. An empty path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	if path == "" {
		return New(sources.Dataset{}), nil
	}
	ds, err := sources.LoadSeed(path)
	if err != nil {
		return nil, err
	}
	return New(ds), nil
}

// Replace swaps the whole dataset.
func (s *Store) Replace(ds sources.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
}

// AddTransaction records a realized transaction.
func (s *Store) AddTransaction(_ context.Context, tx core.TransactionRecord) error {
	tx.Source = core.SourceRealized
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds.Transactions = append(s.ds.Transactions, tx)
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Accounts), nil
}

func (s *Store) ListCards(ctx context.Context) ([]core.CardInvoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Cards), nil
}

func (s *Store) ListRecurringRules(ctx context.Context) ([]core.RecurringRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Recurring), nil
}

func (s *Store) ListInstallments(ctx context.Context) ([]core.InstallmentPurchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Installments), nil
}

func (s *Store) ListFinancings(ctx context.Context) ([]core.FinancingContract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Financings), nil
}

// ListTransactions returns transactions dated in [from, to), oldest first.
func (s *Store) ListTransactions(ctx context.Context, from, to time.Time) ([]core.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.TransactionRecord
	for _, tx := range s.ds.Transactions {
		if tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		out = append(out, tx)
	}
	slices.SortStableFunc(out, func(a, b core.TransactionRecord) int {
		return a.Date.Compare(b.Date.Time)
	})
	return out, nil
}

var _ sources.Collaborators = (*Store)(nil)
