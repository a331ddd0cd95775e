package main

import (
	"context"
	"sort"
	"testing"

	"github.com/ukaji3/reconscan-go/internal/storage"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/reconcile"
)

// fakeStore keeps accounts and validations in memory and records every write.
type fakeStore struct {
	accounts    map[int64]reconcile.Account
	nextID      int64
	upserted    []reconcile.Account
	created     [][]storage.ValidationRecord
	validations []storage.ValidationRecord
	closed      bool
}

func newFakeStore(accounts ...reconcile.Account) *fakeStore {
	s := &fakeStore{accounts: make(map[int64]reconcile.Account), nextID: 1}
	for _, a := range accounts {
		if a.ID == 0 {
			a.ID = s.nextID
		}
		if a.ID >= s.nextID {
			s.nextID = a.ID + 1
		}
		s.accounts[a.ID] = a
	}
	return s
}

// useStore makes the commands open store instead of the configured backend.
func useStore(t *testing.T, store storage.Storage) *int {
	t.Helper()
	opened := 0
	prev := openStorage
	openStorage = func() (storage.Storage, error) {
		opened++
		return store, nil
	}
	t.Cleanup(func() { openStorage = prev })
	return &opened
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func (s *fakeStore) UpsertAccount(_ context.Context, account reconcile.Account) (reconcile.Account, error) {
	for id, existing := range s.accounts {
		if existing.ReconciliationTag == account.ReconciliationTag &&
			(existing.PeriodID != account.PeriodID || existing.AccountNumber != account.AccountNumber) {
			return reconcile.Account{}, storage.ErrDuplicateTag
		}
		if existing.PeriodID == account.PeriodID && existing.AccountNumber == account.AccountNumber {
			account.ID = id
		}
	}
	if account.ID == 0 {
		account.ID = s.nextID
		s.nextID++
	}
	s.accounts[account.ID] = account
	s.upserted = append(s.upserted, account)
	return account, nil
}

func (s *fakeStore) GetAccount(_ context.Context, id int64) (reconcile.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return reconcile.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) GetAccountByTag(_ context.Context, tag string) (reconcile.Account, error) {
	for _, a := range s.accounts {
		if a.ReconciliationTag == tag {
			return a, nil
		}
	}
	return reconcile.Account{}, storage.ErrNotFound
}

func (s *fakeStore) ListAccounts(_ context.Context, periodID int) ([]reconcile.Account, error) {
	var out []reconcile.Account
	for _, a := range s.accounts {
		if a.PeriodID == periodID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, nil
}

func (s *fakeStore) GetAccountsByTags(_ context.Context, tags []string) ([]reconcile.Account, error) {
	want := make(map[string]bool, len(tags))
	for _, tag := range tags {
		want[tag] = true
	}
	var out []reconcile.Account
	for _, a := range s.accounts {
		if want[a.ReconciliationTag] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateValidations(_ context.Context, records []storage.ValidationRecord) error {
	s.created = append(s.created, records)
	s.validations = append(s.validations, records...)
	return nil
}

func (s *fakeStore) ListValidations(_ context.Context, accountID int64) ([]storage.ValidationRecord, error) {
	var out []storage.ValidationRecord
	for i := len(s.validations) - 1; i >= 0; i-- {
		if s.validations[i].AccountID == accountID {
			out = append(out, s.validations[i])
		}
	}
	return out, nil
}
