// Package storagetest provides storage doubles for tests.
package storagetest

import (
	"context"
	"errors"
	"sync"

	"github.com/adultally/ally/backend/internal/storage"
)

// ErrInjected is returned by a Faulty store whose failure switch is on.
var ErrInjected = errors.New("injected storage failure")

// Faulty wraps a Store and fails reads or writes on demand.
type Faulty struct {
	storage.Store

	mu         sync.Mutex
	failWrites bool
	failReads  bool
	writes     int
}

// NewFaulty wraps an in-memory store.
func NewFaulty() *Faulty {
	return &Faulty{Store: storage.NewMemoryStore()}
}

// FailWrites toggles write failures.
func (f *Faulty) FailWrites(on bool) {
	f.mu.Lock()
	f.failWrites = on
	f.mu.Unlock()
}

// FailReads toggles read failures.
func (f *Faulty) FailReads(on bool) {
	f.mu.Lock()
	f.failReads = on
	f.mu.Unlock()
}

// Writes returns the number of successful write calls.
func (f *Faulty) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *Faulty) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failReads
	f.mu.Unlock()
	if fail {
		return "", false, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *Faulty) Set(ctx context.Context, key, value string) error {
	return f.write(func() error { return f.Store.Set(ctx, key, value) })
}

func (f *Faulty) SetMany(ctx context.Context, entries map[string]string) error {
	return f.write(func() error { return f.Store.SetMany(ctx, entries) })
}

func (f *Faulty) Delete(ctx context.Context, keys ...string) error {
	return f.write(func() error { return f.Store.Delete(ctx, keys...) })
}

func (f *Faulty) DeletePrefix(ctx context.Context, prefix string) error {
	return f.write(func() error { return f.Store.DeletePrefix(ctx, prefix) })
}

func (f *Faulty) write(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return ErrInjected
	}
	if err := fn(); err != nil {
		return err
	}
	f.writes++
	return nil
}
