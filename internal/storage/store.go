// Package storage provides the durable per-device key-value store used for
// onboarding flags, persona profiles and conversation logs.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage closed")

// Store is a string key-value store with synchronous write semantics: a write
// returns only after the backend acknowledged it.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
	// SetMany stores all entries atomically.
	SetMany(ctx context.Context, entries map[string]string) error
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix atomically.
	DeletePrefix(ctx context.Context, prefix string) error
	// Close releases backend resources.
	Close() error
}

// Namespace returns a view of s whose keys are transparently prefixed.
// Closing the view does not close s.
func Namespace(s Store, prefix string) Store {
	return &namespaced{parent: s, prefix: prefix}
}

type namespaced struct {
	parent Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.parent.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.parent.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) SetMany(ctx context.Context, entries map[string]string) error {
	prefixed := make(map[string]string, len(entries))
	for k, v := range entries {
		prefixed[n.prefix+k] = v
	}
	return n.parent.SetMany(ctx, prefixed)
}

func (n *namespaced) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = n.prefix + k
	}
	return n.parent.Delete(ctx, prefixed...)
}

func (n *namespaced) DeletePrefix(ctx context.Context, prefix string) error {
	return n.parent.DeletePrefix(ctx, n.prefix+prefix)
}

func (n *namespaced) Close() error { return nil }

func hasPrefix(key, prefix string) bool {
	return strings.HasPrefix(key, prefix)
}
