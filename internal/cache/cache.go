// Package cache provides namespaced, TTL-bounded storage for computed
// search pages and market statistics.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Namespaces
const (
	NamespaceSearch = "search"
	NamespaceStats  = "stats"
)

// Store is a byte-oriented key/value cache with per-entry TTL.
// Keys are namespaced as "<namespace>:<key>".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key beginning with prefix and returns the count
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Key joins a namespace and a key
func Key(namespace, key string) string {
	return namespace + ":" + key
}

// ClearNamespace removes all entries in namespace; an empty namespace clears
// every known namespace.
func ClearNamespace(ctx context.Context, s Store, namespace string) (int, error) {
	namespaces := []string{namespace}
	if namespace == "" {
		namespaces = []string{NamespaceSearch, NamespaceStats}
	}

	total := 0
	for _, ns := range namespaces {
		ns = strings.TrimSpace(ns)
		n, err := s.DeletePrefix(ctx, ns+":")
		if err != nil {
			return total, fmt.Errorf("failed to clear namespace %s: %w", ns, err)
		}
		total += n
	}
	return total, nil
}

// GetJSON decodes a cached value into out. A missing key returns false with no error.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value and stores it under key
func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}
