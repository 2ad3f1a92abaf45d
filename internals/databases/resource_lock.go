package database

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// ResourceLocker serializes work on named resources for the lifetime of a
// transaction. Lock must be called with the transaction handle; the returned
// release func must be invoked once the transaction has committed or rolled back.
type ResourceLocker interface {
	Lock(ctx context.Context, tx *gorm.DB, keys ...string) (release func(), err error)
}

// NewResourceLocker picks the advisory-lock flavour that matches the dialect.
func NewResourceLocker(db *gorm.DB) ResourceLocker {
	if db != nil && db.Dialector.Name() == DriverPostgres {
		return PGAdvisoryLocker{}
	}
	return NewKeyedMutex()
}

/* =========================================================
   Postgres: pg_advisory_xact_lock, auto-released at tx end
========================================================= */

type PGAdvisoryLocker struct{}

func (PGAdvisoryLocker) Lock(ctx context.Context, tx *gorm.DB, keys ...string) (func(), error) {
	for _, k := range sortedUnique(keys) {
		if err := tx.WithContext(ctx).Exec(`SELECT pg_advisory_xact_lock(hashtext(?))`, k).Error; err != nil {
			return nil, err
		}
	}
	return func() {}, nil
}

/* =========================================================
   Process-local keyed mutex (sqlite / single instance)
========================================================= */

type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, _ *gorm.DB, keys ...string) (func(), error) {
	keys = sortedUnique(keys)
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := m.acquire(ctx, k); err != nil {
			m.releaseAll(held)
			return nil, err
		}
		held = append(held, k)
	}
	var once sync.Once
	return func() { once.Do(func() { m.releaseAll(held) }) }, nil
}

func (m *KeyedMutex) acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.drop(key, e)
		return ctx.Err()
	}
}

func (m *KeyedMutex) releaseAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		m.mu.Lock()
		e := m.locks[keys[i]]
		m.mu.Unlock()
		if e == nil {
			continue
		}
		<-e.ch
		m.drop(keys[i], e)
	}
}

func (m *KeyedMutex) drop(key string, e *keyedEntry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

func sortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
