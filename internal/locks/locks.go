// Package locks provides the per-key serializing guards §5 requires:
// per-nozzle reading creation, per-(station,date) transaction creation,
// per-creditor balance updates, per-tank level updates, and per-station
// handover sequencing. Each keyed mutex keeps one entry per key behind a
// single map-guarding mutex, with a per-entry lock for the hot path.
package locks

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Locker acquires a named lock, in-process or distributed, releasing it
// via the returned unlock func. KeyedMutex and RedisLocker both satisfy it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex hands out one *sync.Mutex per string key, created lazily and
// kept forever (keys are entity ids; the process lifetime is short enough
// that this never grows unbounded in practice — a long-lived deployment
// would pair this with an LRU, which §5 doesn't ask for).
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) entry(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock blocks until the key-scoped mutex is acquired or ctx is cancelled.
// On cancellation, the mutex is never acquired and the returned unlock is a
// no-op the caller should still call for symmetry.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (unlock func(), err error) {
	m := k.entry(key)

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return m.Unlock, nil
	case <-ctx.Done():
		// The goroutine above will still acquire the lock eventually and
		// hold it until something unlocks it — to avoid leaking a held
		// lock forever, spin a watcher that unlocks as soon as it lands.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return func() {}, ctx.Err()
	}
}

// Registry bundles the five serialization domains named in §5 so call sites
// ask for the right guard by name instead of constructing raw keys.
type Registry struct {
	Nozzle      Locker // per-nozzle reading creation
	StationDate Locker // per-(station,date) transaction creation
	Creditor    Locker // per-creditor balance updates
	Tank        Locker // per-tank level updates
	Station     Locker // per-station handover sequencing
}

// NewRegistry builds an in-process registry backed by one KeyedMutex per
// domain. Adequate for a single server instance; a multi-instance
// deployment should use NewRedisRegistry instead so the serialization
// actually holds across processes.
func NewRegistry() *Registry {
	return &Registry{
		Nozzle:      NewKeyedMutex(),
		StationDate: NewKeyedMutex(),
		Creditor:    NewKeyedMutex(),
		Tank:        NewKeyedMutex(),
		Station:     NewKeyedMutex(),
	}
}

// NewRedisRegistry builds a registry whose five domains are each a
// RedisLocker against client, namespaced by key prefix, so the same
// serialization guarantees hold across every server process sharing client.
func NewRedisRegistry(client *redis.Client) *Registry {
	return &Registry{
		Nozzle:      NewRedisLocker(client, "lock:nozzle:"),
		StationDate: NewRedisLocker(client, "lock:txndate:"),
		Creditor:    NewRedisLocker(client, "lock:creditor:"),
		Tank:        NewRedisLocker(client, "lock:tank:"),
		Station:     NewRedisLocker(client, "lock:station:"),
	}
}
