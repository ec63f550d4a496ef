// Package keymutex provides per-key mutual exclusion within one process.
// Entries are reference counted and dropped once no goroutine holds or waits
// on them, so the map only grows with concurrently contended keys.
package keymutex

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyMutex serializes callers that use the same key.
type KeyMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{entries: make(map[string]*entry)}
}

// Acquire blocks until key is free or ctx is done. The returned release
// function must be called exactly once.
func (k *KeyMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.drop(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.drop(key, e)
		})
	}, nil
}

// Lock is Acquire without cancellation.
func (k *KeyMutex) Lock(key string) func() {
	release, _ := k.Acquire(context.Background(), key)
	return release
}

// Len returns the number of keys currently held or awaited.
func (k *KeyMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *KeyMutex) drop(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

//Personal.AI order the ending
