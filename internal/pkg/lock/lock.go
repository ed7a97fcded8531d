// Package lock provides per-key locking for operations that mutate the same
// sticker holdings from several goroutines.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock cannot be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// keyMutex is a one-slot semaphore so waiters can give up on a context.
// refs counts the holder plus every goroutine waiting for the slot; the
// entry is dropped from the map when it reaches zero.
type keyMutex struct {
	ch   chan struct{}
	refs int
}

// KeyedLock serializes work per key. Different keys never block each other.
// Only keys that are held or waited on occupy memory.
type KeyedLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyMutex
}

// New creates a new KeyedLock.
func New[K comparable]() *KeyedLock[K] {
	return &KeyedLock[K]{locks: make(map[K]*keyMutex)}
}

// acquire returns the entry for key with a reference taken for the caller.
func (kl *KeyedLock[K]) acquire(key K) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if kl.locks == nil {
		kl.locks = make(map[K]*keyMutex)
	}
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{ch: make(chan struct{}, 1)}
		kl.locks[key] = m
	}
	m.refs++
	return m
}

// release drops one reference. Callers must hold kl.mu.
func (kl *KeyedLock[K]) release(key K, m *keyMutex) {
	m.refs--
	if m.refs == 0 {
		delete(kl.locks, key)
	}
}

func (kl *KeyedLock[K]) giveUp(key K, m *keyMutex) {
	kl.mu.Lock()
	kl.release(key, m)
	kl.mu.Unlock()
}

// Lock blocks until the lock for key is held.
func (kl *KeyedLock[K]) Lock(key K) {
	kl.acquire(key).ch <- struct{}{}
}

// Unlock releases the lock for key. Unlocking a key that is not held is a
// no-op.
func (kl *KeyedLock[K]) Unlock(key K) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		return
	}
	select {
	case <-m.ch:
		kl.release(key, m)
	default:
	}
}

// TryLock acquires the lock without blocking and reports whether it did.
func (kl *KeyedLock[K]) TryLock(key K) bool {
	m := kl.acquire(key)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		kl.giveUp(key, m)
		return false
	}
}

// LockWithTimeout waits up to timeout (or until ctx is done) for the lock.
// It returns false if the lock was not acquired.
func (kl *KeyedLock[K]) LockWithTimeout(ctx context.Context, key K, timeout time.Duration) bool {
	m := kl.acquire(key)

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case m.ch <- struct{}{}:
		return true
	case <-timeoutCtx.Done():
		kl.giveUp(key, m)
		return false
	}
}

// WithLockContext runs fn while holding the lock for key. It returns
// ErrLockTimeout when the lock is not acquired in time, and the context
// error when ctx ends while waiting.
func (kl *KeyedLock[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if !kl.LockWithTimeout(ctx, key, timeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrLockTimeout
	}
	defer kl.Unlock(key)
	return fn()
}

// size reports how many keys currently have an entry.
func (kl *KeyedLock[K]) size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
