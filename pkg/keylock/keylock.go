package keylock

import "sync"

// KeyLock provides mutual exclusion per string key. The intake handler and
// the missed-intake reconciler share one instance so that read-modify-write
// cycles on the same patient address never interleave.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use. Locks are kept
// for the lifetime of the process; the key space (patient addresses) is
// small and bounded.
func (kl *KeyLock) Lock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	if !ok {
		m = &sync.Mutex{}
		kl.locks[key] = m
	}
	kl.mu.Unlock()

	m.Lock()
}

func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()

	if ok {
		m.Unlock()
	}
}

// Do runs fn while holding the lock for key.
func (kl *KeyLock) Do(key string, fn func()) {
	kl.Lock(key)
	defer kl.Unlock(key)
	fn()
}
