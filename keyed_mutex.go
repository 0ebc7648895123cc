package prefixdb

import "sync"

// keyedEntry is a reference-counted mutex for one key.
type keyedEntry struct {
	m    sync.Mutex
	refs int
}

// keyedMutex serializes work per key while letting different keys proceed
// in parallel. Entries are dropped once no goroutine holds or waits on them
// and recycled through a sync.Pool.
type keyedMutex struct {
	mu   sync.Mutex
	m    map[string]*keyedEntry
	pool sync.Pool
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		m: make(map[string]*keyedEntry),
		pool: sync.Pool{
			New: func() any { return &keyedEntry{} },
		},
	}
}

// Lock blocks until key is free and returns the function that releases it.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.m[key]
	if !ok {
		e = k.pool.Get().(*keyedEntry)
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.m.Lock()

	var once sync.Once
	return func() {
		once.Do(func() { k.unlock(key, e) })
	}
}

func (k *keyedMutex) unlock(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.m.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.m, key)
		k.pool.Put(e)
	}
}

// held returns the number of keys currently locked or waited on.
func (k *keyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}
