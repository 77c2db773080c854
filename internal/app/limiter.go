package app

import "sync"

// KeyLimiter serializes work per key, e.g. leave requests of one teacher.
type KeyLimiter struct {
	mu    sync.Mutex
	byKey map[int64]*keyLock
}

type keyLock struct {
	sync.Mutex
	waiters int
}

func NewKeyLimiter() *KeyLimiter {
	return &KeyLimiter{byKey: make(map[int64]*keyLock)}
}

// Lock blocks until key is free and returns the unlock func. Idle keys are
// dropped so the map does not grow with every user ever seen.
func (l *KeyLimiter) Lock(key int64) func() {
	l.mu.Lock()
	m, ok := l.byKey[key]
	if !ok {
		m = &keyLock{}
		l.byKey[key] = m
	}
	m.waiters++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.waiters--
		if m.waiters == 0 {
			delete(l.byKey, key)
		}
		l.mu.Unlock()
	}
}

func (l *KeyLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}
