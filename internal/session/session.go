package session

import "sync"

// Session carries the acting user and their credential through the pipeline.
// It is an explicit value threaded into every core call, never ambient
// state.
type Session struct {
	User   string
	APIKey string
}

// Locks serializes operations per user identity: each index build or
// question runs to completion before the next one for the same user is
// accepted. Different users never contend.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the user's lock and returns the matching unlock function.
func (l *Locks) Lock(user string) func() {
	l.mu.Lock()
	m, ok := l.locks[user]
	if !ok {
		m = &sync.Mutex{}
		l.locks[user] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
