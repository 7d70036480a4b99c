package service

import "sync"

// userLocks hands out one mutex per user so order execution for a
// single account is serialized while different users never block each
// other. Locks are never removed; the population is bounded by the
// number of active users.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (u *userLocks) get(userID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	return l
}

// Lock acquires the per-user mutex and returns the unlock func.
func (u *userLocks) Lock(userID string) func() {
	l := u.get(userID)
	l.Lock()
	return l.Unlock
}
