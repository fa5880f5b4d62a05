package server

import "sync"

// roomLocks hands out one mutex per room so that state changes for a room
// are serialized without rooms blocking each other. Locks are never
// reclaimed; a room outlives any session and the table stays small.
type roomLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[uint]*sync.Mutex)}
}

func (l *roomLocks) Lock(roomID uint) func() {
	l.mu.Lock()
	lock, ok := l.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[roomID] = lock
	}
	l.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
