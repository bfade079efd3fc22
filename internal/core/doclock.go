package core

import "sync"

// DocumentLocks serialises work on the same document id inside this
// process. Entries are reference counted and removed once released.
type DocumentLocks struct {
	mu    sync.Mutex
	locks map[int]*documentLock
}

type documentLock struct {
	mu   sync.Mutex
	refs int
}

// NewDocumentLocks returns an empty lock table.
func NewDocumentLocks() *DocumentLocks {
	return &DocumentLocks{locks: make(map[int]*documentLock)}
}

// Lock blocks until the caller holds the lock for documentID and returns
// the function that releases it.
func (l *DocumentLocks) Lock(documentID int) (unlock func()) {
	l.mu.Lock()
	dl, ok := l.locks[documentID]
	if !ok {
		dl = &documentLock{}
		l.locks[documentID] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, documentID)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of documents currently locked or waited on.
func (l *DocumentLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
