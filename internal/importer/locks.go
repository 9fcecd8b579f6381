package importer

import (
	"fmt"
	"sync"
)

// keyedLocks serializes grade-card creation per (batch, semester) so two
// concurrent imports for the same batch cannot race on card numbering.
// Database uniqueness on (batch_id, semester, card_no) remains the backstop
// for multi-process deployments.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for (batchID, semester) and returns its unlock
// function.
func (k *keyedLocks) Lock(batchID int64, semester int) func() {
	key := fmt.Sprintf("%d:%d", batchID, semester)

	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
