package commission

import "sync"

// =============================================================================
// KEYED MUTEX - Per-key write serialization
// =============================================================================

// keyedMutex serializes writers per string key. The balance ledger uses one
// keyed on (tenantID, influencerID) because the subtract/add sequence on a
// balance is not atomic across two reads; the engine uses one keyed on order
// id for the commission read-modify-write. Keys are never evicted: the key
// space is bounded by the influencer/order population.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &sync.Mutex{}
		km.locks[key] = l
	}
	km.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func balanceKey(tenantID, influencerID string) string {
	return tenantID + ":" + influencerID
}

func assignmentKey(campaignID, influencerID string) string {
	return campaignID + ":" + influencerID
}
