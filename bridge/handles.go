package bridge

import "sync"

// handleTable maps small integer tokens to live managed instances. The
// foreign instance layout stores only the token; the table keeps the
// managed object reachable until finalize removes it. Token zero is
// reserved as "unset".
type handleTable struct {
	mu      sync.RWMutex
	next    uint64
	entries map[uint64]Implementation
}

func newHandleTable() *handleTable {
	return &handleTable{entries: make(map[uint64]Implementation)}
}

// insert pins an instance and returns its token.
func (t *handleTable) insert(inst Implementation) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.entries[t.next] = inst
	return t.next
}

// lookup resolves a token to its instance.
func (t *handleTable) lookup(token uint64) (Implementation, bool) {
	if token == 0 {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	inst, ok := t.entries[token]
	return inst, ok
}

// remove unpins a token's instance and returns it.
func (t *handleTable) remove(token uint64) (Implementation, bool) {
	if token == 0 {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.entries[token]
	if ok {
		delete(t.entries, token)
	}
	return inst, ok
}

// size reports how many instances are pinned.
func (t *handleTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
