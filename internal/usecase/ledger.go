package usecase

import "sync"

// ProcessingLedger tracks in-flight action names so the same named operation
// is never launched twice concurrently. Every operation begins before
// starting and ends in a deferred cleanup regardless of outcome, so the
// ledger never leaks an entry after the operation settles.
type ProcessingLedger struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewProcessingLedger() *ProcessingLedger {
	return &ProcessingLedger{
		inflight: make(map[string]struct{}),
	}
}

// Begin marks the action as in flight. Calling Begin on an already-present
// name is a safe no-op; it does not double-count.
func (l *ProcessingLedger) Begin(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight[name] = struct{}{}
}

// TryBegin marks the action as in flight and reports whether this call won
// the entry. Callers use it as a guard-and-enter.
func (l *ProcessingLedger) TryBegin(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.inflight[name]; exists {
		return false
	}
	l.inflight[name] = struct{}{}
	return true
}

// End removes the action from the ledger.
func (l *ProcessingLedger) End(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inflight, name)
}

// IsProcessing reports whether the action is currently in flight.
func (l *ProcessingLedger) IsProcessing(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, exists := l.inflight[name]
	return exists
}
