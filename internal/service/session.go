package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/dwellspace/dwell/internal/domain"
)

var tracer = otel.Tracer("session")

// AuthProvider is the external auth provider contract the tracker consumes:
// one eager session check plus a push-based change stream. The disposer
// returned by OnSessionChange releases the stream subscription.
type AuthProvider interface {
	GetCurrentSession(ctx context.Context) (*domain.SessionIdentity, error)
	OnSessionChange(cb func(*domain.SessionIdentity)) (func(), error)
}

// SessionTracker observes the auth provider's session lifecycle and exposes
// the current identity. It never originates transitions; the provider pushes
// them. States: Unknown (initial) -> Anonymous | Authenticated.
type SessionTracker struct {
	mu           sync.Mutex
	provider     AuthProvider
	state        domain.SessionState
	identity     *domain.SessionIdentity
	listeners    map[int]func(domain.SessionState, *domain.SessionIdentity)
	nextListener int
	unsubscribe  func()
	disposed     bool
}

func NewSessionTracker(provider AuthProvider) *SessionTracker {
	return &SessionTracker{
		provider:  provider,
		state:     domain.SessionUnknown,
		listeners: make(map[int]func(domain.SessionState, *domain.SessionIdentity)),
	}
}

// Start performs the eager session check to resolve Unknown as fast as
// possible, then subscribes to the change stream for the tracker's lifetime.
func (t *SessionTracker) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Session.Tracker.Start")
	defer span.End()

	identity, err := t.provider.GetCurrentSession(ctx)
	if err != nil {
		span.RecordError(errors.Wrap(err, "SessionTracker.Start: eager session check failed"))
		return err
	}

	t.apply(identity)

	unsubscribe, err := t.provider.OnSessionChange(t.apply)
	if err != nil {
		span.RecordError(errors.Wrap(err, "SessionTracker.Start: subscribe failed"))
		return err
	}

	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		unsubscribe()
		return nil
	}
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	return nil
}

func (t *SessionTracker) apply(identity *domain.SessionIdentity) {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}

	if identity != nil {
		t.state = domain.SessionAuthenticated
	} else {
		t.state = domain.SessionAnonymous
	}
	t.identity = identity

	state := t.state
	callbacks := make([]func(domain.SessionState, *domain.SessionIdentity), 0, len(t.listeners))
	for _, cb := range t.listeners {
		callbacks = append(callbacks, cb)
	}
	t.mu.Unlock()

	// listeners run outside the lock so they can call back into the tracker
	for _, cb := range callbacks {
		cb(state, identity)
	}
}

// Current returns the tracker's resolved state and identity. Identity is nil
// unless the state is Authenticated.
func (t *SessionTracker) Current() (domain.SessionState, *domain.SessionIdentity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.identity
}

// OnChange registers a transition listener and returns its disposer.
func (t *SessionTracker) OnChange(cb func(domain.SessionState, *domain.SessionIdentity)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextListener
	t.nextListener++
	t.listeners[id] = cb

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// Dispose releases the provider subscription and drops all listeners.
// Safe to call more than once.
func (t *SessionTracker) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.listeners = make(map[int]func(domain.SessionState, *domain.SessionIdentity))
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
