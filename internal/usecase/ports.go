package usecase

import (
	"context"

	"github.com/dwellspace/dwell"
	"github.com/dwellspace/dwell/internal/domain"
)

// FavoriteRepository defines the remote favorites store. Single attempt per
// call; retry policy belongs to the caller (none is built in).
type FavoriteRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.FavoriteView, error)
	GetByUserAndProperty(ctx context.Context, userID, propertyID string) (domain.FavoriteRecord, error)
	Add(ctx context.Context, userID, propertyID string) (domain.FavoriteRecord, error)
	Remove(ctx context.Context, favoriteID string) error
}

// GuestStore persists the anonymous favorite set. Loads fail open (empty
// set) and writes fail silent; storage failures never propagate past it.
type GuestStore interface {
	Load(ctx context.Context, guestID string) map[string]struct{}
	Save(ctx context.Context, guestID string, set map[string]struct{})
	Clear(ctx context.Context, guestID string)
}

// PropertyRepository resolves property summaries for display.
type PropertyRepository interface {
	Get(ctx context.Context, id string) (domain.Property, error)
	GetMany(ctx context.Context, ids []string) ([]domain.Property, error)
}

// Notifier is the fire-and-forget user-facing notification sink.
type Notifier interface {
	Notify(ctx context.Context, subject string, message string, kind dwell.NotificationKind)
}

// SignalPublisher publishes realtime events for websocket consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, channel string, event dwell.Event) error
}

// SessionSource is the slice of the session tracker the coordinator watches.
type SessionSource interface {
	OnChange(cb func(domain.SessionState, *domain.SessionIdentity)) func()
}
