package dwell

import (
	"encoding/json"
	"time"
)

// FavoritesChannel names the pubsub channel carrying favorites-changed
// events and notifications for one subject (user id or guest id).
func FavoritesChannel(subject string) string {
	return "dwell:favorites:" + subject
}

// EventType discriminates realtime events on the signal channels.
type EventType string

const (
	EventFavoritesChanged EventType = "favorites.changed"
	EventSessionChanged   EventType = "session.changed"
	EventNotification     EventType = "notification"
)

// Event is the wire format published on redis pubsub and forwarded to
// websocket consumers.
type Event struct {
	Type      EventType       `json:"type"`
	Subject   string          `json:"subject"`
	Body      json.RawMessage `json:"body,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NotificationKind mirrors the UI toast kinds.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// Notification is a user-facing message, fire-and-forget.
type Notification struct {
	Message string           `json:"message"`
	Kind    NotificationKind `json:"kind"`
}

// Property is the display summary joined into favorite listings. The full
// property schema lives in the property service.
type Property struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	City     string  `json:"city,omitempty"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// Favorite is the wire representation of a favorite row joined with its
// property summary. Property is nil when the property can no longer be
// resolved.
type Favorite struct {
	ID         string    `json:"id,omitempty"`
	PropertyID string    `json:"propertyId"`
	Property   *Property `json:"property,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// FavoritesChanged is the body of an EventFavoritesChanged event.
type FavoritesChanged struct {
	PropertyID string `json:"propertyId,omitempty"`
	Favorited  *bool  `json:"favorited,omitempty"`
	Reason     string `json:"reason"` // toggle, migration, session-switch
}
