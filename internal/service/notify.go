package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dwellspace/dwell"
)

// NotificationService delivers user-facing notifications over the subject's
// signal channel. Delivery is fire-and-forget: a failed publish is logged,
// never surfaced to the operation that triggered it.
type NotificationService struct {
	signal *SignalService
}

func NewNotificationService(signal *SignalService) *NotificationService {
	return &NotificationService{signal: signal}
}

func (s *NotificationService) Notify(ctx context.Context, subject string, message string, kind dwell.NotificationKind) {

	body, err := json.Marshal(dwell.Notification{Message: message, Kind: kind})
	if err != nil {
		slog.Warn("notification encode failed", "subject", subject, "error", err)
		return
	}

	event := dwell.Event{
		Type:      dwell.EventNotification,
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now(),
	}

	if err := s.signal.Publish(ctx, dwell.FavoritesChannel(subject), event); err != nil {
		slog.Warn("notification publish failed", "subject", subject, "error", err)
	}
}
