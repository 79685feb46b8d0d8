package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dwellspace/dwell"
	"github.com/dwellspace/dwell/internal/domain"
)

// FavoritesUsecase unifies guest and remote favorites into one logical view
// keyed off the requester's session state. Exactly one store is authoritative
// at a time: the remote store when authenticated, the guest store when
// anonymous. It never mutates the view optimistically; remote calls are
// confirmed before anything is reported favorited.
type FavoritesUsecase struct {
	favorites  FavoriteRepository
	properties PropertyRepository
	guest      GuestStore
	ledger     *ProcessingLedger
	notifier   Notifier
	signal     SignalPublisher
}

func NewFavoritesUsecase(
	favorites FavoriteRepository,
	properties PropertyRepository,
	guest GuestStore,
	ledger *ProcessingLedger,
	notifier Notifier,
	signal SignalPublisher,
) *FavoritesUsecase {
	return &FavoritesUsecase{
		favorites:  favorites,
		properties: properties,
		guest:      guest,
		ledger:     ledger,
		notifier:   notifier,
		signal:     signal,
	}
}

// ToggleFavorite flips the favorited state of propertyID for the requester.
// At most one toggle per subject+property is in flight at a time; a
// concurrent duplicate returns domain.ErrInFlight without touching any
// store. The success notification is emitted exactly once, on the success
// path only.
func (uc *FavoritesUsecase) ToggleFavorite(ctx context.Context, req domain.Requester, propertyID string) error {

	if propertyID == "" {
		return domain.ValidationError{Reason: "property id required"}
	}

	switch req.State {
	case domain.SessionAuthenticated:
		if req.Identity == nil {
			return domain.ErrNotAuthenticated
		}
	case domain.SessionAnonymous:
		if req.GuestID == "" {
			return domain.ValidationError{Reason: "guest id required"}
		}
	default:
		return domain.ErrSessionUnresolved
	}

	name := domain.ToggleActionName(req.Subject(), propertyID)
	if !uc.ledger.TryBegin(name) {
		return domain.ErrInFlight
	}
	defer uc.ledger.End(name)

	if req.State == domain.SessionAuthenticated {
		return uc.toggleRemote(ctx, req, propertyID)
	}
	return uc.toggleGuest(ctx, req, propertyID)
}

func (uc *FavoritesUsecase) toggleRemote(ctx context.Context, req domain.Requester, propertyID string) error {
	userID := req.Identity.UserID

	existing, err := uc.favorites.GetByUserAndProperty(ctx, userID, propertyID)
	switch {
	case err == nil:
		if err := uc.favorites.Remove(ctx, existing.ID); err != nil {
			uc.notifier.Notify(ctx, userID, "Could not update favorites", dwell.NotificationError)
			return domain.RemoteError{Op: "remove", Err: err}
		}
		uc.notifier.Notify(ctx, userID, "Removed from favorites", dwell.NotificationSuccess)
		uc.publishChanged(ctx, userID, propertyID, boolPtr(false), "toggle")
		return nil

	case errors.Is(err, domain.ErrNotFound):
		if _, err := uc.favorites.Add(ctx, userID, propertyID); err != nil {
			uc.notifier.Notify(ctx, userID, "Could not update favorites", dwell.NotificationError)
			return domain.RemoteError{Op: "add", Err: err}
		}
		uc.notifier.Notify(ctx, userID, "Added to favorites", dwell.NotificationSuccess)
		uc.publishChanged(ctx, userID, propertyID, boolPtr(true), "toggle")
		return nil

	default:
		uc.notifier.Notify(ctx, userID, "Could not update favorites", dwell.NotificationError)
		return domain.RemoteError{Op: "lookup", Err: err}
	}
}

func (uc *FavoritesUsecase) toggleGuest(ctx context.Context, req domain.Requester, propertyID string) error {
	set := uc.guest.Load(ctx, req.GuestID)

	_, favorited := set[propertyID]
	if favorited {
		delete(set, propertyID)
	} else {
		set[propertyID] = struct{}{}
	}
	uc.guest.Save(ctx, req.GuestID, set)

	if favorited {
		uc.notifier.Notify(ctx, req.GuestID, "Removed from favorites", dwell.NotificationSuccess)
	} else {
		uc.notifier.Notify(ctx, req.GuestID, "Added to favorites", dwell.NotificationSuccess)
	}
	uc.publishChanged(ctx, req.GuestID, propertyID, boolPtr(!favorited), "toggle")
	return nil
}

// IsFavorite reports the unified favorited state for propertyID, sourced
// from whichever store is authoritative for the requester's session state.
// An unresolved session is favorited-nowhere: false.
func (uc *FavoritesUsecase) IsFavorite(ctx context.Context, req domain.Requester, propertyID string) (bool, error) {

	switch req.State {
	case domain.SessionAuthenticated:
		if req.Identity == nil {
			return false, domain.ErrNotAuthenticated
		}
		_, err := uc.favorites.GetByUserAndProperty(ctx, req.Identity.UserID, propertyID)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, domain.RemoteError{Op: "lookup", Err: err}

	case domain.SessionAnonymous:
		set := uc.guest.Load(ctx, req.GuestID)
		_, favorited := set[propertyID]
		return favorited, nil

	default:
		return false, nil
	}
}

// ListFavorites returns the unified favorites view for the requester. Guest
// listings resolve their property summaries through the property store.
func (uc *FavoritesUsecase) ListFavorites(ctx context.Context, req domain.Requester) ([]domain.FavoriteView, error) {

	switch req.State {
	case domain.SessionAuthenticated:
		if req.Identity == nil {
			return nil, domain.ErrNotAuthenticated
		}
		views, err := uc.favorites.ListByUser(ctx, req.Identity.UserID)
		if err != nil {
			return nil, domain.RemoteError{Op: "list", Err: err}
		}
		return views, nil

	case domain.SessionAnonymous:
		set := uc.guest.Load(ctx, req.GuestID)
		ids := sortedKeys(set)

		properties, err := uc.properties.GetMany(ctx, ids)
		if err != nil {
			return nil, domain.RemoteError{Op: "list-properties", Err: err}
		}
		byID := make(map[string]domain.Property, len(properties))
		for _, property := range properties {
			byID[property.ID] = property
		}

		views := make([]domain.FavoriteView, 0, len(ids))
		for _, id := range ids {
			view := domain.FavoriteView{
				Record: domain.FavoriteRecord{PropertyID: id},
			}
			if property, ok := byID[id]; ok {
				p := property
				view.Property = &p
			}
			views = append(views, view)
		}
		return views, nil

	default:
		return nil, nil
	}
}

// MigrateGuestFavorites drains the guest set into the authenticated user's
// remote favorites. Calling it without an authenticated session, without a
// guest id, or with an empty guest set is a no-op. The drain works on a
// snapshot taken at call start, skips properties already favorited remotely,
// attempts every add independently, and clears the guest set only when all
// adds succeeded. Partial failure keeps the guest set so a retry can be
// offered; records that did succeed stay remote (migration is not
// transactional).
func (uc *FavoritesUsecase) MigrateGuestFavorites(ctx context.Context, req domain.Requester) error {

	if req.State != domain.SessionAuthenticated || req.Identity == nil || req.GuestID == "" {
		return nil
	}
	userID := req.Identity.UserID

	name := domain.MigrateActionName(userID)
	if !uc.ledger.TryBegin(name) {
		// a migration for this user is already draining
		return nil
	}
	defer uc.ledger.End(name)

	snapshot := sortedKeys(uc.guest.Load(ctx, req.GuestID))
	if len(snapshot) == 0 {
		return nil
	}

	existing, err := uc.favorites.ListByUser(ctx, userID)
	if err != nil {
		uc.notifier.Notify(ctx, userID, "Could not sync your saved homes", dwell.NotificationError)
		return domain.RemoteError{Op: "migrate-list", Err: err}
	}
	already := make(map[string]struct{}, len(existing))
	for _, view := range existing {
		already[view.Record.PropertyID] = struct{}{}
	}

	var failed int
	var firstErr error
	for _, propertyID := range snapshot {
		if _, ok := already[propertyID]; ok {
			continue
		}
		if _, err := uc.favorites.Add(ctx, userID, propertyID); err != nil {
			slog.Warn("guest favorite migration add failed",
				"userID", userID, "propertyID", propertyID, "error", err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if failed > 0 {
		uc.notifier.Notify(ctx, userID,
			fmt.Sprintf("Could not sync %d of your saved homes", failed),
			dwell.NotificationError)
		return domain.RemoteError{
			Op:  "migrate",
			Err: fmt.Errorf("%d of %d adds failed: %w", failed, len(snapshot), firstErr),
		}
	}

	uc.guest.Clear(ctx, req.GuestID)
	uc.notifier.Notify(ctx, userID, "Your saved homes were synced to your account", dwell.NotificationSuccess)
	uc.publishChanged(ctx, userID, "", nil, "migration")
	return nil
}

// WatchSession subscribes the coordinator to session transitions. Moving
// from anonymous to authenticated with a non-empty guest set emits the
// migration-prompt notification; migration itself only runs on an explicit
// MigrateGuestFavorites call. Every transition publishes a view-switch event
// so consumers re-read the now-authoritative source. The returned disposer
// releases the subscription.
func (uc *FavoritesUsecase) WatchSession(source SessionSource, guestID string) func() {

	var mu sync.Mutex
	previous := domain.SessionUnknown

	return source.OnChange(func(state domain.SessionState, identity *domain.SessionIdentity) {
		mu.Lock()
		before := previous
		previous = state
		mu.Unlock()

		if state == before {
			return
		}
		ctx := context.Background()

		if state == domain.SessionAuthenticated && identity != nil {
			uc.publishChanged(ctx, identity.UserID, "", nil, "session-switch")

			if before != domain.SessionAuthenticated && guestID != "" {
				if pending := len(uc.guest.Load(ctx, guestID)); pending > 0 {
					uc.notifier.Notify(ctx, identity.UserID,
						fmt.Sprintf("You have %d saved homes from browsing. Sync them to your account?", pending),
						dwell.NotificationInfo)
				}
			}
			return
		}

		if state == domain.SessionAnonymous && guestID != "" {
			// remote view is no longer authoritative, guest store is re-read
			uc.publishChanged(ctx, guestID, "", nil, "session-switch")
		}
	})
}

func (uc *FavoritesUsecase) publishChanged(ctx context.Context, subject, propertyID string, favorited *bool, reason string) {
	body, err := json.Marshal(dwell.FavoritesChanged{
		PropertyID: propertyID,
		Favorited:  favorited,
		Reason:     reason,
	})
	if err != nil {
		return
	}

	event := dwell.Event{
		Type:      dwell.EventFavoritesChanged,
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now(),
	}

	if err := uc.signal.Publish(ctx, dwell.FavoritesChannel(subject), event); err != nil {
		slog.Warn("favorites event publish failed", "subject", subject, "error", err)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func boolPtr(b bool) *bool { return &b }
