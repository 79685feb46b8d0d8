package repository

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dwellspace/dwell/internal/domain"
)

const guestKeyPrefix = "guest:favorites:"

// GuestFavoriteStore persists the anonymous favorite set under the client's
// durable guest id. Reads fail open and writes fail silent: a broken store
// degrades to an empty set, it never breaks browsing.
type GuestFavoriteStore struct {
	rdb *redis.Client
}

func NewGuestFavoriteStore(rdb *redis.Client) *GuestFavoriteStore {
	return &GuestFavoriteStore{rdb: rdb}
}

func guestKey(guestID string) string {
	return guestKeyPrefix + guestID
}

func (s *GuestFavoriteStore) Load(ctx context.Context, guestID string) map[string]struct{} {
	set := make(map[string]struct{})
	if guestID == "" {
		return set
	}

	members, err := s.rdb.SMembers(ctx, guestKey(guestID)).Result()
	if err != nil {
		serr := domain.StorageError{Op: "load", Err: err}
		slog.Warn("guest favorites load failed, using empty set", "guestID", guestID, "error", serr)
		return set
	}

	for _, member := range members {
		set[member] = struct{}{}
	}
	return set
}

func (s *GuestFavoriteStore) Save(ctx context.Context, guestID string, set map[string]struct{}) {
	if guestID == "" {
		return
	}

	members := make([]interface{}, 0, len(set))
	for propertyID := range set {
		members = append(members, propertyID)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, guestKey(guestID))
	if len(members) > 0 {
		pipe.SAdd(ctx, guestKey(guestID), members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		serr := domain.StorageError{Op: "save", Err: err}
		slog.Warn("guest favorites save failed", "guestID", guestID, "error", serr)
	}
}

func (s *GuestFavoriteStore) Clear(ctx context.Context, guestID string) {
	if guestID == "" {
		return
	}
	if err := s.rdb.Del(ctx, guestKey(guestID)).Err(); err != nil {
		serr := domain.StorageError{Op: "clear", Err: err}
		slog.Warn("guest favorites clear failed", "guestID", guestID, "error", serr)
	}
}
