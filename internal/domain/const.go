package domain

const (
	RequesterStateCtxKey = "dw-requesterState"
	RequesterIdCtxKey    = "dw-requesterId"
	RequesterEmailCtxKey = "dw-requesterEmail"
	GuestIdCtxKey        = "dw-guestId"
)

const (
	GuestIdHeader = "X-Dwell-Guest-ID"
)

const (
	// ActionToggleFavorite and ActionMigrateFavorites are the processing
	// ledger name prefixes. Full names carry the subject (and property id
	// for toggles) so different requesters never block each other.
	ActionToggleFavorite   = "toggle-favorite"
	ActionMigrateFavorites = "migrate-favorites"
)

// ToggleActionName builds the ledger entry name for a toggle.
func ToggleActionName(subject, propertyID string) string {
	return ActionToggleFavorite + ":" + subject + ":" + propertyID
}

// MigrateActionName builds the ledger entry name for a migration.
func MigrateActionName(userID string) string {
	return ActionMigrateFavorites + ":" + userID
}
