package domain

import "time"

// FavoriteRecord is the remote-persisted favorite relationship. ID is the
// favorite-row identity, distinct from the property identity, and stable
// once created. The pair (UserID, PropertyID) is unique.
type FavoriteRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	PropertyID string    `json:"propertyId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Property is the domain-level property summary used for display joins.
type Property struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	City     string    `json:"city"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
	ImageURL string    `json:"imageUrl"`
	CDate    time.Time `json:"cdate"`
}

// FavoriteView is a favorite joined with its property summary. Property is
// nil when the property row is gone.
type FavoriteView struct {
	Record   FavoriteRecord `json:"record"`
	Property *Property      `json:"property,omitempty"`
}
