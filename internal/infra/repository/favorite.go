package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwellspace/dwell/internal/domain"
	"github.com/dwellspace/dwell/internal/infra/database/models"
)

const listCacheTTL = 30 // seconds

type FavoriteRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewFavoriteRepository(db *gorm.DB, mc *memcache.Client) *FavoriteRepository {
	return &FavoriteRepository{db: db, mc: mc}
}

func listCacheKey(userID string) string {
	return fmt.Sprintf("favorites:list:%x", xxh3.HashString(userID))
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) ([]domain.FavoriteView, error) {

	if r.mc != nil {
		if item, err := r.mc.Get(listCacheKey(userID)); err == nil {
			var cached []domain.FavoriteView
			if err := json.Unmarshal(item.Value, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var rows []models.Favorite
	err := r.db.WithContext(ctx).
		Preload("Property").
		Where("user_id = ?", userID).
		Order("c_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]domain.FavoriteView, 0, len(rows))
	for _, row := range rows {
		view := domain.FavoriteView{
			Record: domain.FavoriteRecord{
				ID:         row.ID,
				UserID:     row.UserID,
				PropertyID: row.PropertyID,
				CreatedAt:  row.CDate,
			},
		}
		if row.Property.ID != "" {
			property := propertyToDomain(row.Property)
			view.Property = &property
		}
		views = append(views, view)
	}

	if r.mc != nil {
		if encoded, err := json.Marshal(views); err == nil {
			// best effort, listing still works when memcached is down
			r.mc.Set(&memcache.Item{
				Key:        listCacheKey(userID),
				Value:      encoded,
				Expiration: listCacheTTL,
			})
		}
	}

	return views, nil
}

func (r *FavoriteRepository) GetByUserAndProperty(ctx context.Context, userID, propertyID string) (domain.FavoriteRecord, error) {
	var row models.Favorite
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.FavoriteRecord{}, domain.NotFoundError{Resource: "favorite"}
		}
		return domain.FavoriteRecord{}, err
	}
	return domain.FavoriteRecord{
		ID:         row.ID,
		UserID:     row.UserID,
		PropertyID: row.PropertyID,
		CreatedAt:  row.CDate,
	}, nil
}

func (r *FavoriteRepository) Add(ctx context.Context, userID, propertyID string) (domain.FavoriteRecord, error) {

	row := models.Favorite{
		ID:         uuid.New().String(),
		UserID:     userID,
		PropertyID: propertyID,
		CDate:      time.Now(),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "property_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return domain.FavoriteRecord{}, err
	}

	r.invalidate(userID)

	// On conflict the insert is a no-op and the generated id is unused;
	// read back the row that actually owns the pair.
	return r.GetByUserAndProperty(ctx, userID, propertyID)
}

func (r *FavoriteRepository) Remove(ctx context.Context, favoriteID string) error {

	var row models.Favorite
	err := r.db.WithContext(ctx).
		Where("id = ?", favoriteID).
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// already gone, the caller only needed the record removed
			return nil
		}
		return err
	}

	err = r.db.WithContext(ctx).Delete(&models.Favorite{}, "id = ?", favoriteID).Error
	if err != nil {
		return err
	}

	r.invalidate(row.UserID)
	return nil
}

func (r *FavoriteRepository) invalidate(userID string) {
	if r.mc == nil {
		return
	}
	r.mc.Delete(listCacheKey(userID))
}

func propertyToDomain(p models.Property) domain.Property {
	return domain.Property{
		ID:       p.ID,
		Title:    p.Title,
		City:     p.City,
		Price:    p.Price,
		Currency: p.Currency,
		ImageURL: p.ImageURL,
		CDate:    p.CDate,
	}
}
