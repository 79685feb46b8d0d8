package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dwellspace/dwell/internal/domain"
	"github.com/dwellspace/dwell/internal/infra/database/models"
)

type PropertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) Get(ctx context.Context, id string) (domain.Property, error) {
	var row models.Property
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Property{}, domain.NotFoundError{Resource: "property"}
		}
		return domain.Property{}, err
	}
	return propertyToDomain(row), nil
}

func (r *PropertyRepository) GetMany(ctx context.Context, ids []string) ([]domain.Property, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Property
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	properties := make([]domain.Property, 0, len(rows))
	for _, row := range rows {
		properties = append(properties, propertyToDomain(row))
	}
	return properties, nil
}
