package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/stelae/stelae/internal/domain"
	"github.com/stelae/stelae/internal/infra/database/models"
)

type ValueRepository struct {
	db *gorm.DB
}

func NewValueRepository(db *gorm.DB) *ValueRepository {
	return &ValueRepository{db: db}
}

func (r *ValueRepository) ValueLabel(ctx context.Context, valueID string) (string, error) {
	var row models.Value
	err := conn(ctx, r.db).
		Where("value_id = ?", valueID).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", domain.NotFoundError{Resource: "value"}
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}
