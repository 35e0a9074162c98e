package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stelae/stelae/internal/domain"
	"github.com/stelae/stelae/internal/infra/database/models"
)

type ResourceRepository struct {
	db *gorm.DB
}

func NewResourceRepository(db *gorm.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	var row models.ResourceInstance
	err := conn(ctx, r.db).
		Where("resource_instance_id = ?", id).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "resource"}
	}
	if err != nil {
		return nil, err
	}
	return &domain.Resource{
		ResourceInstanceID: row.ResourceInstanceID,
		GraphID:            row.GraphID,
		LegacyID:           row.LegacyID,
	}, nil
}

func (r *ResourceRepository) Save(ctx context.Context, resource *domain.Resource) error {
	row := models.ResourceInstance{
		ResourceInstanceID: resource.ResourceInstanceID,
		GraphID:            resource.GraphID,
		LegacyID:           resource.LegacyID,
	}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource_instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"graph_id", "legacy_id"}),
	}).Create(&row).Error
}

// Delete removes the resource row; tiles go with it through the foreign key
// cascade.
func (r *ResourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).
		Delete(&models.ResourceInstance{}, "resource_instance_id = ?", id).Error
}

func (r *ResourceRepository) BulkCreate(ctx context.Context, resources []*domain.Resource) error {
	if len(resources) == 0 {
		return nil
	}
	rows := make([]models.ResourceInstance, 0, len(resources))
	for _, resource := range resources {
		rows = append(rows, models.ResourceInstance{
			ResourceInstanceID: resource.ResourceInstanceID,
			GraphID:            resource.GraphID,
			LegacyID:           resource.LegacyID,
		})
	}
	return conn(ctx, r.db).CreateInBatches(&rows, 500).Error
}
