package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stelae/stelae/internal/domain"
	"github.com/stelae/stelae/internal/infra/database/models"
)

type RelationRepository struct {
	db *gorm.DB
}

func NewRelationRepository(db *gorm.DB) *RelationRepository {
	return &RelationRepository{db: db}
}

func (r *RelationRepository) Save(ctx context.Context, relation *domain.ResourceRelation) error {
	row := models.ResourceXResource{
		ResourceXID:            relation.RelationID,
		ResourceInstanceIDFrom: relation.FromResourceID,
		ResourceInstanceIDTo:   relation.ToResourceID,
		RelationshipType:       relation.RelationshipType,
		TileID:                 relation.TileID,
		NodeID:                 relation.NodeID,
	}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "resource_x_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"resource_instance_id_from", "resource_instance_id_to", "relationship_type", "tile_id", "node_id",
		}),
	}).Create(&row).Error
}

func (r *RelationRepository) DeleteByTileNode(ctx context.Context, tileID, nodeID uuid.UUID) error {
	return conn(ctx, r.db).
		Delete(&models.ResourceXResource{}, "tile_id = ? AND node_id = ?", tileID, nodeID).Error
}

func (r *RelationRepository) DeleteByResource(ctx context.Context, resourceID uuid.UUID) error {
	return conn(ctx, r.db).
		Delete(&models.ResourceXResource{},
			"resource_instance_id_from = ? OR resource_instance_id_to = ?", resourceID, resourceID).Error
}
