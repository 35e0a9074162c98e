package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stelae/stelae/internal/domain"
	"github.com/stelae/stelae/internal/infra/database/models"
)

type TileRepository struct {
	db *gorm.DB
}

func NewTileRepository(db *gorm.DB) *TileRepository {
	return &TileRepository{db: db}
}

func (r *TileRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Tile, error) {
	var row models.Tile
	err := conn(ctx, r.db).
		Where("tile_id = ?", id).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "tile"}
	}
	if err != nil {
		return nil, err
	}
	return unmarshalTile(row)
}

func (r *TileRepository) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*domain.Tile, error) {
	var rows []models.Tile
	err := conn(ctx, r.db).
		Where("resource_instance_id = ?", resourceID).
		Order("sort_order").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return unmarshalTiles(rows)
}

func (r *TileRepository) ListByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) ([]*domain.Tile, error) {
	var rows []models.Tile
	err := conn(ctx, r.db).
		Where("node_group_id = ?", nodeGroupID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return unmarshalTiles(rows)
}

func (r *TileRepository) ListByResourceAndNodeGroup(ctx context.Context, resourceID, nodeGroupID uuid.UUID) ([]*domain.Tile, error) {
	var rows []models.Tile
	err := conn(ctx, r.db).
		Where("resource_instance_id = ? AND node_group_id = ?", resourceID, nodeGroupID).
		Order("sort_order").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return unmarshalTiles(rows)
}

func (r *TileRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Tile, error) {
	var rows []models.Tile
	err := conn(ctx, r.db).
		Where("parent_tile_id = ?", parentID).
		Order("sort_order").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return unmarshalTiles(rows)
}

func (r *TileRepository) Save(ctx context.Context, tile *domain.Tile) error {
	row, err := marshalTile(tile)
	if err != nil {
		return err
	}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tile_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"parent_tile_id", "node_group_id", "sort_order", "data", "provisional_edits",
		}),
	}).Create(&row).Error
}

func (r *TileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).
		Delete(&models.Tile{}, "tile_id = ?", id).Error
}

func (r *TileRepository) BulkCreate(ctx context.Context, tiles []*domain.Tile) error {
	if len(tiles) == 0 {
		return nil
	}
	rows := make([]models.Tile, 0, len(tiles))
	for _, tile := range tiles {
		row, err := marshalTile(tile)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return conn(ctx, r.db).CreateInBatches(&rows, 500).Error
}

func marshalTile(tile *domain.Tile) (models.Tile, error) {
	data, err := json.Marshal(tile.Data)
	if err != nil {
		return models.Tile{}, err
	}
	edits, err := json.Marshal(tile.ProvisionalEdits)
	if err != nil {
		return models.Tile{}, err
	}
	return models.Tile{
		TileID:             tile.TileID,
		ResourceInstanceID: tile.ResourceInstanceID,
		ParentTileID:       tile.ParentTileID,
		NodeGroupID:        tile.NodeGroupID,
		SortOrder:          tile.SortOrder,
		Data:               string(data),
		ProvisionalEdits:   string(edits),
	}, nil
}

func unmarshalTile(row models.Tile) (*domain.Tile, error) {
	tile := &domain.Tile{
		TileID:             row.TileID,
		ResourceInstanceID: row.ResourceInstanceID,
		ParentTileID:       row.ParentTileID,
		NodeGroupID:        row.NodeGroupID,
		SortOrder:          row.SortOrder,
		Data:               map[string]any{},
		ProvisionalEdits:   map[string]domain.ProvisionalEdit{},
	}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &tile.Data); err != nil {
			return nil, err
		}
	}
	if row.ProvisionalEdits != "" {
		if err := json.Unmarshal([]byte(row.ProvisionalEdits), &tile.ProvisionalEdits); err != nil {
			return nil, err
		}
	}
	return tile, nil
}

func unmarshalTiles(rows []models.Tile) ([]*domain.Tile, error) {
	tiles := make([]*domain.Tile, 0, len(rows))
	for _, row := range rows {
		tile, err := unmarshalTile(row)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, tile)
	}
	return tiles, nil
}
