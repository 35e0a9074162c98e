package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// RelationSyncer maintains the resource-to-resource link rows and their
// index documents derived from resource-instance node values. Every sync
// replaces the links owned by one (tile, node) pair; links from other nodes
// are untouched.
type RelationSyncer struct {
	relations RelationRepository
	search    SearchEngine
}

func NewRelationSyncer(relations RelationRepository, search SearchEngine) *RelationSyncer {
	return &RelationSyncer{relations: relations, search: search}
}

func (s *RelationSyncer) SyncRelations(ctx context.Context, tile *domain.Tile, node domain.Node, targetIDs []string) error {
	ctx, span := tracer.Start(ctx, "Relation.Usecase.Sync")
	defer span.End()

	s.deleteFromIndex(ctx, tile.TileID, node.NodeID)
	if err := s.relations.DeleteByTileNode(ctx, tile.TileID, node.NodeID); err != nil {
		return errors.Wrap(err, "clearing stale relations")
	}

	relationshipType, _ := node.Config["ontologyProperty"].(string)
	for _, target := range targetIDs {
		targetID, err := uuid.Parse(target)
		if err != nil {
			return errors.Wrapf(err, "invalid related resource id %q", target)
		}
		relation := &domain.ResourceRelation{
			RelationID:       uuid.New(),
			FromResourceID:   tile.ResourceInstanceID,
			ToResourceID:     targetID,
			RelationshipType: relationshipType,
			TileID:           tile.TileID,
			NodeID:           node.NodeID,
		}
		if err := s.relations.Save(ctx, relation); err != nil {
			return errors.Wrap(err, "saving relation row")
		}
		doc := stelae.RelationDocument{
			ResourceXID:            relation.RelationID.String(),
			ResourceInstanceIDFrom: relation.FromResourceID.String(),
			ResourceInstanceIDTo:   relation.ToResourceID.String(),
			RelationshipType:       relation.RelationshipType,
			TileID:                 relation.TileID.String(),
			NodeID:                 relation.NodeID.String(),
		}
		if err := s.search.IndexData(ctx, stelae.IndexResourceRelations, doc.ResourceXID, doc); err != nil {
			slog.WarnContext(ctx, "relation index failed",
				slog.String("resourcexid", doc.ResourceXID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// deleteFromIndex drops the relation documents previously derived from this
// node value. Index cleanup is best-effort, like every other index write.
func (s *RelationSyncer) deleteFromIndex(ctx context.Context, tileID, nodeID uuid.UUID) {
	hits, _, err := s.search.Search(ctx, stelae.IndexResourceRelations, SearchQuery{
		Terms: map[string][]string{
			"tileid": {tileID.String()},
			"nodeid": {nodeID.String()},
		},
	})
	if err != nil {
		slog.WarnContext(ctx, "relation document lookup failed",
			slog.String("tileid", tileID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, hit := range hits {
		if err := s.search.Delete(ctx, stelae.IndexResourceRelations, hit.ID); err != nil {
			slog.WarnContext(ctx, "relation document delete failed",
				slog.String("id", hit.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
