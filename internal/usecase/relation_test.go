package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

func TestTileSaveResourceInstanceSyncsRelations(t *testing.T) {
	f := newFixture()
	graphID := f.addGraph("Monument")
	nodeID, nodeGroupID := f.addNode(graphID, "Related Monument", "resource-instance", false)
	resourceID := f.addResource(graphID)
	targetID := f.addResource(graphID)

	tile := &domain.Tile{
		ResourceInstanceID: resourceID,
		NodeGroupID:        nodeGroupID,
		Data:               map[string]any{nodeID.String(): []any{targetID.String()}},
	}
	reviewer := &domain.ActorContext{UserID: "rev", IsReviewer: true}

	if err := f.tileUC.Save(context.Background(), tile, reviewer, TileSaveOptions{Log: true}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if len(f.relations.rows) != 1 {
		t.Fatalf("expected one relation row, got %d", len(f.relations.rows))
	}
	var relation *domain.ResourceRelation
	for _, rel := range f.relations.rows {
		relation = rel
	}
	if relation.FromResourceID != resourceID || relation.ToResourceID != targetID {
		t.Fatalf("unexpected relation endpoints: %+v", relation)
	}
	if relation.TileID != tile.TileID || relation.NodeID != nodeID {
		t.Fatalf("relation must record its source node value: %+v", relation)
	}

	hits, total, err := f.search.Search(context.Background(), stelae.IndexResourceRelations, SearchQuery{
		Should: map[string][]string{
			"resourceinstanceidfrom": {resourceID.String()},
			"resourceinstanceidto":   {resourceID.String()},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("expected one indexed relation, got %d", total)
	}
	if hits[0].Source["resourceinstanceidto"] != targetID.String() {
		t.Fatalf("unexpected relation document: %v", hits[0].Source)
	}

	result, err := f.resUC.RelatedResources(context.Background(), resourceID, 0, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 || len(result.ResourceRelationships) != 1 {
		t.Fatalf("related resources must observe the synced relation: %+v", result)
	}
}

func TestTileResaveReplacesRelations(t *testing.T) {
	f := newFixture()
	graphID := f.addGraph("Monument")
	nodeID, nodeGroupID := f.addNode(graphID, "Related Monument", "resource-instance", false)
	resourceID := f.addResource(graphID)
	firstTarget := f.addResource(graphID)
	secondTarget := f.addResource(graphID)

	tile := &domain.Tile{
		TileID:             uuid.New(),
		ResourceInstanceID: resourceID,
		NodeGroupID:        nodeGroupID,
		Data:               map[string]any{nodeID.String(): []any{firstTarget.String()}},
	}
	reviewer := &domain.ActorContext{UserID: "rev", IsReviewer: true}

	if err := f.tileUC.Save(context.Background(), tile, reviewer, TileSaveOptions{Log: true}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	update := &domain.Tile{
		TileID:             tile.TileID,
		ResourceInstanceID: resourceID,
		NodeGroupID:        nodeGroupID,
		Data:               map[string]any{nodeID.String(): []any{secondTarget.String()}},
	}
	if err := f.tileUC.Save(context.Background(), update, reviewer, TileSaveOptions{Log: true}); err != nil {
		t.Fatalf("resave failed: %v", err)
	}

	if len(f.relations.rows) != 1 {
		t.Fatalf("expected the stale relation to be replaced, got %d rows", len(f.relations.rows))
	}
	for _, rel := range f.relations.rows {
		if rel.ToResourceID != secondTarget {
			t.Fatalf("expected relation to point at the new target: %+v", rel)
		}
	}

	hits, _, err := f.search.Search(context.Background(), stelae.IndexResourceRelations, SearchQuery{
		Terms: map[string][]string{"tileid": {tile.TileID.String()}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Source["resourceinstanceidto"] != secondTarget.String() {
		t.Fatalf("stale relation document must be replaced: %v", hits)
	}
}

func TestNonReviewerSaveCreatesNoRelations(t *testing.T) {
	f := newFixture()
	graphID := f.addGraph("Monument")
	nodeID, nodeGroupID := f.addNode(graphID, "Related Monument", "resource-instance", false)
	resourceID := f.addResource(graphID)
	targetID := f.addResource(graphID)

	tile := &domain.Tile{
		ResourceInstanceID: resourceID,
		NodeGroupID:        nodeGroupID,
		Data:               map[string]any{nodeID.String(): []any{targetID.String()}},
	}
	editor := &domain.ActorContext{UserID: "u1"}

	if err := f.tileUC.Save(context.Background(), tile, editor, TileSaveOptions{Log: true}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if len(f.relations.rows) != 0 {
		t.Fatalf("a staged edit must not create relation rows, got %d", len(f.relations.rows))
	}
}
