package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// BulkLoader ingests large batches of resources with their tiles in bulk
// inserts instead of the per-row save pipeline. Validation and provisional
// staging are skipped: bulk input is trusted and always authoritative.
type BulkLoader struct {
	cfg       Config
	resources ResourceRepository
	tiles     TileRepository
	editlog   EditLogRepository
	search    SearchEngine
	tx        TransactionManager
	projector *ResourceUsecase
}

func NewBulkLoader(
	cfg Config,
	resources ResourceRepository,
	tiles TileRepository,
	editlog EditLogRepository,
	search SearchEngine,
	tx TransactionManager,
	projector *ResourceUsecase,
) *BulkLoader {
	return &BulkLoader{
		cfg:       cfg,
		resources: resources,
		tiles:     tiles,
		editlog:   editlog,
		search:    search,
		tx:        tx,
		projector: projector,
	}
}

// Load persists every resource and tile in two bulk inserts, appends the
// audit entries, then bulk-indexes the whole batch. Tiles attached to each
// resource may be nested; trees are flattened and parent links rewritten
// before insert. Rows commit in one transaction; indexing happens after and
// is best-effort.
func (l *BulkLoader) Load(ctx context.Context, resources []*domain.Resource, actor *domain.ActorContext) error {
	ctx, span := tracer.Start(ctx, "Bulk.Usecase.Load")
	defer span.End()

	var allTiles []*domain.Tile
	for _, resource := range resources {
		if resource.ResourceInstanceID == uuid.Nil {
			resource.ResourceInstanceID = uuid.New()
		}
		flattened := resource.FlattenedTiles()
		for _, tile := range flattened {
			if tile.TileID == uuid.Nil {
				tile.TileID = uuid.New()
			}
			tile.ResourceInstanceID = resource.ResourceInstanceID
		}
		for _, tile := range flattened {
			for _, child := range tile.Tiles {
				parentID := tile.TileID
				child.ParentTileID = &parentID
			}
		}
		resource.Tiles = flattened
		allTiles = append(allTiles, flattened...)
	}

	err := l.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := l.resources.BulkCreate(txCtx, resources); err != nil {
			return errors.Wrap(err, "bulk creating resources")
		}
		if err := l.tiles.BulkCreate(txCtx, allTiles); err != nil {
			return errors.Wrap(err, "bulk creating tiles")
		}
		return l.editlog.BulkAppend(txCtx, l.auditEntries(resources, allTiles, actor))
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	items := make([]BulkItem, 0, len(resources))
	for _, resource := range resources {
		doc, terms, err := l.projector.GetDocumentsToIndex(ctx, resource, false, l.cfg.StreamlineImport)
		if err != nil {
			return errors.Wrap(err, "building index documents")
		}
		items = append(items, BulkItem{Index: stelae.IndexResources, DocumentID: doc.ResourceInstanceID, Data: doc})
		for _, term := range terms {
			items = append(items, BulkItem{Index: stelae.IndexTerms, DocumentID: term.DocumentID, Data: term})
		}
	}
	if err := l.search.BulkIndex(ctx, items); err != nil {
		slog.WarnContext(ctx, "bulk index failed after load",
			slog.Int("resources", len(resources)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// auditEntries builds the batch's audit trail: one create entry per
// resource, one summary entry for the whole batch, and one entry per tile
// unless streamlined import is enabled.
func (l *BulkLoader) auditEntries(resources []*domain.Resource, tiles []*domain.Tile, actor *domain.ActorContext) []*domain.EditLogEntry {
	now := time.Now().UTC()
	stamp := func(entry *domain.EditLogEntry) *domain.EditLogEntry {
		entry.Timestamp = now
		if actor != nil {
			entry.UserID = actor.UserID
			entry.Username = actor.Username
			entry.UserEmail = actor.Email
			entry.UserFirstName = actor.FirstName
			entry.UserLastName = actor.LastName
		}
		return entry
	}

	var entries []*domain.EditLogEntry
	for _, resource := range resources {
		entries = append(entries, stamp(&domain.EditLogEntry{
			ResourceClassID:    resource.GraphID,
			ResourceInstanceID: resource.ResourceInstanceID,
			EditType:           domain.EditTypeCreate,
		}))
	}
	entries = append(entries, stamp(&domain.EditLogEntry{
		EditType: domain.EditTypeBulkCreate,
		Note:     fmt.Sprintf("bulk created: %d tiles for %d resources.", len(tiles), len(resources)),
	}))
	if l.cfg.StreamlineImport {
		return entries
	}
	for _, tile := range tiles {
		nodeGroupID := tile.NodeGroupID
		tileID := tile.TileID
		entries = append(entries, stamp(&domain.EditLogEntry{
			ResourceInstanceID: tile.ResourceInstanceID,
			NodeGroupID:        &nodeGroupID,
			TileInstanceID:     &tileID,
			EditType:           domain.EditTypeTileCreate,
			NewValue:           tile.Data,
		}))
	}
	return entries
}
