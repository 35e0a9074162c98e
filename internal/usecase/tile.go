package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/datatype"
	"github.com/stelae/stelae/internal/domain"
)

var tracer = otel.Tracer("usecase")

// TileSaveOptions control the side effects of a tile save.
type TileSaveOptions struct {
	// Index re-projects the owning resource into the search engine after
	// the row is written.
	Index bool
	// Log writes the audit entry and runs datatype post-save hooks.
	Log bool
	// ProvisionalEditLogDetails overrides provisional attribution on the
	// audit entry.
	ProvisionalEditLogDetails *domain.ProvisionalEditLogDetails
}

// TileUsecase runs the tile save/delete pipeline: constraint checks, the
// provisional-edit state machine, the audit trail, and index triggers.
type TileUsecase struct {
	tiles       TileRepository
	resources   ResourceRepository
	editlog     EditLogRepository
	schema      SchemaRepository
	registry    *datatype.Registry
	search      SearchEngine
	signal      Signal
	descriptors *DescriptorRenderer
	indexer     Indexer
}

func NewTileUsecase(
	tiles TileRepository,
	resources ResourceRepository,
	editlog EditLogRepository,
	schema SchemaRepository,
	registry *datatype.Registry,
	search SearchEngine,
	signal Signal,
	descriptors *DescriptorRenderer,
) *TileUsecase {
	return &TileUsecase{
		tiles:       tiles,
		resources:   resources,
		editlog:     editlog,
		schema:      schema,
		registry:    registry,
		search:      search,
		signal:      signal,
		descriptors: descriptors,
	}
}

// SetIndexer wires the resource indexer after construction; the resource
// usecase depends on this one, so the back-reference is set late.
func (u *TileUsecase) SetIndexer(indexer Indexer) {
	u.indexer = indexer
}

// Save persists one tile and, recursively, its children. Validation runs
// before the row is written; a failure aborts the whole save for this tile.
// Non-reviewer edits never mutate authoritative data: they are staged under
// the actor's user id in the tile's provisional edits.
func (u *TileUsecase) Save(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext, opts TileSaveOptions) error {
	ctx, span := tracer.Start(ctx, "Tile.Usecase.Save")
	defer span.End()

	if tile.TileID == uuid.Nil {
		tile.TileID = uuid.New()
	}
	if tile.Data == nil {
		tile.Data = map[string]any{}
	}

	if err := u.checkMissingNodes(ctx, tile, actor); err != nil {
		span.RecordError(err)
		return err
	}
	if err := u.checkConstraints(ctx, tile); err != nil {
		span.RecordError(err)
		return err
	}

	existing, err := u.tiles.Get(ctx, tile.TileID)
	creating := errors.Is(err, domain.ErrNotFound)
	if err != nil && !creating {
		return errors.Wrap(err, "loading existing tile")
	}

	editType := domain.EditTypeTileEdit
	if creating {
		editType = domain.EditTypeTileCreate
	}

	// Edits staged by other users ride along on every update, reviewer saves
	// included; only an explicit review action resolves them.
	if !creating && len(tile.ProvisionalEdits) == 0 {
		tile.ProvisionalEdits = cloneEdits(existing.ProvisionalEdits)
	}

	var newProvisionalValue, oldProvisionalValue map[string]any
	details := opts.ProvisionalEditLogDetails

	if !actor.BypassesProvisional() {
		collects, err := u.collectsData(ctx, tile.NodeGroupID)
		if err != nil {
			return err
		}
		if !creating {
			if collects && !domain.DataIsBlank(tile.Data) {
				proposed := tile.Data
				tile.StageProvisionalEdit(actor.UserID, proposed, domain.ProvisionalActionUpdate)
				newProvisionalValue = proposed
				if prior := existing.ProvisionalEditFor(actor.UserID); prior != nil {
					oldProvisionalValue = prior.Value
				}
			}
			// The authoritative value is never mutated by a non-reviewer.
			tile.Data = existing.Data
			if details == nil {
				details = &domain.ProvisionalEditLogDetails{
					User:              actor,
					ProvisionalEditor: actor,
					Action:            "add edit",
				}
			}
		} else if !tile.IsProvisional() {
			if collects && !domain.DataIsBlank(tile.Data) {
				tile.StageProvisionalEdit(actor.UserID, tile.Data, domain.ProvisionalActionCreate)
				newProvisionalValue = tile.Data
			}
			tile.Data = map[string]any{}
			if details == nil {
				details = &domain.ProvisionalEditLogDetails{
					User:              actor,
					ProvisionalEditor: actor,
					Action:            "create tile",
				}
			}
		}
	}

	if actor != nil && !actor.IsSystem {
		if err := u.validateTile(ctx, tile); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if err := u.tiles.Save(ctx, tile); err != nil {
		return errors.Wrap(err, "saving tile")
	}

	if opts.Log {
		if err := u.postSaveActions(ctx, tile, actor); err != nil {
			return err
		}
		oldValue := map[string]any{}
		if existing != nil {
			oldValue = existing.Data
		}
		entry := u.newEditEntry(ctx, tile, actor, editType)
		entry.OldValue = oldValue
		entry.NewValue = tile.Data
		entry.NewProvisionalValue = newProvisionalValue
		entry.OldProvisionalValue = oldProvisionalValue
		applyProvisionalDetails(entry, details)
		if err := u.editlog.Append(ctx, entry); err != nil {
			return errors.Wrap(err, "writing edit log")
		}
		u.publish(ctx, tile, actor, editType)
	}

	if opts.Index {
		u.reindexResource(ctx, tile.ResourceInstanceID)
	}

	for _, child := range tile.Tiles {
		child.ResourceInstanceID = tile.ResourceInstanceID
		parentID := tile.TileID
		child.ParentTileID = &parentID
		if err := u.Save(ctx, child, actor, opts); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a tile. Reviewers and the owners of unapproved provisional
// tiles delete the row physically; anyone else only stages a provisional
// "delete" edit and the authoritative row survives pending review.
func (u *TileUsecase) Delete(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext) error {
	ctx, span := tracer.Start(ctx, "Tile.Usecase.Delete")
	defer span.End()

	for _, child := range tile.Tiles {
		if err := u.Delete(ctx, child, actor); err != nil {
			return err
		}
	}

	if actor.BypassesProvisional() || tile.UserOwnsProvisional(actor.ID()) {
		u.deleteTermPostings(ctx, tile.TileID)
		entry := u.newEditEntry(ctx, tile, actor, domain.EditTypeTileDelete)
		entry.OldValue = tile.Data
		if err := u.editlog.Append(ctx, entry); err != nil {
			return errors.Wrap(err, "writing edit log")
		}
		if err := u.tiles.Delete(ctx, tile.TileID); err != nil {
			return errors.Wrap(err, "deleting tile")
		}
		u.reindexResource(ctx, tile.ResourceInstanceID)
		u.publish(ctx, tile, actor, domain.EditTypeTileDelete)
		return nil
	}

	tile.StageProvisionalEdit(actor.ID(), map[string]any{}, domain.ProvisionalActionDelete)
	return u.tiles.Save(ctx, tile)
}

// LoadTree fetches a tile and all of its descendants from storage.
func (u *TileUsecase) LoadTree(ctx context.Context, id uuid.UUID) (*domain.Tile, error) {
	tile, err := u.tiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.loadChildren(ctx, tile); err != nil {
		return nil, err
	}
	return tile, nil
}

func (u *TileUsecase) loadChildren(ctx context.Context, tile *domain.Tile) error {
	children, err := u.tiles.ListChildren(ctx, tile.TileID)
	if err != nil {
		return err
	}
	tile.Tiles = children
	for _, child := range children {
		if err := u.loadChildren(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// checkMissingNodes cleans every node value and collects the labels of
// required nodes left empty. Label resolution prefers the card widget label
// over the raw node name.
func (u *TileUsecase) checkMissingNodes(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext) error {
	var missing []string
	for nodeID := range tile.Data {
		id, err := uuid.Parse(nodeID)
		if err != nil {
			return domain.TileValidationError{Message: "tile data is keyed by an invalid node id: " + nodeID}
		}
		node, err := u.schema.Node(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "resolving node %s", nodeID)
		}
		dt, err := u.registry.Instance(node.Datatype)
		if err != nil {
			return err
		}
		if err := dt.Clean(tile, nodeID); err != nil {
			return err
		}
		if actor == nil || actor.IsSystem {
			continue
		}
		if tile.Data[nodeID] == nil && node.IsRequired {
			label := node.Name
			if card, err := u.schema.CardByNodeGroup(ctx, tile.NodeGroupID); err == nil {
				if widgetLabel, err := u.schema.WidgetLabel(ctx, card.CardID, node.NodeID); err == nil && widgetLabel != "" {
					label = widgetLabel
				}
			}
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.TileValidationError{
			Message: "this card requires values for the following: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// checkConstraints enforces the uniqueness constraints declared on the
// tile's card against every pre-existing tile in the constraint's scope.
func (u *TileUsecase) checkConstraints(ctx context.Context, tile *domain.Tile) error {
	card, err := u.schema.CardByNodeGroup(ctx, tile.NodeGroupID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "resolving card")
	}
	constraints, err := u.schema.ConstraintsByCard(ctx, card.CardID)
	if err != nil {
		return errors.Wrap(err, "listing constraints")
	}
	for _, constraint := range constraints {
		if len(constraint.Nodes) == 0 {
			continue
		}
		var others []*domain.Tile
		if constraint.UniqueToAllInstances {
			others, err = u.tiles.ListByNodeGroup(ctx, tile.NodeGroupID)
		} else {
			others, err = u.tiles.ListByResourceAndNodeGroup(ctx, tile.ResourceInstanceID, tile.NodeGroupID)
		}
		if err != nil {
			return errors.Wrap(err, "listing tiles in constraint scope")
		}
		for _, other := range others {
			if other.TileID == tile.TileID {
				continue
			}
			match := true
			var duplicates []string
			for _, nodeUUID := range constraint.Nodes {
				node, err := u.schema.Node(ctx, nodeUUID)
				if err != nil {
					return errors.Wrapf(err, "resolving constraint node %s", nodeUUID)
				}
				dt, err := u.registry.Instance(node.Datatype)
				if err != nil {
					return err
				}
				nodeID := nodeUUID.String()
				if dt.ValuesMatch(other.Data[nodeID], tile.Data[nodeID]) {
					duplicates = append(duplicates, dt.DisplayValue(ctx, other, *node))
				} else {
					match = false
					break
				}
			}
			if match {
				return domain.TileValidationError{
					Message: "this tile violates a unique constraint; the following value is already saved: " +
						strings.Join(duplicates, ", "),
				}
			}
		}
	}
	return nil
}

func (u *TileUsecase) validateTile(ctx context.Context, tile *domain.Tile) error {
	for nodeID, value := range tile.Data {
		id, err := uuid.Parse(nodeID)
		if err != nil {
			continue
		}
		node, err := u.schema.Node(ctx, id)
		if err != nil {
			return err
		}
		dt, err := u.registry.Instance(node.Datatype)
		if err != nil {
			return err
		}
		for _, issue := range dt.Validate(value, *node) {
			if issue.Type == datatype.IssueError {
				return domain.TileValidationError{Message: issue.Message}
			}
		}
	}
	return nil
}

// collectsData reports whether tiles of a node-group carry captured values.
// Groups with exactly one semantic node are structural only.
func (u *TileUsecase) collectsData(ctx context.Context, nodeGroupID uuid.UUID) (bool, error) {
	nodes, err := u.schema.NodesByNodeGroup(ctx, nodeGroupID)
	if err != nil {
		return false, errors.Wrap(err, "listing node-group nodes")
	}
	if len(nodes) == 1 && nodes[0].Datatype == "semantic" {
		return false, nil
	}
	return true, nil
}

func (u *TileUsecase) postSaveActions(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext) error {
	if actor == nil {
		return nil
	}
	tileData := tile.TileData(actor.BypassesProvisional(), actor.ID())
	for nodeID := range tileData {
		id, err := uuid.Parse(nodeID)
		if err != nil {
			continue
		}
		node, err := u.schema.Node(ctx, id)
		if err != nil {
			return err
		}
		dt, err := u.registry.Instance(node.Datatype)
		if err != nil {
			return err
		}
		if err := dt.HandleRequest(ctx, tile, actor, *node); err != nil {
			return err
		}
	}
	return nil
}

func (u *TileUsecase) newEditEntry(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext, editType string) *domain.EditLogEntry {
	nodeGroupID := tile.NodeGroupID
	tileID := tile.TileID
	entry := &domain.EditLogEntry{
		ResourceInstanceID: tile.ResourceInstanceID,
		NodeGroupID:        &nodeGroupID,
		TileInstanceID:     &tileID,
		EditType:           editType,
		Timestamp:          time.Now().UTC(),
	}
	if actor != nil {
		entry.UserID = actor.UserID
		entry.Username = actor.Username
		entry.UserEmail = actor.Email
		entry.UserFirstName = actor.FirstName
		entry.UserLastName = actor.LastName
	}
	if resource, err := u.resources.Get(ctx, tile.ResourceInstanceID); err == nil {
		entry.ResourceClassID = resource.GraphID
	}
	if u.descriptors != nil {
		entry.ResourceDisplayName = u.descriptors.DisplayName(ctx, tile.ResourceInstanceID)
	}
	return entry
}

func (u *TileUsecase) deleteTermPostings(ctx context.Context, tileID uuid.UUID) {
	hits, _, err := u.search.Search(ctx, stelae.IndexTerms, SearchQuery{
		Terms: map[string][]string{"tileid": {tileID.String()}},
	})
	if err != nil {
		slog.WarnContext(ctx, "term posting lookup failed",
			slog.String("tileid", tileID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, hit := range hits {
		if err := u.search.Delete(ctx, stelae.IndexTerms, hit.ID); err != nil {
			slog.WarnContext(ctx, "term posting delete failed",
				slog.String("id", hit.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reindexResource refreshes the owning resource's search projection. Index
// failures never fail the already-committed write; the index is a derived,
// rebuildable projection.
func (u *TileUsecase) reindexResource(ctx context.Context, resourceID uuid.UUID) {
	if u.indexer == nil {
		return
	}
	if err := u.indexer.IndexResource(ctx, resourceID); err != nil {
		slog.WarnContext(ctx, "resource re-index failed",
			slog.String("resourceinstanceid", resourceID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (u *TileUsecase) publish(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext, editType string) {
	if u.signal == nil {
		return
	}
	event := stelae.Event{
		Type:               "edit",
		EditType:           editType,
		ResourceInstanceID: tile.ResourceInstanceID.String(),
		TileID:             tile.TileID.String(),
		UserID:             actor.ID(),
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	}
	if err := u.signal.PublishEdit(ctx, event); err != nil {
		slog.WarnContext(ctx, "edit event publish failed",
			slog.String("error", err.Error()),
		)
	}
}

func applyProvisionalDetails(entry *domain.EditLogEntry, details *domain.ProvisionalEditLogDetails) {
	if details == nil {
		return
	}
	entry.ProvisionalEditType = details.Action
	if details.ProvisionalEditor != nil {
		entry.ProvisionalUserID = details.ProvisionalEditor.UserID
		entry.ProvisionalUsername = details.ProvisionalEditor.Username
	}
	if details.User != nil {
		entry.UserID = details.User.UserID
		entry.Username = details.User.Username
		entry.UserEmail = details.User.Email
		entry.UserFirstName = details.User.FirstName
		entry.UserLastName = details.User.LastName
	}
}

func cloneEdits(edits map[string]domain.ProvisionalEdit) map[string]domain.ProvisionalEdit {
	if edits == nil {
		return nil
	}
	out := make(map[string]domain.ProvisionalEdit, len(edits))
	for k, v := range edits {
		out[k] = v
	}
	return out
}
