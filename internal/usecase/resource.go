package usecase

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/datatype"
	"github.com/stelae/stelae/internal/domain"
)

// RelatedResourcesPerPage is the page size applied when a page number is
// requested instead of an explicit start/limit window.
const RelatedResourcesPerPage = 16

// ResourceUsecase owns the aggregate save/delete/copy paths and the
// projection of a resource-plus-tiles tree into search documents.
type ResourceUsecase struct {
	cfg         Config
	resources   ResourceRepository
	tiles       TileRepository
	editlog     EditLogRepository
	schema      SchemaRepository
	values      ValueRepository
	relations   RelationRepository
	registry    *datatype.Registry
	search      SearchEngine
	signal      Signal
	tx          TransactionManager
	tileUC      *TileUsecase
	descriptors *DescriptorRenderer
}

func NewResourceUsecase(
	cfg Config,
	resources ResourceRepository,
	tiles TileRepository,
	editlog EditLogRepository,
	schema SchemaRepository,
	values ValueRepository,
	relations RelationRepository,
	registry *datatype.Registry,
	search SearchEngine,
	signal Signal,
	tx TransactionManager,
	tileUC *TileUsecase,
	descriptors *DescriptorRenderer,
) *ResourceUsecase {
	return &ResourceUsecase{
		cfg:         cfg,
		resources:   resources,
		tiles:       tiles,
		editlog:     editlog,
		schema:      schema,
		values:      values,
		relations:   relations,
		registry:    registry,
		search:      search,
		signal:      signal,
		tx:          tx,
		tileUC:      tileUC,
		descriptors: descriptors,
	}
}

// Save persists a resource and every attached tile in one transaction, then
// writes the "create" audit entry and re-projects the aggregate into the
// search engine. The database write is the durability source of truth; index
// failures are logged, never fatal.
func (u *ResourceUsecase) Save(ctx context.Context, resource *domain.Resource, actor *domain.ActorContext) error {
	ctx, span := tracer.Start(ctx, "Resource.Usecase.Save")
	defer span.End()

	graph, err := u.schema.Graph(ctx, resource.GraphID)
	if err != nil {
		return errors.Wrap(err, "resolving graph")
	}
	if !graph.IsActive {
		err := domain.ModelInactiveError{Message: "this model is not yet active; unable to save"}
		span.RecordError(err)
		return err
	}
	if resource.ResourceInstanceID == uuid.Nil {
		resource.ResourceInstanceID = uuid.New()
	}

	err = u.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := u.resources.Save(txCtx, resource); err != nil {
			return errors.Wrap(err, "saving resource row")
		}
		for _, tile := range resource.Tiles {
			tile.ResourceInstanceID = resource.ResourceInstanceID
			if err := u.tileUC.Save(txCtx, tile, actor, TileSaveOptions{Log: true, Index: false}); err != nil {
				return err
			}
		}
		entry := u.newResourceEditEntry(resource, actor, domain.EditTypeCreate)
		return u.editlog.Append(txCtx, entry)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	u.descriptors.Invalidate(resource.ResourceInstanceID)
	if err := u.Index(ctx, resource); err != nil {
		slog.WarnContext(ctx, "resource index failed after save",
			slog.String("resourceinstanceid", resource.ResourceInstanceID.String()),
			slog.String("error", err.Error()),
		)
	}
	u.publish(ctx, resource, actor, domain.EditTypeCreate)
	return nil
}

// Delete removes a resource, its tiles, its relationship rows and every
// trace of it in the search index. Reviewers and system contexts may always
// delete; a non-reviewer may delete only a fully provisional resource. The
// returned bool reports whether deletion was permitted.
func (u *ResourceUsecase) Delete(ctx context.Context, resourceID uuid.UUID, actor *domain.ActorContext) (bool, error) {
	ctx, span := tracer.Start(ctx, "Resource.Usecase.Delete")
	defer span.End()

	resource, err := u.resources.Get(ctx, resourceID)
	if err != nil {
		return false, err
	}
	graph, err := u.schema.Graph(ctx, resource.GraphID)
	if err != nil {
		return false, errors.Wrap(err, "resolving graph")
	}
	if !graph.IsActive {
		err := domain.ModelInactiveError{Message: "this model is not yet active; unable to delete"}
		span.RecordError(err)
		return false, err
	}

	permitted := actor.BypassesProvisional()
	if !permitted {
		tiles, err := u.tiles.ListByResource(ctx, resourceID)
		if err != nil {
			return false, errors.Wrap(err, "listing tiles")
		}
		permitted = true
		for _, tile := range tiles {
			if !domain.DataIsBlank(tile.Data) {
				permitted = false
				break
			}
		}
	}
	if !permitted {
		return false, nil
	}

	displayName := u.descriptors.DisplayName(ctx, resourceID)

	if err := u.relations.DeleteByResource(ctx, resourceID); err != nil {
		return false, errors.Wrap(err, "deleting resource relations")
	}
	u.deleteFromIndex(ctx, resourceID)

	entry := u.newResourceEditEntry(resource, actor, domain.EditTypeDelete)
	entry.Note = displayName
	if err := u.editlog.Append(ctx, entry); err != nil {
		return false, errors.Wrap(err, "writing edit log")
	}
	if err := u.resources.Delete(ctx, resourceID); err != nil {
		return false, errors.Wrap(err, "deleting resource row")
	}
	u.descriptors.Invalidate(resourceID)
	u.publish(ctx, resource, actor, domain.EditTypeDelete)
	return true, nil
}

// Get loads a resource with its full tile set attached.
func (u *ResourceUsecase) Get(ctx context.Context, resourceID uuid.UUID) (*domain.Resource, error) {
	resource, err := u.resources.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	tiles, err := u.tiles.ListByResource(ctx, resourceID)
	if err != nil {
		return nil, errors.Wrap(err, "listing tiles")
	}
	resource.Tiles = tiles
	return resource, nil
}

// IndexResource loads a resource's tiles and refreshes its search
// projection. Satisfies the Indexer port used by the tile pipeline.
func (u *ResourceUsecase) IndexResource(ctx context.Context, resourceID uuid.UUID) error {
	resource, err := u.resources.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	return u.Index(ctx, resource)
}

// Index builds the resource's search document and term postings and pushes
// them to the engine. Resources of the system-settings graph are
// configuration, not inventory, and are never indexed.
func (u *ResourceUsecase) Index(ctx context.Context, resource *domain.Resource) error {
	ctx, span := tracer.Start(ctx, "Resource.Usecase.Index")
	defer span.End()

	if u.cfg.SystemSettingsGraphID != uuid.Nil && resource.GraphID == u.cfg.SystemSettingsGraphID {
		return nil
	}
	doc, terms, err := u.GetDocumentsToIndex(ctx, resource, true, false)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := u.search.IndexData(ctx, stelae.IndexResources, doc.ResourceInstanceID, doc); err != nil {
		return errors.Wrap(err, "indexing resource document")
	}
	for _, term := range terms {
		if err := u.search.IndexData(ctx, stelae.IndexTerms, term.DocumentID, term); err != nil {
			return errors.Wrap(err, "indexing term posting")
		}
	}
	return nil
}

// GetDocumentsToIndex flattens a resource-plus-tiles tree into one search
// document and its term postings. With fetchTiles the tile set is read from
// storage; otherwise the tiles attached to the aggregate are used (bulk
// path). Streamlined mode skips descriptor rendering.
func (u *ResourceUsecase) GetDocumentsToIndex(ctx context.Context, resource *domain.Resource, fetchTiles, streamlined bool) (*stelae.IndexDocument, []stelae.TermPosting, error) {
	doc := stelae.NewIndexDocument()
	doc.ResourceInstanceID = resource.ResourceInstanceID.String()
	doc.GraphID = resource.GraphID.String()
	doc.LegacyID = resource.LegacyID

	rootClass, err := u.schema.RootOntologyClass(ctx, resource.GraphID)
	if err == nil {
		doc.RootOntologyClass = rootClass
	}

	tiles := resource.Tiles
	if fetchTiles {
		tiles, err = u.tiles.ListByResource(ctx, resource.ResourceInstanceID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "listing tiles")
		}
	}

	nodeDatatypes, err := u.schema.NodeDatatypes(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading node datatypes")
	}

	var configs map[uuid.UUID]domain.DescriptorConfig
	if !streamlined {
		configs, err = u.descriptors.Configs(ctx, resource.GraphID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "loading descriptor configs")
		}
	}

	doc.ProvisionalResource = provisionalState(tiles)

	var terms []stelae.TermPosting
	for _, tile := range tiles {
		for nodeID, value := range tile.Data {
			if domain.ValueIsBlank(value) {
				continue
			}
			dt, node, err := u.resolveNode(ctx, nodeID, nodeDatatypes)
			if err != nil {
				return nil, nil, err
			}
			if cfg, ok := configs[tile.NodeGroupID]; ok && node != nil {
				display := dt.DisplayValue(ctx, tile, *node)
				substitute(&doc.DisplayName, cfg.Name, node.Name, display)
				substitute(&doc.DisplayDescription, cfg.Description, node.Name, display)
				substitute(&doc.MapPopup, cfg.MapPopup, node.Name, display)
			}
			dt.AppendToDocument(doc, value, nodeID, tile, false)
			terms = append(terms, postings(ctx, dt, value, nodeID, tile, false)...)
		}

		for _, edit := range tile.ProvisionalEdits {
			if edit.Status != domain.ProvisionalStatusReview {
				continue
			}
			for nodeID, value := range edit.Value {
				if domain.ValueIsBlank(value) {
					continue
				}
				dt, _, err := u.resolveNode(ctx, nodeID, nodeDatatypes)
				if err != nil {
					return nil, nil, err
				}
				dt.AppendToDocument(doc, value, nodeID, tile, true)
				terms = append(terms, postings(ctx, dt, value, nodeID, tile, true)...)
			}
		}
	}
	return doc, terms, nil
}

// Copy deep-copies the resource's tile tree into a new aggregate and
// persists it inside one transaction.
func (u *ResourceUsecase) Copy(ctx context.Context, resourceID uuid.UUID, actor *domain.ActorContext) (*domain.Resource, error) {
	ctx, span := tracer.Start(ctx, "Resource.Usecase.Copy")
	defer span.End()

	source, err := u.resources.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	tiles := source.FlattenedTiles()
	if len(tiles) == 0 {
		tiles, err = u.tiles.ListByResource(ctx, resourceID)
		if err != nil {
			return nil, errors.Wrap(err, "listing tiles")
		}
	}

	copied := &domain.Resource{
		ResourceInstanceID: uuid.New(),
		GraphID:            source.GraphID,
	}
	idMap := make(map[uuid.UUID]*domain.Tile, len(tiles))
	for _, tile := range tiles {
		newTile := &domain.Tile{
			TileID:      uuid.New(),
			NodeGroupID: tile.NodeGroupID,
			SortOrder:   tile.SortOrder,
			Data:        cloneData(tile.Data),
		}
		idMap[tile.TileID] = newTile
		copied.Tiles = append(copied.Tiles, newTile)
	}
	for i, tile := range tiles {
		if tile.ParentTileID == nil {
			continue
		}
		if parent, ok := idMap[*tile.ParentTileID]; ok {
			parentID := parent.TileID
			copied.Tiles[i].ParentTileID = &parentID
		}
	}

	if err := u.Save(ctx, copied, actor); err != nil {
		return nil, err
	}
	return copied, nil
}

// GetNodeValues resolves a human node name to exactly one node definition
// and collects every value captured for it across the resource's tiles.
// Concept value references are dereferenced to their display label.
func (u *ResourceUsecase) GetNodeValues(ctx context.Context, resourceID uuid.UUID, nodeName string) ([]any, error) {
	resource, err := u.resources.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	nodes, err := u.schema.NodesByName(ctx, resource.GraphID, nodeName)
	if err != nil {
		return nil, errors.Wrap(err, "looking up nodes by name")
	}
	if len(nodes) == 0 {
		return nil, domain.InvalidNodeNameError{Name: nodeName}
	}
	if len(nodes) > 1 {
		return nil, domain.MultipleNodesFoundError{Name: nodeName, Count: len(nodes)}
	}
	node := nodes[0]

	tiles, err := u.tiles.ListByResourceAndNodeGroup(ctx, resourceID, node.NodeGroupID)
	if err != nil {
		return nil, errors.Wrap(err, "listing tiles")
	}

	var values []any
	nodeID := node.NodeID.String()
	for _, tile := range tiles {
		for id, value := range tile.Data {
			if id != nodeID {
				continue
			}
			if list, ok := value.([]any); ok {
				for _, item := range list {
					values = append(values, u.parseNodeValue(ctx, item))
				}
			} else {
				values = append(values, u.parseNodeValue(ctx, value))
			}
		}
	}
	return values, nil
}

// RelatedResourcesResult lists the relationships touching one resource plus
// summaries of the resources on their far end.
type RelatedResourcesResult struct {
	Total                 int              `json:"total"`
	ResourceRelationships []map[string]any `json:"resource_relationships"`
	RelatedResources      []map[string]any `json:"related_resources"`
}

// RelatedResources pages through the relationship index and resolves the
// far-end resource documents and relationship-type labels.
func (u *ResourceUsecase) RelatedResources(ctx context.Context, resourceID uuid.UUID, start, limit, page int) (*RelatedResourcesResult, error) {
	if page > 0 {
		limit = RelatedResourcesPerPage
		start = limit * (page - 1)
	}
	id := resourceID.String()
	hits, total, err := u.search.Search(ctx, stelae.IndexResourceRelations, SearchQuery{
		Should: map[string][]string{
			"resourceinstanceidfrom": {id},
			"resourceinstanceidto":   {id},
		},
		Start: start,
		Limit: limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying relationship index")
	}

	result := &RelatedResourcesResult{
		Total:                 total,
		ResourceRelationships: []map[string]any{},
		RelatedResources:      []map[string]any{},
	}
	instanceIDs := map[string]struct{}{}
	for _, hit := range hits {
		relation := hit.Source
		relationType, _ := relation["relationshiptype"].(string)
		label := relationType
		if relationType != "" {
			if resolved, err := u.values.ValueLabel(ctx, relationType); err == nil {
				label = resolved
			}
		}
		relation["relationshiptype_label"] = label
		result.ResourceRelationships = append(result.ResourceRelationships, relation)
		if from, ok := relation["resourceinstanceidfrom"].(string); ok {
			instanceIDs[from] = struct{}{}
		}
		if to, ok := relation["resourceinstanceidto"].(string); ok {
			instanceIDs[to] = struct{}{}
		}
	}
	delete(instanceIDs, id)

	if len(instanceIDs) > 0 {
		ids := make([]string, 0, len(instanceIDs))
		for instanceID := range instanceIDs {
			ids = append(ids, instanceID)
		}
		docs, err := u.search.Get(ctx, stelae.IndexResources, ids)
		if err != nil {
			return nil, errors.Wrap(err, "fetching related resource documents")
		}
		for _, doc := range docs {
			result.RelatedResources = append(result.RelatedResources, doc.Source)
		}
	}
	return result, nil
}

func (u *ResourceUsecase) resolveNode(ctx context.Context, nodeID string, nodeDatatypes map[string]string) (datatype.Datatype, *domain.Node, error) {
	dtName, ok := nodeDatatypes[nodeID]
	if !ok {
		return nil, nil, domain.NotFoundError{Resource: "node " + nodeID}
	}
	dt, err := u.registry.Instance(dtName)
	if err != nil {
		return nil, nil, err
	}
	id, err := uuid.Parse(nodeID)
	if err != nil {
		return dt, nil, nil
	}
	node, err := u.schema.Node(ctx, id)
	if err != nil {
		return dt, nil, nil
	}
	return dt, node, nil
}

func (u *ResourceUsecase) parseNodeValue(ctx context.Context, value any) any {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}
	if _, err := uuid.Parse(s); err != nil {
		return value
	}
	if label, err := u.values.ValueLabel(ctx, s); err == nil {
		return label
	}
	return value
}

func (u *ResourceUsecase) deleteFromIndex(ctx context.Context, resourceID uuid.UUID) {
	hits, _, err := u.search.Search(ctx, stelae.IndexTerms, SearchQuery{
		Terms: map[string][]string{"resourceinstanceid": {resourceID.String()}},
	})
	if err != nil {
		slog.WarnContext(ctx, "term posting lookup failed",
			slog.String("resourceinstanceid", resourceID.String()),
			slog.String("error", err.Error()),
		)
	}
	for _, hit := range hits {
		if err := u.search.Delete(ctx, stelae.IndexTerms, hit.ID); err != nil {
			slog.WarnContext(ctx, "term posting delete failed",
				slog.String("id", hit.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := u.search.Delete(ctx, stelae.IndexResources, resourceID.String()); err != nil {
		slog.WarnContext(ctx, "resource document delete failed",
			slog.String("resourceinstanceid", resourceID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (u *ResourceUsecase) newResourceEditEntry(resource *domain.Resource, actor *domain.ActorContext, editType string) *domain.EditLogEntry {
	entry := &domain.EditLogEntry{
		ResourceClassID:    resource.GraphID,
		ResourceInstanceID: resource.ResourceInstanceID,
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
	return entry
}

func (u *ResourceUsecase) publish(ctx context.Context, resource *domain.Resource, actor *domain.ActorContext, editType string) {
	if u.signal == nil {
		return
	}
	event := stelae.Event{
		Type:               "edit",
		EditType:           editType,
		ResourceInstanceID: resource.ResourceInstanceID.String(),
		UserID:             actor.ID(),
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	}
	if err := u.signal.PublishEdit(ctx, event); err != nil {
		slog.WarnContext(ctx, "edit event publish failed",
			slog.String("error", err.Error()),
		)
	}
}

// provisionalState classifies a tile set for the provisional_resource
// document field. Blankness is the canonical all-values-null definition.
func provisionalState(tiles []*domain.Tile) string {
	allBlank := true
	anyInReview := false
	for _, tile := range tiles {
		if !domain.DataIsBlank(tile.Data) {
			allBlank = false
		}
		for _, edit := range tile.ProvisionalEdits {
			if edit.Status == domain.ProvisionalStatusReview {
				anyInReview = true
			}
		}
	}
	switch {
	case allBlank:
		return "true"
	case anyInReview:
		return "partial"
	default:
		return "false"
	}
}

func postings(ctx context.Context, dt datatype.Datatype, value any, nodeID string, tile *domain.Tile, provisional bool) []stelae.TermPosting {
	var out []stelae.TermPosting
	for i, term := range dt.SearchTerms(ctx, value, nodeID) {
		out = append(out, stelae.TermPosting{
			DocumentID:         nodeID + tile.TileID.String() + strconv.Itoa(i),
			Value:              term,
			NodeID:             nodeID,
			NodeGroupID:        tile.NodeGroupID.String(),
			TileID:             tile.TileID.String(),
			ResourceInstanceID: tile.ResourceInstanceID.String(),
			Provisional:        provisional,
		})
	}
	return out
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
