package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/datatype"
	"github.com/stelae/stelae/internal/domain"
)

type memTileRepo struct {
	tiles map[uuid.UUID]*domain.Tile
}

func newMemTileRepo() *memTileRepo {
	return &memTileRepo{tiles: map[uuid.UUID]*domain.Tile{}}
}

func (m *memTileRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Tile, error) {
	tile, ok := m.tiles[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "tile"}
	}
	copied := *tile
	return &copied, nil
}

func (m *memTileRepo) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*domain.Tile, error) {
	var out []*domain.Tile
	for _, tile := range m.tiles {
		if tile.ResourceInstanceID == resourceID {
			out = append(out, tile)
		}
	}
	return out, nil
}

func (m *memTileRepo) ListByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) ([]*domain.Tile, error) {
	var out []*domain.Tile
	for _, tile := range m.tiles {
		if tile.NodeGroupID == nodeGroupID {
			out = append(out, tile)
		}
	}
	return out, nil
}

func (m *memTileRepo) ListByResourceAndNodeGroup(ctx context.Context, resourceID, nodeGroupID uuid.UUID) ([]*domain.Tile, error) {
	var out []*domain.Tile
	for _, tile := range m.tiles {
		if tile.ResourceInstanceID == resourceID && tile.NodeGroupID == nodeGroupID {
			out = append(out, tile)
		}
	}
	return out, nil
}

func (m *memTileRepo) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Tile, error) {
	var out []*domain.Tile
	for _, tile := range m.tiles {
		if tile.ParentTileID != nil && *tile.ParentTileID == parentID {
			out = append(out, tile)
		}
	}
	return out, nil
}

func (m *memTileRepo) Save(ctx context.Context, tile *domain.Tile) error {
	copied := *tile
	copied.Tiles = nil
	m.tiles[tile.TileID] = &copied
	return nil
}

func (m *memTileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.tiles, id)
	return nil
}

func (m *memTileRepo) BulkCreate(ctx context.Context, tiles []*domain.Tile) error {
	for _, tile := range tiles {
		if err := m.Save(ctx, tile); err != nil {
			return err
		}
	}
	return nil
}

type memResourceRepo struct {
	resources map[uuid.UUID]*domain.Resource
}

func newMemResourceRepo() *memResourceRepo {
	return &memResourceRepo{resources: map[uuid.UUID]*domain.Resource{}}
}

func (m *memResourceRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	resource, ok := m.resources[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "resource"}
	}
	copied := *resource
	copied.Tiles = nil
	return &copied, nil
}

func (m *memResourceRepo) Save(ctx context.Context, resource *domain.Resource) error {
	copied := *resource
	copied.Tiles = nil
	m.resources[resource.ResourceInstanceID] = &copied
	return nil
}

func (m *memResourceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.resources, id)
	return nil
}

func (m *memResourceRepo) BulkCreate(ctx context.Context, resources []*domain.Resource) error {
	for _, resource := range resources {
		if err := m.Save(ctx, resource); err != nil {
			return err
		}
	}
	return nil
}

type memEditLog struct {
	entries []*domain.EditLogEntry
}

func (m *memEditLog) Append(ctx context.Context, entry *domain.EditLogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memEditLog) BulkAppend(ctx context.Context, entries []*domain.EditLogEntry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memEditLog) byType(editType string) []*domain.EditLogEntry {
	var out []*domain.EditLogEntry
	for _, entry := range m.entries {
		if entry.EditType == editType {
			out = append(out, entry)
		}
	}
	return out
}

type memSchema struct {
	graphs      map[uuid.UUID]*domain.Graph
	nodes       map[uuid.UUID]*domain.Node
	cards       map[uuid.UUID]*domain.Card
	constraints map[uuid.UUID][]domain.Constraint
	labels      map[uuid.UUID]string
	descriptors map[uuid.UUID][]domain.DescriptorConfig
}

func newMemSchema() *memSchema {
	return &memSchema{
		graphs:      map[uuid.UUID]*domain.Graph{},
		nodes:       map[uuid.UUID]*domain.Node{},
		cards:       map[uuid.UUID]*domain.Card{},
		constraints: map[uuid.UUID][]domain.Constraint{},
		labels:      map[uuid.UUID]string{},
		descriptors: map[uuid.UUID][]domain.DescriptorConfig{},
	}
}

func (m *memSchema) Graph(ctx context.Context, id uuid.UUID) (*domain.Graph, error) {
	graph, ok := m.graphs[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "graph"}
	}
	return graph, nil
}

func (m *memSchema) Node(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	node, ok := m.nodes[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "node"}
	}
	return node, nil
}

func (m *memSchema) NodesByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) ([]domain.Node, error) {
	var out []domain.Node
	for _, node := range m.nodes {
		if node.NodeGroupID == nodeGroupID {
			out = append(out, *node)
		}
	}
	return out, nil
}

func (m *memSchema) NodesByName(ctx context.Context, graphID uuid.UUID, name string) ([]domain.Node, error) {
	var out []domain.Node
	for _, node := range m.nodes {
		if node.GraphID == graphID && node.Name == name {
			out = append(out, *node)
		}
	}
	return out, nil
}

func (m *memSchema) NodeDatatypes(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.nodes))
	for id, node := range m.nodes {
		out[id.String()] = node.Datatype
	}
	return out, nil
}

func (m *memSchema) RootOntologyClass(ctx context.Context, graphID uuid.UUID) (string, error) {
	for _, node := range m.nodes {
		if node.GraphID == graphID && node.IsTopNode {
			return node.OntologyClass, nil
		}
	}
	return "", nil
}

func (m *memSchema) CardByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) (*domain.Card, error) {
	card, ok := m.cards[nodeGroupID]
	if !ok {
		return nil, domain.NotFoundError{Resource: "card"}
	}
	return card, nil
}

func (m *memSchema) ConstraintsByCard(ctx context.Context, cardID uuid.UUID) ([]domain.Constraint, error) {
	return m.constraints[cardID], nil
}

func (m *memSchema) WidgetLabel(ctx context.Context, cardID, nodeID uuid.UUID) (string, error) {
	if label, ok := m.labels[nodeID]; ok {
		return label, nil
	}
	return "", domain.NotFoundError{Resource: "widget"}
}

func (m *memSchema) DescriptorConfigs(ctx context.Context, graphID uuid.UUID) ([]domain.DescriptorConfig, error) {
	return m.descriptors[graphID], nil
}

type memSearch struct {
	docs    map[string]map[string]map[string]any
	bulked  []BulkItem
	deleted []string
}

func newMemSearch() *memSearch {
	return &memSearch{docs: map[string]map[string]map[string]any{}}
}

func (m *memSearch) put(index, id string, source map[string]any) {
	if m.docs[index] == nil {
		m.docs[index] = map[string]map[string]any{}
	}
	m.docs[index][id] = source
}

func (m *memSearch) IndexData(ctx context.Context, index, id string, body any) error {
	m.put(index, id, toSource(body))
	return nil
}

func (m *memSearch) BulkIndex(ctx context.Context, items []BulkItem) error {
	m.bulked = append(m.bulked, items...)
	for _, item := range items {
		m.put(item.Index, item.DocumentID, toSource(item.Data))
	}
	return nil
}

func (m *memSearch) Delete(ctx context.Context, index, id string) error {
	m.deleted = append(m.deleted, index+"/"+id)
	delete(m.docs[index], id)
	return nil
}

func (m *memSearch) Search(ctx context.Context, index string, query SearchQuery) ([]SearchHit, int, error) {
	var hits []SearchHit
	for id, source := range m.docs[index] {
		if matchesAll(source, query.Terms) && matchesAny(source, query.Should) {
			hits = append(hits, SearchHit{ID: id, Source: source})
		}
	}
	return hits, len(hits), nil
}

func (m *memSearch) Get(ctx context.Context, index string, ids []string) ([]SearchHit, error) {
	var hits []SearchHit
	for _, id := range ids {
		if source, ok := m.docs[index][id]; ok {
			hits = append(hits, SearchHit{ID: id, Source: source})
		}
	}
	return hits, nil
}

func matchesAll(source map[string]any, terms map[string][]string) bool {
	for field, values := range terms {
		actual, _ := source[field].(string)
		found := false
		for _, v := range values {
			if v == actual {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesAny(source map[string]any, should map[string][]string) bool {
	if len(should) == 0 {
		return true
	}
	for field, values := range should {
		actual, _ := source[field].(string)
		for _, v := range values {
			if v == actual {
				return true
			}
		}
	}
	return false
}

func toSource(body any) map[string]any {
	switch b := body.(type) {
	case map[string]any:
		return b
	case stelae.TermPosting:
		return map[string]any{
			"value":              b.Value,
			"nodeid":             b.NodeID,
			"nodegroupid":        b.NodeGroupID,
			"tileid":             b.TileID,
			"resourceinstanceid": b.ResourceInstanceID,
			"provisional":        b.Provisional,
		}
	case *stelae.IndexDocument:
		return map[string]any{
			"resourceinstanceid":   b.ResourceInstanceID,
			"graph_id":             b.GraphID,
			"provisional_resource": b.ProvisionalResource,
		}
	case stelae.RelationDocument:
		return map[string]any{
			"resourcexid":            b.ResourceXID,
			"resourceinstanceidfrom": b.ResourceInstanceIDFrom,
			"resourceinstanceidto":   b.ResourceInstanceIDTo,
			"relationshiptype":       b.RelationshipType,
			"tileid":                 b.TileID,
			"nodeid":                 b.NodeID,
		}
	}
	return map[string]any{}
}

type fakeValues struct {
	labels map[string]string
}

func (f *fakeValues) ValueLabel(ctx context.Context, valueID string) (string, error) {
	if label, ok := f.labels[valueID]; ok {
		return label, nil
	}
	return "", domain.NotFoundError{Resource: "value"}
}

type memRelations struct {
	rows    map[uuid.UUID]*domain.ResourceRelation
	deleted []uuid.UUID
}

func newMemRelations() *memRelations {
	return &memRelations{rows: map[uuid.UUID]*domain.ResourceRelation{}}
}

func (m *memRelations) Save(ctx context.Context, relation *domain.ResourceRelation) error {
	clone := *relation
	m.rows[relation.RelationID] = &clone
	return nil
}

func (m *memRelations) DeleteByTileNode(ctx context.Context, tileID, nodeID uuid.UUID) error {
	for id, rel := range m.rows {
		if rel.TileID == tileID && rel.NodeID == nodeID {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memRelations) DeleteByResource(ctx context.Context, resourceID uuid.UUID) error {
	m.deleted = append(m.deleted, resourceID)
	for id, rel := range m.rows {
		if rel.FromResourceID == resourceID || rel.ToResourceID == resourceID {
			delete(m.rows, id)
		}
	}
	return nil
}

type memSignal struct {
	events []stelae.Event
}

func (m *memSignal) PublishEdit(ctx context.Context, event stelae.Event) error {
	m.events = append(m.events, event)
	return nil
}

type memCache struct {
	values map[string]string
}

func newMemCache() *memCache { return &memCache{values: map[string]string{}} }

func (m *memCache) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *memCache) Set(key, value string) { m.values[key] = value }
func (m *memCache) Delete(key string)     { delete(m.values, key) }

type noopTx struct{}

func (noopTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fixture wires every collaborator with in-memory fakes.
type fixture struct {
	cfg       Config
	tiles     *memTileRepo
	resources *memResourceRepo
	editlog   *memEditLog
	schema    *memSchema
	values    *fakeValues
	relations *memRelations
	search    *memSearch
	signal    *memSignal
	cache     *memCache
	registry  *datatype.Registry
	renderer  *DescriptorRenderer
	tileUC    *TileUsecase
	resUC     *ResourceUsecase
	bulk      *BulkLoader
}

func newFixture() *fixture {
	f := &fixture{
		tiles:     newMemTileRepo(),
		resources: newMemResourceRepo(),
		editlog:   &memEditLog{},
		schema:    newMemSchema(),
		values:    &fakeValues{labels: map[string]string{}},
		relations: newMemRelations(),
		search:    newMemSearch(),
		signal:    &memSignal{},
		cache:     newMemCache(),
	}
	f.registry = datatype.NewRegistry(f.values, NewRelationSyncer(f.relations, f.search))
	f.renderer = NewDescriptorRenderer(f.schema, f.resources, f.tiles, f.registry, f.cache)
	f.tileUC = NewTileUsecase(f.tiles, f.resources, f.editlog, f.schema, f.registry, f.search, f.signal, f.renderer)
	f.resUC = NewResourceUsecase(f.cfg, f.resources, f.tiles, f.editlog, f.schema, f.values, f.relations,
		f.registry, f.search, f.signal, noopTx{}, f.tileUC, f.renderer)
	f.tileUC.SetIndexer(f.resUC)
	f.bulk = NewBulkLoader(f.cfg, f.resources, f.tiles, f.editlog, f.search, noopTx{}, f.resUC)
	return f
}

// addGraph registers an active graph and returns its id.
func (f *fixture) addGraph(name string) uuid.UUID {
	id := uuid.New()
	f.schema.graphs[id] = &domain.Graph{GraphID: id, Name: name, IsActive: true, IsResource: true}
	return id
}

// addNode registers a node in a fresh node-group and returns the node and
// node-group ids.
func (f *fixture) addNode(graphID uuid.UUID, name, dt string, required bool) (uuid.UUID, uuid.UUID) {
	nodeID := uuid.New()
	nodeGroupID := uuid.New()
	f.schema.nodes[nodeID] = &domain.Node{
		NodeID:      nodeID,
		GraphID:     graphID,
		NodeGroupID: nodeGroupID,
		Name:        name,
		Datatype:    dt,
		IsRequired:  required,
	}
	return nodeID, nodeGroupID
}

// addResource stores a bare resource row.
func (f *fixture) addResource(graphID uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.resources.resources[id] = &domain.Resource{ResourceInstanceID: id, GraphID: graphID}
	return id
}
