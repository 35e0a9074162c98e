package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// TileRepository defines row-level storage for tiles. Save is an upsert.
type TileRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Tile, error)
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*domain.Tile, error)
	ListByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) ([]*domain.Tile, error)
	ListByResourceAndNodeGroup(ctx context.Context, resourceID, nodeGroupID uuid.UUID) ([]*domain.Tile, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Tile, error)
	Save(ctx context.Context, tile *domain.Tile) error
	Delete(ctx context.Context, id uuid.UUID) error
	BulkCreate(ctx context.Context, tiles []*domain.Tile) error
}

// ResourceRepository defines row-level storage for resource instances.
// Delete cascades to the resource's tiles.
type ResourceRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	Save(ctx context.Context, resource *domain.Resource) error
	Delete(ctx context.Context, id uuid.UUID) error
	BulkCreate(ctx context.Context, resources []*domain.Resource) error
}

// EditLogRepository appends audit records. Entries are never updated.
type EditLogRepository interface {
	Append(ctx context.Context, entry *domain.EditLogEntry) error
	BulkAppend(ctx context.Context, entries []*domain.EditLogEntry) error
}

// SchemaRepository exposes the graph/ontology definition subsystem read-only.
type SchemaRepository interface {
	Graph(ctx context.Context, id uuid.UUID) (*domain.Graph, error)
	Node(ctx context.Context, id uuid.UUID) (*domain.Node, error)
	NodesByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) ([]domain.Node, error)
	NodesByName(ctx context.Context, graphID uuid.UUID, name string) ([]domain.Node, error)
	NodeDatatypes(ctx context.Context) (map[string]string, error)
	RootOntologyClass(ctx context.Context, graphID uuid.UUID) (string, error)
	CardByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) (*domain.Card, error)
	ConstraintsByCard(ctx context.Context, cardID uuid.UUID) ([]domain.Constraint, error)
	WidgetLabel(ctx context.Context, cardID, nodeID uuid.UUID) (string, error)
	DescriptorConfigs(ctx context.Context, graphID uuid.UUID) ([]domain.DescriptorConfig, error)
}

// ValueRepository dereferences concept value ids to display labels.
type ValueRepository interface {
	ValueLabel(ctx context.Context, valueID string) (string, error)
}

// RelationRepository stores typed resource-to-resource links. Save is an
// upsert; DeleteByTileNode clears the links derived from one node value.
type RelationRepository interface {
	Save(ctx context.Context, relation *domain.ResourceRelation) error
	DeleteByTileNode(ctx context.Context, tileID, nodeID uuid.UUID) error
	DeleteByResource(ctx context.Context, resourceID uuid.UUID) error
}

// SearchQuery selects documents whose fields match any of the given values.
type SearchQuery struct {
	Terms  map[string][]string
	Should map[string][]string
	Start  int
	Limit  int
}

// SearchHit is one document returned by the search engine.
type SearchHit struct {
	ID     string
	Source map[string]any
}

// BulkItem is one document staged for a bulk index call.
type BulkItem struct {
	Index      string
	DocumentID string
	Data       any
}

// SearchEngine is the external full-text/search collaborator. Index writes
// are best-effort relative to the database: a failed call never rolls back a
// committed row.
type SearchEngine interface {
	IndexData(ctx context.Context, index, id string, body any) error
	BulkIndex(ctx context.Context, items []BulkItem) error
	Delete(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, query SearchQuery) ([]SearchHit, int, error)
	Get(ctx context.Context, index string, ids []string) ([]SearchHit, error)
}

// Signal broadcasts committed edits to realtime listeners.
type Signal interface {
	PublishEdit(ctx context.Context, event stelae.Event) error
}

// DescriptorCache memoizes rendered primary descriptors.
type DescriptorCache interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// TransactionManager scopes a unit of work to one database transaction. The
// context passed to fn carries the transaction; repositories participate
// automatically.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Indexer re-projects one resource into the search engine.
type Indexer interface {
	IndexResource(ctx context.Context, resourceID uuid.UUID) error
}

// Config carries the pipeline feature flags explicitly; nothing in the
// pipeline reads ambient process state.
type Config struct {
	// StreamlineImport skips per-tile audit entries and eager descriptor
	// rendering on the bulk path.
	StreamlineImport bool

	// SystemSettingsGraphID names the graph whose resources are
	// configuration, not inventory; they are never indexed.
	SystemSettingsGraphID uuid.UUID
}
