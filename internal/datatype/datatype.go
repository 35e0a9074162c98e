package datatype

import (
	"context"
	"fmt"
	"reflect"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// Issue severities reported by Validate.
const (
	IssueError   = "ERROR"
	IssueWarning = "WARNING"
)

// Issue is one validation finding for a node value.
type Issue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Datatype is the per-node-type behavior contract. The persistence and
// indexing pipeline never interprets raw node values itself; every
// value-shape decision is delegated here.
type Datatype interface {
	Name() string

	// CollectsData reports whether tiles of this datatype carry captured
	// values. Only semantic nodes return false.
	CollectsData() bool

	// Validate inspects a value against its node definition. Entries of type
	// ERROR abort the tile save.
	Validate(value any, node domain.Node) []Issue

	// Clean normalizes the value stored under nodeID in place (e.g. empty
	// string to nil) and fails on values that cannot be repaired.
	Clean(tile *domain.Tile, nodeID string) error

	// ValuesMatch reports whether two stored values are equal for the
	// purpose of uniqueness constraints.
	ValuesMatch(a, b any) bool

	// DisplayValue renders the node's value on a tile for humans.
	DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string

	// AppendToDocument adds the value's derived forms to the typed buckets
	// of a search document.
	AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool)

	// SearchTerms extracts zero or more full-text terms from a value.
	SearchTerms(ctx context.Context, value any, nodeID string) []string

	// HandleRequest runs request-dependent side effects after the tile row
	// is written.
	HandleRequest(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext, node domain.Node) error

	// AfterUpdateAll runs once after a bulk update touching this datatype.
	AfterUpdateAll()
}

// ValueResolver dereferences concept value ids to their display label.
type ValueResolver interface {
	ValueLabel(ctx context.Context, valueID string) (string, error)
}

// RelationWriter replaces the resource-to-resource links derived from one
// resource-instance node value with the given target set.
type RelationWriter interface {
	SyncRelations(ctx context.Context, tile *domain.Tile, node domain.Node, targetIDs []string) error
}

// Registry maps datatype names to their implementation. Registration is an
// explicit table; there is no runtime class loading.
type Registry struct {
	types map[string]Datatype
}

// NewRegistry builds the registry of supported datatypes. Concept datatypes
// need a resolver for label lookups; the resource-instance datatype needs a
// relation writer to sync link rows after a save.
func NewRegistry(values ValueResolver, relations RelationWriter) *Registry {
	r := &Registry{types: map[string]Datatype{}}
	for _, dt := range []Datatype{
		Semantic{},
		String{},
		Number{},
		Boolean{},
		Date{},
		NewConcept(values),
		NewConceptList(values),
		DomainValue{},
		GeoJSON{},
		FileList{},
		NewResourceInstance(relations),
	} {
		r.types[dt.Name()] = dt
	}
	return r
}

// Instance returns the datatype registered under name.
func (r *Registry) Instance(name string) (Datatype, error) {
	dt, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("unknown datatype %q", name)
	}
	return dt, nil
}

// base carries the default behavior shared by most datatypes.
type base struct {
	name string
}

func (d base) Name() string       { return d.name }
func (d base) CollectsData() bool { return true }

func (d base) Validate(value any, node domain.Node) []Issue { return nil }

func (d base) Clean(tile *domain.Tile, nodeID string) error {
	if v, ok := tile.Data[nodeID]; ok && domain.ValueIsBlank(v) {
		tile.Data[nodeID] = nil
	}
	return nil
}

func (d base) ValuesMatch(a, b any) bool {
	if domain.ValueIsBlank(a) && domain.ValueIsBlank(b) {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func (d base) DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string {
	v := tile.Data[node.NodeID.String()]
	if domain.ValueIsBlank(v) {
		return ""
	}
	return fmt.Sprint(v)
}

func (d base) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
}

func (d base) SearchTerms(ctx context.Context, value any, nodeID string) []string { return nil }

func (d base) HandleRequest(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext, node domain.Node) error {
	return nil
}

func (d base) AfterUpdateAll() {}

// Semantic nodes structure the graph and collect no data.
type Semantic struct {
	base
}

func (d Semantic) Name() string       { return "semantic" }
func (d Semantic) CollectsData() bool { return false }
