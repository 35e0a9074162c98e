package stelae

// Search index names. The external engine keeps one index per document kind.
const (
	IndexResources         = "resources"
	IndexTerms             = "terms"
	IndexResourceRelations = "resource_relations"
)

// IndexDocument is the flattened projection of a resource and its tiles that
// gets pushed to the search engine. Every bucket entry records whether it was
// derived from authoritative or provisional tile data.
type IndexDocument struct {
	ResourceInstanceID  string          `json:"resourceinstanceid"`
	GraphID             string          `json:"graph_id"`
	LegacyID            string          `json:"legacyid,omitempty"`
	DisplayName         *string         `json:"displayname"`
	DisplayDescription  *string         `json:"displaydescription"`
	MapPopup            *string         `json:"map_popup"`
	RootOntologyClass   string          `json:"root_ontology_class,omitempty"`
	ProvisionalResource string          `json:"provisional_resource"`
	Strings             []StringEntry   `json:"strings"`
	Dates               []DateEntry     `json:"dates"`
	Domains             []DomainEntry   `json:"domains"`
	Geometries          []GeometryEntry `json:"geometries"`
	Points              []PointEntry    `json:"points"`
	Numbers             []NumberEntry   `json:"numbers"`
	DateRanges          []DateRange     `json:"date_ranges"`
	IDs                 []IDEntry       `json:"ids"`
}

// NewIndexDocument returns a document with every bucket allocated so the
// serialized form always carries the full key set.
func NewIndexDocument() *IndexDocument {
	return &IndexDocument{
		Strings:    []StringEntry{},
		Dates:      []DateEntry{},
		Domains:    []DomainEntry{},
		Geometries: []GeometryEntry{},
		Points:     []PointEntry{},
		Numbers:    []NumberEntry{},
		DateRanges: []DateRange{},
		IDs:        []IDEntry{},
	}
}

type StringEntry struct {
	String      string `json:"string"`
	NodeGroupID string `json:"nodegroup_id"`
	Provisional bool   `json:"provisional"`
}

type DateEntry struct {
	Date        string `json:"date"`
	NodeGroupID string `json:"nodegroup_id"`
	NodeID      string `json:"nodeid"`
	Provisional bool   `json:"provisional"`
}

type DomainEntry struct {
	Label       string `json:"label"`
	ValueID     string `json:"valueid"`
	NodeGroupID string `json:"nodegroup_id"`
	Provisional bool   `json:"provisional"`
}

type GeometryEntry struct {
	Geometry    any    `json:"geometry"`
	NodeGroupID string `json:"nodegroup_id"`
	Provisional bool   `json:"provisional"`
}

type PointEntry struct {
	Point       Point  `json:"point"`
	NodeGroupID string `json:"nodegroup_id"`
	Provisional bool   `json:"provisional"`
}

type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type NumberEntry struct {
	Number      float64 `json:"number"`
	NodeGroupID string  `json:"nodegroup_id"`
	Provisional bool    `json:"provisional"`
}

type DateRange struct {
	From        string `json:"from"`
	To          string `json:"to"`
	NodeGroupID string `json:"nodegroup_id"`
	Provisional bool   `json:"provisional"`
}

type IDEntry struct {
	ID          string `json:"id"`
	NodeGroupID string `json:"nodegroup_id"`
	Provisional bool   `json:"provisional"`
}

// TermPosting is one searchable term extracted from a single node value.
// DocumentID is deterministic (nodeid + tileid + term index) so re-indexing a
// resource overwrites its previous postings.
type TermPosting struct {
	DocumentID         string `json:"-"`
	Value              string `json:"value"`
	NodeID             string `json:"nodeid"`
	NodeGroupID        string `json:"nodegroupid"`
	TileID             string `json:"tileid"`
	ResourceInstanceID string `json:"resourceinstanceid"`
	Provisional        bool   `json:"provisional"`
}

// RelationDocument is the indexed form of one resource-to-resource link,
// queried from both ends when listing related resources.
type RelationDocument struct {
	ResourceXID            string `json:"resourcexid"`
	ResourceInstanceIDFrom string `json:"resourceinstanceidfrom"`
	ResourceInstanceIDTo   string `json:"resourceinstanceidto"`
	RelationshipType       string `json:"relationshiptype"`
	TileID                 string `json:"tileid"`
	NodeID                 string `json:"nodeid"`
}

// Event is broadcast on the signal channel after every committed edit.
type Event struct {
	Type               string `json:"type"`
	EditType           string `json:"editType"`
	ResourceInstanceID string `json:"resourceInstanceID"`
	TileID             string `json:"tileID,omitempty"`
	UserID             string `json:"userID,omitempty"`
	Timestamp          string `json:"timestamp"`
}
