package domain

import "github.com/google/uuid"

// Graph is the schema/template one resource model is captured under.
type Graph struct {
	GraphID    uuid.UUID
	Name       string
	IsActive   bool
	IsResource bool
}

// Node is a single schema-level field definition with a datatype.
type Node struct {
	NodeID        uuid.UUID
	GraphID       uuid.UUID
	NodeGroupID   uuid.UUID
	Name          string
	Datatype      string
	IsRequired    bool
	IsTopNode     bool
	OntologyClass string
	Config        map[string]any
}

// NodeGroup is a set of nodes captured together as one tile.
type NodeGroup struct {
	NodeGroupID       uuid.UUID
	ParentNodeGroupID *uuid.UUID
}

// Card is the capture surface configured for a node-group.
type Card struct {
	CardID      uuid.UUID
	NodeGroupID uuid.UUID
	Name        string
}

// Constraint declares that the combined values of Nodes must be unique,
// either across the whole system or within a single resource instance.
type Constraint struct {
	ConstraintID         uuid.UUID
	CardID               uuid.UUID
	UniqueToAllInstances bool
	Nodes                []uuid.UUID
}

// DescriptorConfig is the primary-descriptor template set for one node-group:
// "<node name>" placeholders are substituted with rendered display values.
type DescriptorConfig struct {
	GraphID     uuid.UUID
	NodeGroupID uuid.UUID
	Name        string
	Description string
	MapPopup    string
}

// ResourceRelation is a typed link between two resource instances. TileID
// and NodeID record which resource-instance node value the link was derived
// from, so a re-save of that value can replace its links.
type ResourceRelation struct {
	RelationID       uuid.UUID
	FromResourceID   uuid.UUID
	ToResourceID     uuid.UUID
	RelationshipType string
	TileID           uuid.UUID
	NodeID           uuid.UUID
}
