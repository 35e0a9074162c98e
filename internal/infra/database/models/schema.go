package models

import (
	"github.com/google/uuid"
)

type Graph struct {
	GraphID    uuid.UUID `json:"graphid" gorm:"primaryKey;type:uuid"`
	Name       string    `json:"name" gorm:"type:text"`
	IsActive   bool      `json:"isactive" gorm:"type:boolean;not null;default:false"`
	IsResource bool      `json:"isresource" gorm:"type:boolean;not null;default:true"`
}

type NodeGroup struct {
	NodeGroupID       uuid.UUID  `json:"nodegroupid" gorm:"primaryKey;type:uuid"`
	ParentNodeGroupID *uuid.UUID `json:"parentnodegroupid" gorm:"type:uuid;index"`
}

type Node struct {
	NodeID        uuid.UUID `json:"nodeid" gorm:"primaryKey;type:uuid"`
	GraphID       uuid.UUID `json:"graph_id" gorm:"type:uuid;index"`
	NodeGroupID   uuid.UUID `json:"nodegroupid" gorm:"type:uuid;index"`
	Name          string    `json:"name" gorm:"type:text;index"`
	Datatype      string    `json:"datatype" gorm:"type:text"`
	IsRequired    bool      `json:"isrequired" gorm:"type:boolean;not null;default:false"`
	IsTopNode     bool      `json:"istopnode" gorm:"type:boolean;not null;default:false"`
	OntologyClass string    `json:"ontologyclass" gorm:"type:text"`
	Config        string    `json:"config" gorm:"type:text"`
}

type Card struct {
	CardID      uuid.UUID `json:"cardid" gorm:"primaryKey;type:uuid"`
	NodeGroupID uuid.UUID `json:"nodegroupid" gorm:"type:uuid;index:card_nodegroup,unique"`
	Name        string    `json:"name" gorm:"type:text"`
}

// CardConstraint stores its node id set as a JSON array.
type CardConstraint struct {
	ConstraintID         uuid.UUID `json:"constraintid" gorm:"primaryKey;type:uuid"`
	CardID               uuid.UUID `json:"card_id" gorm:"type:uuid;index"`
	UniqueToAllInstances bool      `json:"uniquetoallinstances" gorm:"type:boolean;not null;default:false"`
	Nodes                string    `json:"nodes" gorm:"type:text"`
}

type CardNodeWidget struct {
	ID     int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CardID uuid.UUID `json:"card_id" gorm:"type:uuid;index:card_node,unique"`
	NodeID uuid.UUID `json:"node_id" gorm:"type:uuid;index:card_node,unique"`
	Label  string    `json:"label" gorm:"type:text"`
}

// Value is one concept-list entry referenced from tile data by id.
type Value struct {
	ValueID uuid.UUID `json:"valueid" gorm:"primaryKey;type:uuid"`
	Value   string    `json:"value" gorm:"type:text"`
	Type    string    `json:"valuetype" gorm:"type:text"`
}

type DescriptorConfig struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	GraphID     uuid.UUID `json:"graph_id" gorm:"type:uuid;index"`
	NodeGroupID uuid.UUID `json:"nodegroupid" gorm:"type:uuid;index"`
	Name        string    `json:"name" gorm:"type:text"`
	Description string    `json:"description" gorm:"type:text"`
	MapPopup    string    `json:"map_popup" gorm:"type:text"`
}
