package models

import (
	"time"

	"github.com/google/uuid"
)

type ResourceInstance struct {
	ResourceInstanceID uuid.UUID `json:"resourceinstanceid" gorm:"primaryKey;type:uuid"`
	GraphID            uuid.UUID `json:"graph_id" gorm:"type:uuid;index;not null"`
	LegacyID           string    `json:"legacyid" gorm:"type:text"`
	CDate              time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Tile struct {
	TileID             uuid.UUID        `json:"tileid" gorm:"primaryKey;type:uuid"`
	ResourceInstanceID uuid.UUID        `json:"resourceinstanceid" gorm:"type:uuid;index;not null"`
	ResourceInstance   ResourceInstance `json:"-" gorm:"foreignKey:ResourceInstanceID;references:ResourceInstanceID;constraint:OnDelete:CASCADE;"`
	ParentTileID       *uuid.UUID       `json:"parenttileid" gorm:"type:uuid;index"`
	NodeGroupID        uuid.UUID        `json:"nodegroupid" gorm:"type:uuid;index;not null"`
	SortOrder          int              `json:"sortorder" gorm:"type:integer;not null;default:0"`
	Data               string           `json:"data" gorm:"type:text"`
	ProvisionalEdits   string           `json:"provisionaledits" gorm:"type:text"`
	CDate              time.Time        `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// EditLog rows are append-only; nothing updates or deletes them.
type EditLog struct {
	ID                  int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	ResourceClassID     *uuid.UUID `json:"resourceclassid" gorm:"type:uuid;index"`
	ResourceInstanceID  *uuid.UUID `json:"resourceinstanceid" gorm:"type:uuid;index"`
	NodeGroupID         *uuid.UUID `json:"nodegroupid" gorm:"type:uuid"`
	TileInstanceID      *uuid.UUID `json:"tileinstanceid" gorm:"type:uuid;index"`
	EditType            string     `json:"edittype" gorm:"type:text;index"`
	UserID              string     `json:"userid" gorm:"type:text"`
	UserEmail           string     `json:"user_email" gorm:"type:text"`
	UserFirstName       string     `json:"user_firstname" gorm:"type:text"`
	UserLastName        string     `json:"user_lastname" gorm:"type:text"`
	Username            string     `json:"user_username" gorm:"type:text"`
	ProvisionalUserID   string     `json:"provisional_userid" gorm:"type:text"`
	ProvisionalUsername string     `json:"provisional_user_username" gorm:"type:text"`
	ProvisionalEditType string     `json:"provisional_edittype" gorm:"type:text"`
	OldValue            string     `json:"oldvalue" gorm:"type:text"`
	NewValue            string     `json:"newvalue" gorm:"type:text"`
	OldProvisionalValue string     `json:"oldprovisionalvalue" gorm:"type:text"`
	NewProvisionalValue string     `json:"newprovisionalvalue" gorm:"type:text"`
	ResourceDisplayName string     `json:"resourcedisplayname" gorm:"type:text"`
	Note                string     `json:"note" gorm:"type:text"`
	Timestamp           time.Time  `json:"timestamp" gorm:"type:timestamp with time zone;not null"`
}

type ResourceXResource struct {
	ResourceXID            uuid.UUID `json:"resourcexid" gorm:"primaryKey;type:uuid"`
	ResourceInstanceIDFrom uuid.UUID `json:"resourceinstanceidfrom" gorm:"type:uuid;index"`
	ResourceInstanceIDTo   uuid.UUID `json:"resourceinstanceidto" gorm:"type:uuid;index"`
	RelationshipType       string    `json:"relationshiptype" gorm:"type:text"`
	TileID                 uuid.UUID `json:"tileid" gorm:"type:uuid;index"`
	NodeID                 uuid.UUID `json:"nodeid" gorm:"type:uuid"`
	CDate                  time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
