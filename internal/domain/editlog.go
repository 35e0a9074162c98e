package domain

import (
	"time"

	"github.com/google/uuid"
)

// Edit types recorded in the audit log.
const (
	EditTypeCreate     = "create"
	EditTypeTileCreate = "tile create"
	EditTypeTileEdit   = "tile edit"
	EditTypeTileDelete = "tile delete"
	EditTypeDelete     = "delete"
	EditTypeBulkCreate = "bulk_create"
)

// EditLogEntry is one append-only audit record. Entries are never updated
// after creation.
type EditLogEntry struct {
	ResourceClassID     uuid.UUID
	ResourceInstanceID  uuid.UUID
	NodeGroupID         *uuid.UUID
	TileInstanceID      *uuid.UUID
	UserID              string
	UserEmail           string
	UserFirstName       string
	UserLastName        string
	Username            string
	ProvisionalUserID   string
	ProvisionalUsername string
	ProvisionalEditType string
	EditType            string
	OldValue            map[string]any
	NewValue            map[string]any
	OldProvisionalValue map[string]any
	NewProvisionalValue map[string]any
	ResourceDisplayName string
	Note                string
	Timestamp           time.Time
}

// ProvisionalEditLogDetails attributes a provisional change to its editor
// when the audit entry is written by someone else (e.g. a reviewer acting on
// another user's staged edit).
type ProvisionalEditLogDetails struct {
	User              *ActorContext
	ProvisionalEditor *ActorContext
	Action            string
}
