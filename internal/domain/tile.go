package domain

import (
	"time"

	"github.com/google/uuid"
)

// Provisional edit statuses and actions.
const (
	ProvisionalStatusReview   = "review"
	ProvisionalStatusApproved = "approved"

	ProvisionalActionCreate = "create"
	ProvisionalActionUpdate = "update"
	ProvisionalActionDelete = "delete"
)

// ProvisionalEdit is an unapproved value proposed by a single user, held next
// to the authoritative data until a reviewer acts on it.
type ProvisionalEdit struct {
	Value           map[string]any `json:"value"`
	Status          string         `json:"status"`
	Action          string         `json:"action"`
	Reviewer        *string        `json:"reviewer"`
	Timestamp       string         `json:"timestamp"`
	ReviewTimestamp *string        `json:"reviewtimestamp"`
}

// Tile is one captured data instance for a node-group. Data maps node id
// strings to captured values; the value shape is owned by the node's datatype.
// Children are attached in memory until saved; the parent reference is an id,
// never a pointer, so a tree cannot form ownership cycles.
type Tile struct {
	TileID             uuid.UUID                  `json:"tileid"`
	ResourceInstanceID uuid.UUID                  `json:"resourceinstanceid"`
	ParentTileID       *uuid.UUID                 `json:"parenttileid"`
	NodeGroupID        uuid.UUID                  `json:"nodegroupid"`
	SortOrder          int                        `json:"sortorder"`
	Data               map[string]any             `json:"data"`
	ProvisionalEdits   map[string]ProvisionalEdit `json:"provisionaledits,omitempty"`
	Tiles              []*Tile                    `json:"tiles,omitempty"`
}

// ValueIsBlank reports whether a captured node value carries no content:
// nil, empty string, empty list or empty map.
func ValueIsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// DataIsBlank reports whether every value in a data map is blank.
func DataIsBlank(data map[string]any) bool {
	for _, v := range data {
		if !ValueIsBlank(v) {
			return false
		}
	}
	return true
}

// IsBlank reports whether the tile and all of its descendants carry no data.
func (t *Tile) IsBlank() bool {
	if !DataIsBlank(t.Data) {
		return false
	}
	for _, child := range t.Tiles {
		if !child.IsBlank() {
			return false
		}
	}
	return true
}

// IsProvisional reports whether the tile exists only as provisional data:
// at least one provisional edit and no authoritative content.
func (t *Tile) IsProvisional() bool {
	return len(t.ProvisionalEdits) > 0 && DataIsBlank(t.Data)
}

// UserOwnsProvisional reports whether the given user has a pending
// provisional edit on this tile.
func (t *Tile) UserOwnsProvisional(userID string) bool {
	if userID == "" {
		return false
	}
	_, ok := t.ProvisionalEdits[userID]
	return ok
}

// ProvisionalEditFor returns the pending edit for a user, if any.
func (t *Tile) ProvisionalEditFor(userID string) *ProvisionalEdit {
	if edit, ok := t.ProvisionalEdits[userID]; ok {
		return &edit
	}
	return nil
}

// TileData returns the view of the tile appropriate for the acting user:
// reviewers always see authoritative data, a provisional editor sees their
// own staged value.
func (t *Tile) TileData(userIsReviewer bool, userID string) map[string]any {
	if !userIsReviewer {
		if edit, ok := t.ProvisionalEdits[userID]; ok {
			return edit.Value
		}
	}
	return t.Data
}

// StageProvisionalEdit records a proposed value for a user, replacing any
// previous pending edit by the same user. Existing edits by other users are
// preserved.
func (t *Tile) StageProvisionalEdit(userID string, value map[string]any, action string) {
	edit := ProvisionalEdit{
		Value:     value,
		Status:    ProvisionalStatusReview,
		Action:    action,
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
	if t.ProvisionalEdits == nil {
		t.ProvisionalEdits = map[string]ProvisionalEdit{}
	}
	t.ProvisionalEdits[userID] = edit
}

// Flattened returns this tile followed by all of its descendants,
// depth-first.
func (t *Tile) Flattened() []*Tile {
	tiles := []*Tile{t}
	for _, child := range t.Tiles {
		tiles = append(tiles, child.Flattened()...)
	}
	return tiles
}
