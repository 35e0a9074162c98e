package domain

import "github.com/google/uuid"

// Resource is the aggregate of all tiles captured for one real-world entity
// under a graph. Tiles holds the top-level tiles of the tree; descendants
// hang off each tile's own Tiles list.
type Resource struct {
	ResourceInstanceID uuid.UUID `json:"resourceinstanceid"`
	GraphID            uuid.UUID `json:"graph_id"`
	LegacyID           string    `json:"legacyid,omitempty"`
	Tiles              []*Tile   `json:"tiles,omitempty"`
}

// FlattenedTiles returns every tile of the aggregate as a single list,
// parents before children.
func (r *Resource) FlattenedTiles() []*Tile {
	var tiles []*Tile
	for _, tile := range r.Tiles {
		tiles = append(tiles, tile.Flattened()...)
	}
	return tiles
}

// IsFullyProvisional reports whether no tile of the aggregate carries
// authoritative content.
func (r *Resource) IsFullyProvisional() bool {
	for _, tile := range r.FlattenedTiles() {
		if !DataIsBlank(tile.Data) {
			return false
		}
	}
	return true
}
