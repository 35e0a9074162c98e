package datatype

import (
	"context"
	"fmt"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// GeoJSON captures a GeoJSON FeatureCollection. The value is treated as an
// opaque document except for point extraction into the map-display bucket.
type GeoJSON struct {
	base
}

func (d GeoJSON) Name() string { return "geojson-feature-collection" }

func (d GeoJSON) Validate(value any, node domain.Node) []Issue {
	if value == nil {
		return nil
	}
	if _, ok := features(value); !ok {
		return []Issue{{Type: IssueError, Message: "value is not a GeoJSON feature collection"}}
	}
	return nil
}

func (d GeoJSON) DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string {
	if f, ok := features(tile.Data[node.NodeID.String()]); ok {
		return fmt.Sprintf("%d feature(s)", len(f))
	}
	return ""
}

func (d GeoJSON) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
	feats, ok := features(value)
	if !ok {
		return
	}
	doc.Geometries = append(doc.Geometries, stelae.GeometryEntry{
		Geometry:    value,
		NodeGroupID: tile.NodeGroupID.String(),
		Provisional: provisional,
	})
	for _, f := range feats {
		feature, ok := f.(map[string]any)
		if !ok {
			continue
		}
		geometry, ok := feature["geometry"].(map[string]any)
		if !ok {
			continue
		}
		if geometry["type"] != "Point" {
			continue
		}
		coords, ok := geometry["coordinates"].([]any)
		if !ok || len(coords) < 2 {
			continue
		}
		lon, okLon := asFloat(coords[0])
		lat, okLat := asFloat(coords[1])
		if !okLon || !okLat {
			continue
		}
		doc.Points = append(doc.Points, stelae.PointEntry{
			Point:       stelae.Point{Lon: lon, Lat: lat},
			NodeGroupID: tile.NodeGroupID.String(),
			Provisional: provisional,
		})
	}
}

func features(value any) ([]any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	if m["type"] != "FeatureCollection" {
		return nil, false
	}
	feats, ok := m["features"].([]any)
	return feats, ok
}
