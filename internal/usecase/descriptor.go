package usecase

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/stelae/stelae/internal/datatype"
	"github.com/stelae/stelae/internal/domain"
)

// UndefinedDescriptor is rendered when a graph has no descriptor
// configuration for the requested kind.
const UndefinedDescriptor = "undefined"

// Descriptors are the three rendered primary-descriptor texts of a resource.
type Descriptors struct {
	Name        *string
	Description *string
	MapPopup    *string
}

// DescriptorRenderer computes display name, description and map popup for a
// resource by substituting "<node name>" placeholders in the configured
// node-group templates with rendered display values. Rendered names are
// memoized in an external cache keyed by resource id.
type DescriptorRenderer struct {
	schema    SchemaRepository
	resources ResourceRepository
	tiles     TileRepository
	registry  *datatype.Registry
	cache     DescriptorCache
}

func NewDescriptorRenderer(
	schema SchemaRepository,
	resources ResourceRepository,
	tiles TileRepository,
	registry *datatype.Registry,
	cache DescriptorCache,
) *DescriptorRenderer {
	return &DescriptorRenderer{
		schema:    schema,
		resources: resources,
		tiles:     tiles,
		registry:  registry,
		cache:     cache,
	}
}

// Configs returns the graph's descriptor configuration keyed by node-group.
func (r *DescriptorRenderer) Configs(ctx context.Context, graphID uuid.UUID) (map[uuid.UUID]domain.DescriptorConfig, error) {
	configs, err := r.schema.DescriptorConfigs(ctx, graphID)
	if err != nil {
		return nil, err
	}
	byNodeGroup := make(map[uuid.UUID]domain.DescriptorConfig, len(configs))
	for _, cfg := range configs {
		byNodeGroup[cfg.NodeGroupID] = cfg
	}
	return byNodeGroup, nil
}

// Render walks a resource's tiles and substitutes every configured
// placeholder. Tiles must already be flattened.
func (r *DescriptorRenderer) Render(ctx context.Context, graphID uuid.UUID, tiles []*domain.Tile) (Descriptors, error) {
	configs, err := r.Configs(ctx, graphID)
	if err != nil {
		return Descriptors{}, err
	}
	var out Descriptors
	for _, tile := range tiles {
		cfg, ok := configs[tile.NodeGroupID]
		if !ok {
			continue
		}
		for nodeID, value := range tile.Data {
			if domain.ValueIsBlank(value) {
				continue
			}
			id, err := uuid.Parse(nodeID)
			if err != nil {
				continue
			}
			node, err := r.schema.Node(ctx, id)
			if err != nil {
				continue
			}
			dt, err := r.registry.Instance(node.Datatype)
			if err != nil {
				continue
			}
			display := dt.DisplayValue(ctx, tile, *node)
			substitute(&out.Name, cfg.Name, node.Name, display)
			substitute(&out.Description, cfg.Description, node.Name, display)
			substitute(&out.MapPopup, cfg.MapPopup, node.Name, display)
		}
	}
	return out, nil
}

// DisplayName returns the rendered display name of a resource, consulting
// the cache first. It never fails: lookup errors degrade to the undefined
// descriptor.
func (r *DescriptorRenderer) DisplayName(ctx context.Context, resourceID uuid.UUID) string {
	key := cacheKey("name", resourceID)
	if r.cache != nil {
		if name, ok := r.cache.Get(key); ok {
			return name
		}
	}
	resource, err := r.resources.Get(ctx, resourceID)
	if err != nil {
		return UndefinedDescriptor
	}
	tiles, err := r.tiles.ListByResource(ctx, resourceID)
	if err != nil {
		slog.WarnContext(ctx, "descriptor tile load failed",
			slog.String("resourceinstanceid", resourceID.String()),
			slog.String("error", err.Error()),
		)
		return UndefinedDescriptor
	}
	rendered, err := r.Render(ctx, resource.GraphID, tiles)
	if err != nil || rendered.Name == nil {
		return UndefinedDescriptor
	}
	if r.cache != nil {
		r.cache.Set(key, *rendered.Name)
	}
	return *rendered.Name
}

// Invalidate drops the cached descriptors for a resource.
func (r *DescriptorRenderer) Invalidate(resourceID uuid.UUID) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(cacheKey("name", resourceID))
}

// substitute seeds the output from the template on first use, then replaces
// the placeholder for one node.
func substitute(out **string, template, nodeName, display string) {
	if template == "" {
		return
	}
	if *out == nil {
		seeded := template
		*out = &seeded
	}
	replaced := strings.ReplaceAll(**out, "<"+nodeName+">", display)
	**out = replaced
}

// cacheKey hashes the descriptor identity into a short fixed-length key;
// memcached limits key length.
func cacheKey(kind string, resourceID uuid.UUID) string {
	sum := xxh3.HashString(kind + ":" + resourceID.String())
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (8 * uint(7-i)))
	}
	return "stelae:desc:" + hex.EncodeToString(buf[:])
}
