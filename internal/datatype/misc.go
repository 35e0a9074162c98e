package datatype

import (
	"context"
	"fmt"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// DomainValue captures a choice from a fixed option list configured on the
// node ({"options": [{"id": ..., "text": ...}, ...]}).
type DomainValue struct {
	base
}

func (d DomainValue) Name() string { return "domain-value" }

func (d DomainValue) DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string {
	id, ok := tile.Data[node.NodeID.String()].(string)
	if !ok {
		return ""
	}
	return optionText(node, id)
}

func (d DomainValue) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
	id, ok := value.(string)
	if !ok || id == "" {
		return
	}
	doc.Domains = append(doc.Domains, stelae.DomainEntry{
		Label:       id,
		ValueID:     id,
		NodeGroupID: tile.NodeGroupID.String(),
		Provisional: provisional,
	})
}

func optionText(node domain.Node, id string) string {
	options, ok := node.Config["options"].([]any)
	if !ok {
		return ""
	}
	for _, o := range options {
		option, ok := o.(map[string]any)
		if !ok {
			continue
		}
		if fmt.Sprint(option["id"]) == id {
			return fmt.Sprint(option["text"])
		}
	}
	return ""
}

// FileList captures uploaded file descriptors. The pipeline treats the
// descriptors as opaque; upload handling happens before the tile reaches the
// save path.
type FileList struct {
	base
}

func (d FileList) Name() string { return "file-list" }

func (d FileList) Validate(value any, node domain.Node) []Issue {
	if value == nil {
		return nil
	}
	if _, ok := value.([]any); !ok {
		return []Issue{{Type: IssueError, Message: "value is not a file list"}}
	}
	return nil
}

func (d FileList) DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string {
	list, ok := tile.Data[node.NodeID.String()].([]any)
	if !ok {
		return ""
	}
	out := ""
	for _, item := range list {
		file, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := file["name"].(string)
		if name == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += name
	}
	return out
}

// ResourceInstance captures a reference to another resource instance. Saving
// a value syncs the resource-to-resource link rows derived from it.
type ResourceInstance struct {
	base
	relations RelationWriter
}

func NewResourceInstance(relations RelationWriter) ResourceInstance {
	return ResourceInstance{relations: relations}
}

func (d ResourceInstance) Name() string { return "resource-instance" }

func (d ResourceInstance) HandleRequest(ctx context.Context, tile *domain.Tile, actor *domain.ActorContext, node domain.Node) error {
	if d.relations == nil {
		return nil
	}
	// Links follow the authoritative value only; staged edits create no
	// relations until a reviewer writes them through.
	return d.relations.SyncRelations(ctx, tile, node, referencedIDs(tile.Data[node.NodeID.String()]))
}

func referencedIDs(value any) []string {
	list, ok := value.([]any)
	if !ok {
		list = []any{value}
	}
	var ids []string
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}

func (d ResourceInstance) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
	ids, ok := value.([]any)
	if !ok {
		ids = []any{value}
	}
	for _, id := range ids {
		s, ok := id.(string)
		if !ok || s == "" {
			continue
		}
		doc.IDs = append(doc.IDs, stelae.IDEntry{
			ID:          s,
			NodeGroupID: tile.NodeGroupID.String(),
			Provisional: provisional,
		})
	}
}
