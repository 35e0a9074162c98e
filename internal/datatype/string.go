package datatype

import (
	"context"
	"fmt"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// String captures free text. Every non-blank value is a search term.
type String struct {
	base
}

func (d String) Name() string { return "string" }

func (d String) Validate(value any, node domain.Node) []Issue {
	if value == nil {
		return nil
	}
	if _, ok := value.(string); !ok {
		return []Issue{{Type: IssueError, Message: fmt.Sprintf("%v is not a string", value)}}
	}
	return nil
}

func (d String) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
	s, ok := value.(string)
	if !ok || s == "" {
		return
	}
	doc.Strings = append(doc.Strings, stelae.StringEntry{
		String:      s,
		NodeGroupID: tile.NodeGroupID.String(),
		Provisional: provisional,
	})
}

func (d String) SearchTerms(ctx context.Context, value any, nodeID string) []string {
	if s, ok := value.(string); ok && s != "" {
		return []string{s}
	}
	return nil
}
