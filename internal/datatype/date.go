package datatype

import (
	"context"
	"fmt"
	"time"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// Date captures a calendar date stored as a string.
type Date struct {
	base
}

func (d Date) Name() string { return "date" }

func (d Date) Validate(value any, node domain.Node) []Issue {
	if value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return []Issue{{Type: IssueError, Message: fmt.Sprintf("%v is not a date string", value)}}
	}
	if _, ok := parseDate(s); !ok {
		return []Issue{{Type: IssueError, Message: fmt.Sprintf("%q is not a valid date", s)}}
	}
	return nil
}

func (d Date) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
	s, ok := value.(string)
	if !ok || s == "" {
		return
	}
	doc.Dates = append(doc.Dates, stelae.DateEntry{
		Date:        s,
		NodeID:      nodeID,
		NodeGroupID: tile.NodeGroupID.String(),
		Provisional: provisional,
	})
}

// Boolean captures a true/false flag.
type Boolean struct {
	base
}

func (d Boolean) Name() string { return "boolean" }

func (d Boolean) Validate(value any, node domain.Node) []Issue {
	if value == nil {
		return nil
	}
	if _, ok := value.(bool); !ok {
		return []Issue{{Type: IssueError, Message: fmt.Sprintf("%v is not a boolean", value)}}
	}
	return nil
}

func (d Boolean) DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string {
	if v, ok := tile.Data[node.NodeID.String()].(bool); ok {
		if v {
			return "true"
		}
		return "false"
	}
	return ""
}

func (d Boolean) ValuesMatch(a, b any) bool {
	if domain.ValueIsBlank(a) && domain.ValueIsBlank(b) {
		return true
	}
	ba, oka := a.(bool)
	bb, okb := b.(bool)
	return oka && okb && ba == bb
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
