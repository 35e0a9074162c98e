package datatype

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// Number captures a single numeric value. Strings that parse as numbers are
// normalized to float64 on clean.
type Number struct {
	base
}

func (d Number) Name() string { return "number" }

func (d Number) Validate(value any, node domain.Node) []Issue {
	if value == nil {
		return nil
	}
	if _, ok := asFloat(value); !ok {
		return []Issue{{Type: IssueError, Message: fmt.Sprintf("%v is not a number", value)}}
	}
	return nil
}

func (d Number) Clean(tile *domain.Tile, nodeID string) error {
	v, ok := tile.Data[nodeID]
	if !ok || v == nil {
		return nil
	}
	if domain.ValueIsBlank(v) {
		tile.Data[nodeID] = nil
		return nil
	}
	f, ok := asFloat(v)
	if !ok {
		return domain.TileValidationError{Message: fmt.Sprintf("%v is not a number", v)}
	}
	tile.Data[nodeID] = f
	return nil
}

func (d Number) ValuesMatch(a, b any) bool {
	if domain.ValueIsBlank(a) && domain.ValueIsBlank(b) {
		return true
	}
	fa, oka := asFloat(a)
	fb, okb := asFloat(b)
	if !oka || !okb {
		return false
	}
	return fa == fb
}

func (d Number) DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string {
	v := tile.Data[node.NodeID.String()]
	if f, ok := asFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func (d Number) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
	f, ok := asFloat(value)
	if !ok {
		return
	}
	doc.Numbers = append(doc.Numbers, stelae.NumberEntry{
		Number:      f,
		NodeGroupID: tile.NodeGroupID.String(),
		Provisional: provisional,
	})
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
