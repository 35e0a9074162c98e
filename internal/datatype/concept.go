package datatype

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

// Concept captures a reference to a thesaurus value by its value id. Display
// and search work on the dereferenced label, never on the raw id.
type Concept struct {
	base
	values ValueResolver
}

func NewConcept(values ValueResolver) Concept {
	return Concept{values: values}
}

func (d Concept) Name() string { return "concept" }

func (d Concept) Validate(value any, node domain.Node) []Issue {
	if value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return []Issue{{Type: IssueError, Message: fmt.Sprintf("%v is not a concept value id", value)}}
	}
	if _, err := uuid.Parse(s); err != nil {
		return []Issue{{Type: IssueError, Message: fmt.Sprintf("%q is not a concept value id", s)}}
	}
	return nil
}

func (d Concept) DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string {
	return d.label(ctx, tile.Data[node.NodeID.String()])
}

func (d Concept) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
	s, ok := value.(string)
	if !ok || s == "" {
		return
	}
	label := d.label(context.Background(), s)
	doc.Domains = append(doc.Domains, stelae.DomainEntry{
		Label:       label,
		ValueID:     s,
		NodeGroupID: tile.NodeGroupID.String(),
		Provisional: provisional,
	})
	doc.IDs = append(doc.IDs, stelae.IDEntry{
		ID:          s,
		NodeGroupID: tile.NodeGroupID.String(),
		Provisional: provisional,
	})
}

func (d Concept) SearchTerms(ctx context.Context, value any, nodeID string) []string {
	if label := d.label(ctx, value); label != "" {
		return []string{label}
	}
	return nil
}

func (d Concept) label(ctx context.Context, value any) string {
	s, ok := value.(string)
	if !ok || s == "" || d.values == nil {
		return ""
	}
	label, err := d.values.ValueLabel(ctx, s)
	if err != nil {
		slog.Warn("concept label lookup failed",
			slog.String("valueid", s),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return label
}

// ConceptList captures an ordered list of concept value ids.
type ConceptList struct {
	base
	concept Concept
}

func NewConceptList(values ValueResolver) ConceptList {
	return ConceptList{concept: NewConcept(values)}
}

func (d ConceptList) Name() string { return "concept-list" }

func (d ConceptList) Validate(value any, node domain.Node) []Issue {
	if value == nil {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return []Issue{{Type: IssueError, Message: fmt.Sprintf("%v is not a list of concept value ids", value)}}
	}
	var issues []Issue
	for _, item := range list {
		issues = append(issues, d.concept.Validate(item, node)...)
	}
	return issues
}

func (d ConceptList) DisplayValue(ctx context.Context, tile *domain.Tile, node domain.Node) string {
	list, ok := tile.Data[node.NodeID.String()].([]any)
	if !ok {
		return ""
	}
	out := ""
	for _, item := range list {
		label := d.concept.label(ctx, item)
		if label == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += label
	}
	return out
}

func (d ConceptList) AppendToDocument(doc *stelae.IndexDocument, value any, nodeID string, tile *domain.Tile, provisional bool) {
	list, ok := value.([]any)
	if !ok {
		return
	}
	for _, item := range list {
		d.concept.AppendToDocument(doc, item, nodeID, tile, provisional)
	}
}

func (d ConceptList) SearchTerms(ctx context.Context, value any, nodeID string) []string {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var terms []string
	for _, item := range list {
		terms = append(terms, d.concept.SearchTerms(ctx, item, nodeID)...)
	}
	return terms
}
