package datatype

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/domain"
)

type fakeValues struct {
	labels map[string]string
}

func (f *fakeValues) ValueLabel(ctx context.Context, valueID string) (string, error) {
	if label, ok := f.labels[valueID]; ok {
		return label, nil
	}
	return "", domain.NotFoundError{Resource: "value"}
}

func TestRegistryInstance(t *testing.T) {
	reg := NewRegistry(&fakeValues{}, nil)
	for _, name := range []string{
		"semantic", "string", "number", "boolean", "date", "concept",
		"concept-list", "domain-value", "geojson-feature-collection",
		"file-list", "resource-instance",
	} {
		dt, err := reg.Instance(name)
		if err != nil {
			t.Fatalf("Instance(%q): %v", name, err)
		}
		if dt.Name() != name {
			t.Fatalf("Instance(%q) returned %q", name, dt.Name())
		}
	}
	if _, err := reg.Instance("edtf"); err == nil {
		t.Fatalf("expected error for unregistered datatype")
	}
}

func TestSemanticCollectsNoData(t *testing.T) {
	reg := NewRegistry(&fakeValues{}, nil)
	dt, _ := reg.Instance("semantic")
	if dt.CollectsData() {
		t.Fatalf("semantic nodes must not collect data")
	}
	str, _ := reg.Instance("string")
	if !str.CollectsData() {
		t.Fatalf("string nodes collect data")
	}
}

func TestStringCleanNormalizesEmptyToNil(t *testing.T) {
	nodeID := uuid.NewString()
	tile := &domain.Tile{Data: map[string]any{nodeID: ""}}
	dt := String{}
	if err := dt.Clean(tile, nodeID); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if tile.Data[nodeID] != nil {
		t.Fatalf("empty string must normalize to nil, got %#v", tile.Data[nodeID])
	}
}

func TestStringSearchTermsAndDocument(t *testing.T) {
	dt := String{}
	terms := dt.SearchTerms(context.Background(), "Test Name 1", "n")
	if len(terms) != 1 || terms[0] != "Test Name 1" {
		t.Fatalf("unexpected terms %v", terms)
	}

	doc := stelae.NewIndexDocument()
	tile := &domain.Tile{NodeGroupID: uuid.New()}
	dt.AppendToDocument(doc, "Test Name 1", "n", tile, false)
	if len(doc.Strings) != 1 || doc.Strings[0].String != "Test Name 1" {
		t.Fatalf("string bucket not populated: %+v", doc.Strings)
	}
	if doc.Strings[0].Provisional {
		t.Fatalf("authoritative append must not be provisional")
	}
}

func TestNumberCleanCoercesStrings(t *testing.T) {
	nodeID := uuid.NewString()
	tile := &domain.Tile{Data: map[string]any{nodeID: "42.5"}}
	dt := Number{}
	if err := dt.Clean(tile, nodeID); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if tile.Data[nodeID] != 42.5 {
		t.Fatalf("want 42.5, got %#v", tile.Data[nodeID])
	}

	tile.Data[nodeID] = "not-a-number"
	if err := dt.Clean(tile, nodeID); err == nil {
		t.Fatalf("expected clean to fail on a non-numeric string")
	}
	if !dt.ValuesMatch(42.5, "42.5") {
		t.Fatalf("numeric values match across representations")
	}
}

func TestDateValidate(t *testing.T) {
	dt := Date{}
	if issues := dt.Validate("1941-01-01", domain.Node{}); len(issues) != 0 {
		t.Fatalf("valid date rejected: %v", issues)
	}
	issues := dt.Validate("not-a-date", domain.Node{})
	if len(issues) != 1 || issues[0].Type != IssueError {
		t.Fatalf("invalid date accepted: %v", issues)
	}
}

func TestConceptLabelResolution(t *testing.T) {
	valueID := uuid.NewString()
	values := &fakeValues{labels: map[string]string{valueID: "Mock concept"}}
	dt := NewConcept(values)

	node := domain.Node{NodeID: uuid.New()}
	tile := &domain.Tile{
		NodeGroupID: uuid.New(),
		Data:        map[string]any{node.NodeID.String(): valueID},
	}
	if got := dt.DisplayValue(context.Background(), tile, node); got != "Mock concept" {
		t.Fatalf("want label, got %q", got)
	}

	terms := dt.SearchTerms(context.Background(), valueID, node.NodeID.String())
	if len(terms) != 1 || terms[0] != "Mock concept" {
		t.Fatalf("concept terms are labels, got %v", terms)
	}

	doc := stelae.NewIndexDocument()
	dt.AppendToDocument(doc, valueID, node.NodeID.String(), tile, true)
	if len(doc.Domains) != 1 || !doc.Domains[0].Provisional {
		t.Fatalf("domain bucket not populated as provisional: %+v", doc.Domains)
	}
	if len(doc.IDs) != 1 || doc.IDs[0].ID != valueID {
		t.Fatalf("ids bucket not populated: %+v", doc.IDs)
	}
}

func TestConceptCleanEmptyString(t *testing.T) {
	nodeID := uuid.NewString()
	tile := &domain.Tile{Data: map[string]any{nodeID: ""}}
	dt := NewConcept(&fakeValues{})
	if err := dt.Clean(tile, nodeID); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if tile.Data[nodeID] != nil {
		t.Fatalf("empty concept value must normalize to nil")
	}
}

func TestGeoJSONPointExtraction(t *testing.T) {
	geom := map[string]any{
		"type": "FeatureCollection",
		"features": []any{
			map[string]any{
				"type": "Feature",
				"geometry": map[string]any{
					"type":        "Point",
					"coordinates": []any{float64(12.5), float64(41.9)},
				},
			},
		},
	}
	dt := GeoJSON{}
	if issues := dt.Validate(geom, domain.Node{}); len(issues) != 0 {
		t.Fatalf("valid geometry rejected: %v", issues)
	}

	doc := stelae.NewIndexDocument()
	tile := &domain.Tile{NodeGroupID: uuid.New()}
	dt.AppendToDocument(doc, geom, "n", tile, false)
	if len(doc.Geometries) != 1 {
		t.Fatalf("geometry bucket not populated")
	}
	if len(doc.Points) != 1 || doc.Points[0].Point.Lon != 12.5 || doc.Points[0].Point.Lat != 41.9 {
		t.Fatalf("point not extracted: %+v", doc.Points)
	}

	if !dt.ValuesMatch(geom, geom) {
		t.Fatalf("identical geometries must match")
	}
}

func TestDomainValueDisplay(t *testing.T) {
	node := domain.Node{
		NodeID: uuid.New(),
		Config: map[string]any{
			"options": []any{
				map[string]any{"id": "opt-1", "text": "First"},
				map[string]any{"id": "opt-2", "text": "Second"},
			},
		},
	}
	tile := &domain.Tile{Data: map[string]any{node.NodeID.String(): "opt-2"}}
	dt := DomainValue{}
	if got := dt.DisplayValue(context.Background(), tile, node); got != "Second" {
		t.Fatalf("want option text, got %q", got)
	}
}
