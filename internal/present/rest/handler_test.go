package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/datatype"
	"github.com/stelae/stelae/internal/domain"
	"github.com/stelae/stelae/internal/present/rest/middleware"
	"github.com/stelae/stelae/internal/service"
	"github.com/stelae/stelae/internal/usecase"
)

// --- mocks ---

type mockTileRepo struct{}

func (m *mockTileRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Tile, error) {
	return nil, domain.NotFoundError{Resource: "tile"}
}
func (m *mockTileRepo) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*domain.Tile, error) {
	return nil, nil
}
func (m *mockTileRepo) ListByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) ([]*domain.Tile, error) {
	return nil, nil
}
func (m *mockTileRepo) ListByResourceAndNodeGroup(ctx context.Context, resourceID, nodeGroupID uuid.UUID) ([]*domain.Tile, error) {
	return nil, nil
}
func (m *mockTileRepo) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Tile, error) {
	return nil, nil
}
func (m *mockTileRepo) Save(ctx context.Context, tile *domain.Tile) error    { return nil }
func (m *mockTileRepo) Delete(ctx context.Context, id uuid.UUID) error       { return nil }
func (m *mockTileRepo) BulkCreate(ctx context.Context, t []*domain.Tile) error { return nil }

type mockResourceRepo struct {
	rows    map[uuid.UUID]*domain.Resource
	deleted uuid.UUID
}

func (m *mockResourceRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	if r, ok := m.rows[id]; ok {
		return r, nil
	}
	return nil, domain.NotFoundError{Resource: "resource instance"}
}
func (m *mockResourceRepo) Save(ctx context.Context, r *domain.Resource) error {
	m.rows[r.ResourceInstanceID] = r
	return nil
}
func (m *mockResourceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.deleted = id
	delete(m.rows, id)
	return nil
}
func (m *mockResourceRepo) BulkCreate(ctx context.Context, rs []*domain.Resource) error { return nil }

type mockEditLog struct {
	appended int
}

func (m *mockEditLog) Append(ctx context.Context, e *domain.EditLogEntry) error {
	m.appended++
	return nil
}
func (m *mockEditLog) BulkAppend(ctx context.Context, es []*domain.EditLogEntry) error {
	m.appended += len(es)
	return nil
}

type mockSchemaRepo struct{}

func (m *mockSchemaRepo) Graph(ctx context.Context, id uuid.UUID) (*domain.Graph, error) {
	return &domain.Graph{GraphID: id, IsActive: true, IsResource: true}, nil
}
func (m *mockSchemaRepo) Node(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	return nil, domain.NotFoundError{Resource: "node"}
}
func (m *mockSchemaRepo) NodesByNodeGroup(ctx context.Context, id uuid.UUID) ([]domain.Node, error) {
	return nil, nil
}
func (m *mockSchemaRepo) NodesByName(ctx context.Context, graphID uuid.UUID, name string) ([]domain.Node, error) {
	return nil, nil
}
func (m *mockSchemaRepo) NodeDatatypes(ctx context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
func (m *mockSchemaRepo) RootOntologyClass(ctx context.Context, graphID uuid.UUID) (string, error) {
	return "", nil
}
func (m *mockSchemaRepo) CardByNodeGroup(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	return nil, domain.NotFoundError{Resource: "card"}
}
func (m *mockSchemaRepo) ConstraintsByCard(ctx context.Context, id uuid.UUID) ([]domain.Constraint, error) {
	return nil, nil
}
func (m *mockSchemaRepo) WidgetLabel(ctx context.Context, cardID, nodeID uuid.UUID) (string, error) {
	return "", nil
}
func (m *mockSchemaRepo) DescriptorConfigs(ctx context.Context, graphID uuid.UUID) ([]domain.DescriptorConfig, error) {
	return nil, nil
}

type mockValueRepo struct{}

func (m *mockValueRepo) ValueLabel(ctx context.Context, valueID string) (string, error) {
	return "", domain.NotFoundError{Resource: "value"}
}

type mockRelationRepo struct{}

func (m *mockRelationRepo) Save(ctx context.Context, r *domain.ResourceRelation) error { return nil }
func (m *mockRelationRepo) DeleteByTileNode(ctx context.Context, tileID, nodeID uuid.UUID) error {
	return nil
}
func (m *mockRelationRepo) DeleteByResource(ctx context.Context, id uuid.UUID) error { return nil }

type mockSearch struct {
	indexed []string
}

func (m *mockSearch) IndexData(ctx context.Context, index, id string, body any) error {
	m.indexed = append(m.indexed, index+"/"+id)
	return nil
}
func (m *mockSearch) BulkIndex(ctx context.Context, items []usecase.BulkItem) error { return nil }
func (m *mockSearch) Delete(ctx context.Context, index, id string) error            { return nil }
func (m *mockSearch) Search(ctx context.Context, index string, q usecase.SearchQuery) ([]usecase.SearchHit, int, error) {
	return nil, 0, nil
}
func (m *mockSearch) Get(ctx context.Context, index string, ids []string) ([]usecase.SearchHit, error) {
	return nil, nil
}

type mockSignal struct {
	events []stelae.Event
}

func (m *mockSignal) PublishEdit(ctx context.Context, ev stelae.Event) error {
	m.events = append(m.events, ev)
	return nil
}

type mockCache struct{}

func (m *mockCache) Get(key string) (string, bool) { return "", false }
func (m *mockCache) Set(key, value string)         {}
func (m *mockCache) Delete(key string)             {}

type mockTx struct{}

func (m *mockTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- tests ---

type harness struct {
	e         *echo.Echo
	resources *mockResourceRepo
	search    *mockSearch
	signal    *mockSignal
}

func newHarness() *harness {
	resources := &mockResourceRepo{rows: map[uuid.UUID]*domain.Resource{}}
	search := &mockSearch{}
	signal := &mockSignal{}
	values := &mockValueRepo{}
	schema := &mockSchemaRepo{}
	tiles := &mockTileRepo{}
	editlog := &mockEditLog{}

	registry := datatype.NewRegistry(values, usecase.NewRelationSyncer(&mockRelationRepo{}, search))
	renderer := usecase.NewDescriptorRenderer(schema, resources, tiles, registry, &mockCache{})
	tileUC := usecase.NewTileUsecase(tiles, resources, editlog, schema, registry, search, signal, renderer)
	resourceUC := usecase.NewResourceUsecase(usecase.Config{}, resources, tiles, editlog, schema,
		values, &mockRelationRepo{}, registry, search, signal, &mockTx{}, tileUC, renderer)
	tileUC.SetIndexer(resourceUC)
	bulk := usecase.NewBulkLoader(usecase.Config{}, resources, tiles, editlog, search, &mockTx{}, resourceUC)

	h := NewHandler(resourceUC, tileUC, bulk, renderer, (*service.SignalService)(nil))

	e := echo.New()
	e.Use(middleware.IdentifyActor)
	h.RegisterRoutes(e)

	return &harness{e: e, resources: resources, search: search, signal: signal}
}

func TestHandleResourceSave(t *testing.T) {
	h := newHarness()

	body, _ := json.Marshal(map[string]any{"graph_id": uuid.NewString()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res := httptest.NewRecorder()

	h.e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	if len(h.resources.rows) != 1 {
		t.Fatalf("expected one saved resource, got %d", len(h.resources.rows))
	}
	if len(h.search.indexed) != 1 {
		t.Fatalf("expected one index write, got %d", len(h.search.indexed))
	}
	if len(h.signal.events) != 1 || h.signal.events[0].EditType != domain.EditTypeCreate {
		t.Fatalf("expected a create event, got %+v", h.signal.events)
	}
}

func TestHandleResourceGetNotFound(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resources/"+uuid.NewString(), nil)
	res := httptest.NewRecorder()

	h.e.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", res.Code)
	}
}

func TestHandleResourceDelete(t *testing.T) {
	h := newHarness()

	id := uuid.New()
	h.resources.rows[id] = &domain.Resource{ResourceInstanceID: id, GraphID: uuid.New()}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/resources/"+id.String(), nil)
	res := httptest.NewRecorder()

	h.e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	if h.resources.deleted != id {
		t.Fatalf("expected delete to be invoked for %s", id)
	}
}

func TestHandleTileSaveRequiresResource(t *testing.T) {
	h := newHarness()

	body, _ := json.Marshal(map[string]any{"nodegroupid": uuid.NewString()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tiles", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res := httptest.NewRecorder()

	h.e.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestHandleNodeValuesRequiresName(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resources/"+uuid.NewString()+"/node-values", nil)
	res := httptest.NewRecorder()

	h.e.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}
