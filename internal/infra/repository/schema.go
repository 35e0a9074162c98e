package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/stelae/stelae/internal/domain"
	"github.com/stelae/stelae/internal/infra/database/models"
)

// SchemaRepository reads graph/node/card definitions. Definitions change
// rarely relative to tile traffic, so reads go through a short TTL cache.
type SchemaRepository struct {
	db    *gorm.DB
	cache *gocache.Cache
}

func NewSchemaRepository(db *gorm.DB) *SchemaRepository {
	return &SchemaRepository{
		db:    db,
		cache: gocache.New(30*time.Second, time.Minute),
	}
}

func (r *SchemaRepository) Graph(ctx context.Context, id uuid.UUID) (*domain.Graph, error) {
	key := "graph:" + id.String()
	if cached, ok := r.cache.Get(key); ok {
		graph := cached.(domain.Graph)
		return &graph, nil
	}
	var row models.Graph
	err := conn(ctx, r.db).
		Where("graph_id = ?", id).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "graph"}
	}
	if err != nil {
		return nil, err
	}
	graph := domain.Graph{
		GraphID:    row.GraphID,
		Name:       row.Name,
		IsActive:   row.IsActive,
		IsResource: row.IsResource,
	}
	r.cache.SetDefault(key, graph)
	return &graph, nil
}

func (r *SchemaRepository) Node(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	key := "node:" + id.String()
	if cached, ok := r.cache.Get(key); ok {
		node := cached.(domain.Node)
		return &node, nil
	}
	var row models.Node
	err := conn(ctx, r.db).
		Where("node_id = ?", id).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "node"}
	}
	if err != nil {
		return nil, err
	}
	node, err := unmarshalNode(row)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, *node)
	return node, nil
}

func (r *SchemaRepository) NodesByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) ([]domain.Node, error) {
	key := "nodegroup:" + nodeGroupID.String()
	if cached, ok := r.cache.Get(key); ok {
		return cached.([]domain.Node), nil
	}
	var rows []models.Node
	err := conn(ctx, r.db).
		Where("node_group_id = ?", nodeGroupID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	nodes, err := unmarshalNodes(rows)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, nodes)
	return nodes, nil
}

func (r *SchemaRepository) NodesByName(ctx context.Context, graphID uuid.UUID, name string) ([]domain.Node, error) {
	var rows []models.Node
	err := conn(ctx, r.db).
		Where("graph_id = ? AND name = ?", graphID, name).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return unmarshalNodes(rows)
}

func (r *SchemaRepository) NodeDatatypes(ctx context.Context) (map[string]string, error) {
	const key = "nodedatatypes"
	if cached, ok := r.cache.Get(key); ok {
		return cached.(map[string]string), nil
	}
	var rows []models.Node
	err := conn(ctx, r.db).
		Select("node_id", "datatype").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.NodeID.String()] = row.Datatype
	}
	r.cache.SetDefault(key, out)
	return out, nil
}

func (r *SchemaRepository) RootOntologyClass(ctx context.Context, graphID uuid.UUID) (string, error) {
	var row models.Node
	err := conn(ctx, r.db).
		Where("graph_id = ? AND is_top_node = ?", graphID, true).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.OntologyClass, nil
}

func (r *SchemaRepository) CardByNodeGroup(ctx context.Context, nodeGroupID uuid.UUID) (*domain.Card, error) {
	var row models.Card
	err := conn(ctx, r.db).
		Where("node_group_id = ?", nodeGroupID).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "card"}
	}
	if err != nil {
		return nil, err
	}
	return &domain.Card{
		CardID:      row.CardID,
		NodeGroupID: row.NodeGroupID,
		Name:        row.Name,
	}, nil
}

func (r *SchemaRepository) ConstraintsByCard(ctx context.Context, cardID uuid.UUID) ([]domain.Constraint, error) {
	var rows []models.CardConstraint
	err := conn(ctx, r.db).
		Where("card_id = ?", cardID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	constraints := make([]domain.Constraint, 0, len(rows))
	for _, row := range rows {
		constraint := domain.Constraint{
			ConstraintID:         row.ConstraintID,
			CardID:               row.CardID,
			UniqueToAllInstances: row.UniqueToAllInstances,
		}
		if row.Nodes != "" {
			if err := json.Unmarshal([]byte(row.Nodes), &constraint.Nodes); err != nil {
				return nil, err
			}
		}
		constraints = append(constraints, constraint)
	}
	return constraints, nil
}

func (r *SchemaRepository) WidgetLabel(ctx context.Context, cardID, nodeID uuid.UUID) (string, error) {
	var row models.CardNodeWidget
	err := conn(ctx, r.db).
		Where("card_id = ? AND node_id = ?", cardID, nodeID).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", domain.NotFoundError{Resource: "widget"}
	}
	if err != nil {
		return "", err
	}
	return row.Label, nil
}

func (r *SchemaRepository) DescriptorConfigs(ctx context.Context, graphID uuid.UUID) ([]domain.DescriptorConfig, error) {
	var rows []models.DescriptorConfig
	err := conn(ctx, r.db).
		Where("graph_id = ?", graphID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	configs := make([]domain.DescriptorConfig, 0, len(rows))
	for _, row := range rows {
		configs = append(configs, domain.DescriptorConfig{
			GraphID:     row.GraphID,
			NodeGroupID: row.NodeGroupID,
			Name:        row.Name,
			Description: row.Description,
			MapPopup:    row.MapPopup,
		})
	}
	return configs, nil
}

func unmarshalNode(row models.Node) (*domain.Node, error) {
	node := &domain.Node{
		NodeID:        row.NodeID,
		GraphID:       row.GraphID,
		NodeGroupID:   row.NodeGroupID,
		Name:          row.Name,
		Datatype:      row.Datatype,
		IsRequired:    row.IsRequired,
		IsTopNode:     row.IsTopNode,
		OntologyClass: row.OntologyClass,
	}
	if row.Config != "" {
		if err := json.Unmarshal([]byte(row.Config), &node.Config); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func unmarshalNodes(rows []models.Node) ([]domain.Node, error) {
	nodes := make([]domain.Node, 0, len(rows))
	for _, row := range rows {
		node, err := unmarshalNode(row)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, nil
}
