package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/stelae/stelae"
	"github.com/stelae/stelae/internal/usecase"
)

// Every document kind maps to one Weaviate class. Objects carry the full
// document as a JSON blob plus flattened string properties for filtering.
var classByIndex = map[string]string{
	stelae.IndexResources:         "Resource",
	stelae.IndexTerms:             "Term",
	stelae.IndexResourceRelations: "ResourceRelation",
}

// namespace salts the deterministic object ids so re-indexing a document
// overwrites its previous object.
var namespace = uuid.MustParse("8c9e2f5a-1b6d-4e3c-9a7f-2d4b8e6c1a35")

type Engine struct {
	client *weaviate.Client
}

func NewEngine(scheme, host string) (*Engine, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Scheme: scheme,
		Host:   host,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{client: client}, nil
}

// EnsureSchema creates the document classes if they do not exist yet.
// Idempotent; safe to run on every startup.
func (e *Engine) EnsureSchema(ctx context.Context) error {
	for _, class := range classByIndex {
		if _, err := e.client.Schema().ClassGetter().WithClassName(class).Do(ctx); err == nil {
			continue
		}
		err := e.client.Schema().ClassCreator().WithClass(&models.Class{
			Class:      class,
			Vectorizer: "none",
			Properties: []*models.Property{
				{Name: "docId", DataType: []string{"text"}, Tokenization: "field"},
				{Name: "document", DataType: []string{"text"}},
			},
		}).Do(ctx)
		if err != nil {
			return fmt.Errorf("creating class %s: %w", class, err)
		}
	}
	return nil
}

func (e *Engine) IndexData(ctx context.Context, index, id string, body any) error {
	object, err := buildObject(index, id, body)
	if err != nil {
		return err
	}
	results, err := e.client.Batch().ObjectsBatcher().WithObjects(object).Do(ctx)
	if err != nil {
		return fmt.Errorf("indexing %s/%s: %w", index, id, err)
	}
	return firstBatchError(results)
}

func (e *Engine) BulkIndex(ctx context.Context, items []usecase.BulkItem) error {
	const batchSize = 100
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		objects := make([]*models.Object, 0, end-start)
		for _, item := range items[start:end] {
			object, err := buildObject(item.Index, item.DocumentID, item.Data)
			if err != nil {
				return err
			}
			objects = append(objects, object)
		}
		results, err := e.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return fmt.Errorf("bulk indexing: %w", err)
		}
		if err := firstBatchError(results); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, index, id string) error {
	class, err := className(index)
	if err != nil {
		return err
	}
	return e.client.Data().Deleter().
		WithClassName(class).
		WithID(objectID(index, id).String()).
		Do(ctx)
}

func (e *Engine) Search(ctx context.Context, index string, query usecase.SearchQuery) ([]usecase.SearchHit, int, error) {
	class, err := className(index)
	if err != nil {
		return nil, 0, err
	}
	where := buildFilter(query)

	get := e.client.GraphQL().Get().
		WithClassName(class).
		WithFields(graphql.Field{Name: "docId"}, graphql.Field{Name: "document"})
	if where != nil {
		get = get.WithWhere(where)
	}
	if query.Limit > 0 {
		get = get.WithLimit(query.Limit)
	}
	if query.Start > 0 {
		get = get.WithOffset(query.Start)
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", index, err)
	}
	if len(result.Errors) > 0 {
		return nil, 0, fmt.Errorf("querying %s: %s", index, result.Errors[0].Message)
	}
	hits := parseHits(result, class)

	total, err := e.count(ctx, class, where)
	if err != nil {
		total = len(hits)
	}
	return hits, total, nil
}

func (e *Engine) Get(ctx context.Context, index string, ids []string) ([]usecase.SearchHit, error) {
	hits, _, err := e.Search(ctx, index, usecase.SearchQuery{
		Terms: map[string][]string{"docId": ids},
	})
	return hits, err
}

func (e *Engine) count(ctx context.Context, class string, where *filters.WhereBuilder) (int, error) {
	agg := e.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(graphql.Field{
			Name:   "meta",
			Fields: []graphql.Field{{Name: "count"}},
		})
	if where != nil {
		agg = agg.WithWhere(where)
	}
	result, err := agg.Do(ctx)
	if err != nil {
		return 0, err
	}
	data, ok := result.Data["Aggregate"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate shape")
	}
	groups, ok := data[class].([]any)
	if !ok || len(groups) == 0 {
		return 0, nil
	}
	group, ok := groups[0].(map[string]any)
	if !ok {
		return 0, nil
	}
	meta, ok := group["meta"].(map[string]any)
	if !ok {
		return 0, nil
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, nil
	}
	return int(count), nil
}

// buildFilter turns the query into a where clause: Terms are ANDed, Should
// values are ORed, and the two levels combine with AND.
func buildFilter(query usecase.SearchQuery) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	for field, values := range query.Terms {
		operands = append(operands, anyOf(field, values))
	}
	if len(query.Should) > 0 {
		var should []*filters.WhereBuilder
		for field, values := range query.Should {
			should = append(should, anyOf(field, values))
		}
		if len(should) == 1 {
			operands = append(operands, should[0])
		} else {
			operands = append(operands, filters.Where().
				WithOperator(filters.Or).
				WithOperands(should))
		}
	}
	if len(operands) == 0 {
		return nil
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)
}

func anyOf(field string, values []string) *filters.WhereBuilder {
	if len(values) == 1 {
		return filters.Where().
			WithPath([]string{field}).
			WithOperator(filters.Equal).
			WithValueString(values[0])
	}
	operands := make([]*filters.WhereBuilder, 0, len(values))
	for _, value := range values {
		operands = append(operands, filters.Where().
			WithPath([]string{field}).
			WithOperator(filters.Equal).
			WithValueString(value))
	}
	return filters.Where().
		WithOperator(filters.Or).
		WithOperands(operands)
}

func buildObject(index, id string, body any) (*models.Object, error) {
	class, err := className(index)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s/%s: %w", index, id, err)
	}
	properties := map[string]any{
		"docId":    id,
		"document": string(raw),
	}
	// Flatten top-level scalars so they are filterable.
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		for key, value := range fields {
			switch v := value.(type) {
			case string:
				properties[key] = v
			case bool:
				properties[key] = v
			case float64:
				properties[key] = v
			}
		}
	}
	return &models.Object{
		Class:      class,
		ID:         strfmt.UUID(objectID(index, id).String()),
		Properties: properties,
	}, nil
}

func parseHits(result *models.GraphQLResponse, class string) []usecase.SearchHit {
	data, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	objects, ok := data[class].([]any)
	if !ok {
		return nil
	}
	hits := make([]usecase.SearchHit, 0, len(objects))
	for _, obj := range objects {
		fields, ok := obj.(map[string]any)
		if !ok {
			continue
		}
		hit := usecase.SearchHit{Source: map[string]any{}}
		if id, ok := fields["docId"].(string); ok {
			hit.ID = id
		}
		if doc, ok := fields["document"].(string); ok {
			json.Unmarshal([]byte(doc), &hit.Source)
		}
		hits = append(hits, hit)
	}
	return hits
}

func firstBatchError(results []models.ObjectsGetResponse) error {
	for _, obj := range results {
		if obj.Result == nil || obj.Result.Errors == nil {
			continue
		}
		for _, item := range obj.Result.Errors.Error {
			if item != nil {
				return fmt.Errorf("batch object rejected: %s", item.Message)
			}
		}
	}
	return nil
}

func className(index string) (string, error) {
	class, ok := classByIndex[index]
	if !ok {
		return "", fmt.Errorf("unknown index %q", index)
	}
	return class, nil
}

// objectID derives a stable object uuid from the index and document id, so
// writes with the same id overwrite instead of duplicating.
func objectID(index, id string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(index+"/"+id))
}
