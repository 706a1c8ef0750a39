package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/taskfields/field"
)

// Client is the subset of the DynamoDB API used by the Store.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store is a field.Store on DynamoDB.
type Store struct {
	client   Client
	config   Config
	registry *Registry
	now      func() time.Time
}

var _ field.Store = (*Store)(nil)

// New creates a new Store instance with the default registry.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{
		client:   client,
		config:   config,
		registry: DefaultRegistry(config),
		now:      time.Now,
	}
}

// NewWithRegistry creates a new Store instance with a relationship registry.
func NewWithRegistry(client Client, config Config, registry *Registry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// Registry returns the relationship registry.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Get retrieves an entity by key with a consistent read, returning
// ErrNotFound if deleted or missing.
func (s *Store) Get(ctx context.Context, table string, key PK) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	if expiredAt(result.Item, s.now()) {
		return nil, ErrNotFound
	}

	return unmarshalItem(result.Item), nil
}

// Query queries entities with automatic TTL filtering unless
// input.IncludeDeleted is set.
func (s *Store) Query(ctx context.Context, input QueryInput) ([]*Item, error) {
	filterExpr := input.FilterExpression
	exprNames := input.ExpressionAttributeNames
	exprValues := input.ExpressionAttributeValues
	if !input.IncludeDeleted {
		filterExpr, exprNames, exprValues = liveOnly(filterExpr, exprNames, exprValues, s.now())
	}

	queryInput := &dynamodb.QueryInput{
		TableName:              aws.String(input.TableName),
		KeyConditionExpression: aws.String(input.KeyConditionExpression),
	}
	if filterExpr != "" {
		queryInput.FilterExpression = aws.String(filterExpr)
	}
	if len(exprNames) > 0 {
		queryInput.ExpressionAttributeNames = exprNames
	}
	if len(exprValues) > 0 {
		queryInput.ExpressionAttributeValues = exprValues
	}
	if input.IndexName != "" {
		queryInput.IndexName = aws.String(input.IndexName)
	} else if input.ConsistentRead {
		queryInput.ConsistentRead = aws.Bool(true)
	}
	if input.Limit > 0 {
		queryInput.Limit = aws.Int32(input.Limit)
	}
	if input.ScanIndexForward != nil {
		queryInput.ScanIndexForward = input.ScanIndexForward
	}

	// Paginate through all results
	var items []*Item
	paginator := dynamodb.NewQueryPaginator(s.client, queryInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			items = append(items, unmarshalItem(raw))
		}
	}

	return items, nil
}

// queryByHash returns the live items of table whose hash key attr equals value.
func (s *Store) queryByHash(ctx context.Context, table, attr, value string) ([]*Item, error) {
	return s.Query(ctx, QueryInput{
		TableName:                 table,
		KeyConditionExpression:    "#pk = :pk",
		ExpressionAttributeNames:  map[string]string{"#pk": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str(value)},
		ConsistentRead:            true,
	})
}

// QueryChildren returns the children of an entity in every registered
// relationship, including already deleted ones. The cascade handler uses it
// to propagate TTL.
func (s *Store) QueryChildren(ctx context.Context, parentRef string) ([]ChildRef, error) {
	parentType, parentID, ok := ParseEntityRef(parentRef)
	if !ok {
		return nil, fmt.Errorf("invalid entity ref %q", parentRef)
	}

	rels := s.registry.ChildrenOf(parentType)
	found := make([][]ChildRef, len(rels))

	g, ctx := errgroup.WithContext(ctx)
	for i, rel := range rels {
		g.Go(func() error {
			items, err := s.Query(ctx, QueryInput{
				TableName:                 rel.ChildTableName,
				IndexName:                 rel.IndexName,
				KeyConditionExpression:    "#pk = :pk",
				ExpressionAttributeNames:  map[string]string{"#pk": rel.ParentKeyAttr},
				ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str(parentID)},
				IncludeDeleted:            true,
			})
			if err != nil {
				return fmt.Errorf("query %s children: %w", rel.ChildType, err)
			}
			for _, item := range items {
				found[i] = append(found[i], childRef(rel, item))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(found...), nil
}

func childRef(rel Relationship, item *Item) ChildRef {
	ref := ChildRef{
		Ref:       item.EntityRef,
		TableName: rel.ChildTableName,
		Key:       make(PK, len(rel.KeyAttrs)),
	}
	for _, attr := range rel.KeyAttrs {
		if v, ok := item.Raw[attr]; ok {
			ref.Key[attr] = v
		}
	}
	if ref.Ref == "" {
		if v, ok := item.Raw["id"].(*types.AttributeValueMemberS); ok {
			ref.Ref = EntityRef(rel.ChildType, v.Value)
		}
	}
	return ref
}

// SetTTLByKey sets TTL on an entity by table and key.
// Used by cascade delete to propagate TTL to children.
func (s *Store) SetTTLByKey(ctx context.Context, table string, key PK, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 key,
		UpdateExpression:    aws.String("SET #ttl = :ttl, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     "ttl",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})

	// Ignore condition failure - already has TTL
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// RunInTx implements field.Store. Writes made through tx are buffered and
// committed with a single TransactWriteItems call after fn returns.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx field.Tx) error) error {
	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit(ctx)
}

// FindField implements field.Store.
func (s *Store) FindField(ctx context.Context, productID, id string) (*field.Field, error) {
	fi, err := s.getField(ctx, productID, id)
	if err != nil {
		return nil, err
	}
	return s.loadTree(ctx, fi)
}

// ListFields implements field.Store.
func (s *Store) ListFields(ctx context.Context, productID string) ([]field.Field, error) {
	items, err := s.queryByHash(ctx, s.config.FieldsTable, "product_id", productID)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}

	fields := make([]field.Field, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ReadConcurrency)
	for i, item := range items {
		g.Go(func() error {
			var fi fieldItem
			if err := attributevalue.UnmarshalMap(item.Raw, &fi); err != nil {
				return fmt.Errorf("unmarshal field: %w", err)
			}
			f, err := s.loadTree(gctx, &fi)
			if err != nil {
				return err
			}
			fields[i] = *f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(fields, func(a, b field.Field) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return fields, nil
}

// ListTaskValues implements field.Store. Bindings whose field is deleted
// but not yet reached by the cascade are left out.
func (s *Store) ListTaskValues(ctx context.Context, taskIDs ...string) ([]field.TaskValue, error) {
	perTask := make([][]taskValueItem, len(taskIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ReadConcurrency)
	for i, taskID := range taskIDs {
		g.Go(func() error {
			items, err := s.queryTaskValues(gctx, taskID)
			perTask[i] = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type fieldKey struct{ productID, id string }
	live := make(map[fieldKey]bool)
	for _, items := range perTask {
		for _, it := range items {
			live[fieldKey{it.ProductID, it.FieldID}] = false
		}
	}

	keys := make([]fieldKey, 0, len(live))
	for k := range live {
		keys = append(keys, k)
	}
	alive := make([]bool, len(keys))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.config.ReadConcurrency)
	for i, k := range keys {
		g.Go(func() error {
			_, err := s.getField(gctx, k.productID, k.id)
			switch {
			case err == nil:
				alive[i] = true
			case field.IsNotFound(err):
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, k := range keys {
		live[k] = alive[i]
	}

	var out []field.TaskValue
	for _, items := range perTask {
		for _, it := range items {
			if live[fieldKey{it.ProductID, it.FieldID}] {
				out = append(out, it.toTaskValue())
			}
		}
	}
	return out, nil
}

func (s *Store) queryTaskValues(ctx context.Context, taskID string) ([]taskValueItem, error) {
	items, err := s.queryByHash(ctx, s.config.TaskValuesTable, "task_id", taskID)
	if err != nil {
		return nil, fmt.Errorf("query task values: %w", err)
	}
	out := make([]taskValueItem, 0, len(items))
	for _, item := range items {
		var tv taskValueItem
		if err := attributevalue.UnmarshalMap(item.Raw, &tv); err != nil {
			return nil, fmt.Errorf("unmarshal task value: %w", err)
		}
		out = append(out, tv)
	}
	return out, nil
}

// getField loads the live field item.
func (s *Store) getField(ctx context.Context, productID, id string) (*fieldItem, error) {
	item, err := s.Get(ctx, s.config.FieldsTable, fieldEntity{productID: productID, id: id}.GetKey())
	if errors.Is(err, ErrNotFound) {
		return nil, &field.NotFoundError{Entity: TypeField, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get field: %w", err)
	}
	var fi fieldItem
	if err := attributevalue.UnmarshalMap(item.Raw, &fi); err != nil {
		return nil, fmt.Errorf("unmarshal field: %w", err)
	}
	return &fi, nil
}

// loadTree loads the live values of fi and their live properties.
func (s *Store) loadTree(ctx context.Context, fi *fieldItem) (*field.Field, error) {
	f, err := fi.toField()
	if err != nil {
		return nil, err
	}

	items, err := s.queryByHash(ctx, s.config.ValuesTable, "field_id", fi.ID)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}

	f.Values = make([]field.Value, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ReadConcurrency)
	for i, item := range items {
		g.Go(func() error {
			var vi valueItem
			if err := attributevalue.UnmarshalMap(item.Raw, &vi); err != nil {
				return fmt.Errorf("unmarshal value: %w", err)
			}
			v := vi.toValue()
			props, err := s.loadProperties(gctx, vi.ID)
			if err != nil {
				return err
			}
			v.Properties = props
			f.Values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(f.Values, func(a, b field.Value) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return f, nil
}

func (s *Store) loadProperties(ctx context.Context, valueID string) ([]field.Property, error) {
	items, err := s.queryByHash(ctx, s.config.PropertiesTable, "value_id", valueID)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	props := make([]field.Property, 0, len(items))
	for _, item := range items {
		var pi propertyItem
		if err := attributevalue.UnmarshalMap(item.Raw, &pi); err != nil {
			return nil, fmt.Errorf("unmarshal property: %w", err)
		}
		props = append(props, pi.toProperty())
	}
	slices.SortFunc(props, func(a, b field.Property) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return props, nil
}

func (fi *fieldItem) toField() (*field.Field, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fi.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("field %s: parse created_at: %w", fi.ID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fi.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("field %s: parse updated_at: %w", fi.ID, err)
	}
	return &field.Field{
		ID:        fi.ID,
		ProductID: fi.ProductID,
		Name:      fi.Name,
		Type:      fi.Type,
		Values:    []field.Value{},
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (vi *valueItem) toValue() field.Value {
	return field.Value{
		ID:         vi.ID,
		FieldID:    vi.FieldID,
		Title:      vi.Title,
		Position:   vi.Position,
		Properties: []field.Property{},
	}
}

func (pi *propertyItem) toProperty() field.Property {
	return field.Property{
		ID:       pi.ID,
		ValueID:  pi.ValueID,
		Name:     pi.Name,
		Value:    pi.Value,
		Position: pi.Position,
	}
}

func (ti *taskValueItem) toTaskValue() field.TaskValue {
	return field.TaskValue{
		ID:      ti.ID,
		TaskID:  ti.TaskID,
		FieldID: ti.FieldID,
		Value:   ti.Value,
	}
}

// unmarshalItem converts a DynamoDB item to an Item struct.
func unmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}

	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["created_at"].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw["updated_at"].(*types.AttributeValueMemberS); ok {
		item.UpdatedAt = v.Value
	}
	if v, ok := raw["entity_ref"].(*types.AttributeValueMemberS); ok {
		item.EntityRef = v.Value
	}
	if v, ok := raw["parent_ref"].(*types.AttributeValueMemberS); ok {
		item.ParentRef = v.Value
	}

	return item
}
