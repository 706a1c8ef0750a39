package store

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Entity is the base interface for all storable types.
type Entity interface {
	// TableName returns the DynamoDB table name for this entity type.
	TableName() string

	// GetKey returns the primary key for this entity.
	GetKey() PK

	// EntityRef returns the type-qualified reference (e.g., "field#uuid").
	EntityRef() string

	// EntityType returns the entity type name (e.g., "field").
	EntityType() string
}

// ParentChecker is implemented by entities that have a parent.
type ParentChecker interface {
	// ParentCheck returns the condition check for parent validation.
	// Returns nil when parent validation should be skipped.
	ParentCheck() *ConditionCheck

	// ParentRef returns the parent's entity reference (e.g., "field#uuid").
	ParentRef() string
}

// ConditionCheck defines a parent existence check for transactions.
type ConditionCheck struct {
	TableName string
	Key       PK

	// ConditionExpr is an optional custom condition expression.
	// If empty, the parent must exist and be live.
	ConditionExpr string
}

// Entity types, used as the prefix of entity references.
const (
	TypeField     = "field"
	TypeValue     = "value"
	TypeProperty  = "property"
	TypeTaskValue = "task_value"
)

// EntityRef builds a type-qualified reference.
func EntityRef(entityType, id string) string {
	return entityType + "#" + id
}

// ParseEntityRef splits a reference built by EntityRef.
func ParseEntityRef(ref string) (entityType, id string, ok bool) {
	return strings.Cut(ref, "#")
}

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

type fieldEntity struct {
	table     string
	productID string
	id        string
}

func (e fieldEntity) TableName() string  { return e.table }
func (e fieldEntity) EntityType() string { return TypeField }
func (e fieldEntity) EntityRef() string  { return EntityRef(TypeField, e.id) }
func (e fieldEntity) GetKey() PK {
	return PK{"product_id": str(e.productID), "id": str(e.id)}
}

type valueEntity struct {
	table   string
	fieldID string
	id      string
}

func (e valueEntity) TableName() string  { return e.table }
func (e valueEntity) EntityType() string { return TypeValue }
func (e valueEntity) EntityRef() string  { return EntityRef(TypeValue, e.id) }
func (e valueEntity) GetKey() PK {
	return PK{"field_id": str(e.fieldID), "id": str(e.id)}
}

// The field is written in the same transaction, and DynamoDB rejects two
// actions on one item, so values carry no parent check.
func (e valueEntity) ParentCheck() *ConditionCheck { return nil }
func (e valueEntity) ParentRef() string            { return EntityRef(TypeField, e.fieldID) }

type propertyEntity struct {
	table   string
	valueID string
	id      string
}

func (e propertyEntity) TableName() string  { return e.table }
func (e propertyEntity) EntityType() string { return TypeProperty }
func (e propertyEntity) EntityRef() string  { return EntityRef(TypeProperty, e.id) }
func (e propertyEntity) GetKey() PK {
	return PK{"value_id": str(e.valueID), "id": str(e.id)}
}

func (e propertyEntity) ParentCheck() *ConditionCheck { return nil }
func (e propertyEntity) ParentRef() string            { return EntityRef(TypeValue, e.valueID) }

type taskValueEntity struct {
	table       string
	fieldsTable string
	taskID      string
	id          string
	productID   string
	fieldID     string
}

func (e taskValueEntity) TableName() string  { return e.table }
func (e taskValueEntity) EntityType() string { return TypeTaskValue }
func (e taskValueEntity) EntityRef() string  { return EntityRef(TypeTaskValue, e.id) }
func (e taskValueEntity) GetKey() PK {
	return PK{"task_id": str(e.taskID), "id": str(e.id)}
}

func (e taskValueEntity) ParentRef() string { return EntityRef(TypeField, e.fieldID) }
func (e taskValueEntity) ParentCheck() *ConditionCheck {
	return &ConditionCheck{
		TableName: e.fieldsTable,
		Key:       fieldEntity{productID: e.productID, id: e.fieldID}.GetKey(),
	}
}

// Stored item shapes. Managed attributes (entity_ref, parent_ref, version,
// timestamps, ttl) live next to the domain attributes.

type fieldItem struct {
	ProductID string `dynamodbav:"product_id"`
	ID        string `dynamodbav:"id"`
	Name      string `dynamodbav:"name"`
	Type      string `dynamodbav:"type"`
	EntityRef string `dynamodbav:"entity_ref"`
	Version   int64  `dynamodbav:"version"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	TTL       int64  `dynamodbav:"ttl,omitempty"`
}

type valueItem struct {
	FieldID   string `dynamodbav:"field_id"`
	ID        string `dynamodbav:"id"`
	Title     string `dynamodbav:"title"`
	Position  int    `dynamodbav:"position"`
	EntityRef string `dynamodbav:"entity_ref"`
	ParentRef string `dynamodbav:"parent_ref"`
	Version   int64  `dynamodbav:"version"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	TTL       int64  `dynamodbav:"ttl,omitempty"`
}

type propertyItem struct {
	ValueID   string `dynamodbav:"value_id"`
	ID        string `dynamodbav:"id"`
	Name      string `dynamodbav:"name"`
	Value     string `dynamodbav:"value"`
	Position  int    `dynamodbav:"position"`
	EntityRef string `dynamodbav:"entity_ref"`
	ParentRef string `dynamodbav:"parent_ref"`
	Version   int64  `dynamodbav:"version"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	TTL       int64  `dynamodbav:"ttl,omitempty"`
}

type taskValueItem struct {
	TaskID    string `dynamodbav:"task_id"`
	ID        string `dynamodbav:"id"`
	ProductID string `dynamodbav:"product_id"`
	FieldID   string `dynamodbav:"field_id"`
	Value     string `dynamodbav:"value"`
	EntityRef string `dynamodbav:"entity_ref"`
	ParentRef string `dynamodbav:"parent_ref"`
	Version   int64  `dynamodbav:"version"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	TTL       int64  `dynamodbav:"ttl,omitempty"`
}

// Item represents a retrieved DynamoDB item with common fields.
type Item struct {
	// Raw is the raw DynamoDB item.
	Raw map[string]types.AttributeValue

	// Version is the optimistic lock version.
	Version int64

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string

	// EntityRef is the type-qualified entity reference.
	EntityRef string

	// ParentRef is the parent's entity reference (empty for fields).
	ParentRef string
}

// ChildRef identifies a child item found through the registry.
type ChildRef struct {
	// Ref is the child's entity reference.
	Ref string

	// TableName is the DynamoDB table containing the child.
	TableName string

	// Key is the primary key to locate the child.
	Key PK
}

// QueryInput defines parameters for querying entities.
type QueryInput struct {
	// TableName is the DynamoDB table to query.
	TableName string

	// IndexName is the optional GSI/LSI to query.
	IndexName string

	// KeyConditionExpression is the DynamoDB key condition.
	KeyConditionExpression string

	// FilterExpression is an optional filter (TTL filter is automatically merged).
	FilterExpression string

	// ExpressionAttributeNames maps expression attribute name placeholders.
	ExpressionAttributeNames map[string]string

	// ExpressionAttributeValues maps expression attribute value placeholders.
	ExpressionAttributeValues map[string]types.AttributeValue

	// Limit is the maximum number of items to return (0 = no limit).
	Limit int32

	// ScanIndexForward determines sort order (true = ascending, false = descending).
	ScanIndexForward *bool

	// ConsistentRead requests strongly consistent reads. Not supported on GSIs.
	ConsistentRead bool

	// IncludeDeleted skips the TTL filter.
	IncludeDeleted bool
}
