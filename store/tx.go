package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/taskfields/field"
)

// conditionKind tells which error a failed condition on an action maps to.
type conditionKind int

const (
	condNone conditionKind = iota
	condParent
	condNotExists
	condVersion
)

// tx buffers the writes of one field.Tx and commits them atomically.
//
// Reads go straight to the table. Child items of soft-deleted fields and
// values are left for the stream cascade; reads only descend from live
// parents, so they never observe them.
type tx struct {
	s        *Store
	now      time.Time
	items    []types.TransactWriteItem
	kinds    []conditionKind
	versions map[string]int64
	checked  map[string]bool
}

var _ field.Tx = (*tx)(nil)

func newTx(s *Store) *tx {
	return &tx{
		s:        s,
		now:      s.now(),
		versions: make(map[string]int64),
		checked:  make(map[string]bool),
	}
}

func (t *tx) add(item types.TransactWriteItem, kind conditionKind) {
	t.items = append(t.items, item)
	t.kinds = append(t.kinds, kind)
}

func (t *tx) timestamp() string {
	return t.now.UTC().Format(time.RFC3339Nano)
}

func (t *tx) commit(ctx context.Context) error {
	if len(t.items) == 0 {
		return nil
	}
	if len(t.items) > t.s.config.MaxTransactItems {
		return fmt.Errorf("%w: %d actions, limit %d", ErrTransactionTooLarge, len(t.items), t.s.config.MaxTransactItems)
	}

	_, err := t.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: t.items,
	})
	return mapTransactionError(err, t.kinds)
}

func (t *tx) LockField(ctx context.Context, productID, id string) (*field.Field, error) {
	fi, err := t.s.getField(ctx, productID, id)
	if err != nil {
		return nil, err
	}
	t.versions[fi.ID] = fi.Version
	return t.s.loadTree(ctx, fi)
}

func (t *tx) CreateField(_ context.Context, f *field.Field) error {
	f.ID = t.s.config.NewID()
	e := fieldEntity{table: t.s.config.FieldsTable, productID: f.ProductID, id: f.ID}
	err := t.put(e, fieldItem{
		ProductID: f.ProductID,
		ID:        f.ID,
		Name:      f.Name,
		Type:      f.Type,
		EntityRef: e.EntityRef(),
		Version:   1,
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: f.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	for i := range f.Values {
		f.Values[i].FieldID = f.ID
		if err := t.putValue(&f.Values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) UpdateField(_ context.Context, f *field.Field) error {
	expected, ok := t.versions[f.ID]
	if !ok {
		return fmt.Errorf("update field %s: %w", f.ID, ErrNotLocked)
	}

	e := fieldEntity{table: t.s.config.FieldsTable, productID: f.ProductID, id: f.ID}
	t.add(types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(e.TableName()),
			Key:                 e.GetKey(),
			UpdateExpression:    aws.String("SET #name = :name, #type = :type, #updated_at = :updated_at, #version = #version + :one"),
			ConditionExpression: aws.String("#version = :expected_version AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames: map[string]string{
				"#name":       "name",
				"#type":       "type",
				"#updated_at": "updated_at",
				"#version":    "version",
				"#ttl":        "ttl",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":name":             str(f.Name),
				":type":             str(f.Type),
				":updated_at":       str(f.UpdatedAt.UTC().Format(time.RFC3339Nano)),
				":one":              &types.AttributeValueMemberN{Value: "1"},
				":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
			},
		},
	}, condVersion)
	return nil
}

// DestroyField soft-deletes the field. Its values, their properties and the
// task values bound to it are expired by the stream cascade.
func (t *tx) DestroyField(_ context.Context, f *field.Field) error {
	expected, ok := t.versions[f.ID]
	if !ok {
		return fmt.Errorf("destroy field %s: %w", f.ID, ErrNotLocked)
	}

	values := stampValues(t.now)
	values[":expected_version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)}

	e := fieldEntity{table: t.s.config.FieldsTable, productID: f.ProductID, id: f.ID}
	t.add(types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(e.TableName()),
			Key:                       e.GetKey(),
			UpdateExpression:          aws.String(stampTTLExpr),
			ConditionExpression:       aws.String("#version = :expected_version AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames:  stampNames(),
			ExpressionAttributeValues: values,
		},
	}, condVersion)
	return nil
}

func (t *tx) CreateValue(_ context.Context, v *field.Value) error {
	return t.putValue(v)
}

func (t *tx) UpdateValue(_ context.Context, v *field.Value) error {
	e := valueEntity{table: t.s.config.ValuesTable, fieldID: v.FieldID, id: v.ID}
	t.add(types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(e.TableName()),
			Key:                 e.GetKey(),
			UpdateExpression:    aws.String("SET #title = :title, #position = :position, #updated_at = :updated_at, #version = #version + :one"),
			ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames: map[string]string{
				"#title":      "title",
				"#position":   "position",
				"#updated_at": "updated_at",
				"#version":    "version",
				"#ttl":        "ttl",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":title":      str(v.Title),
				":position":   &types.AttributeValueMemberN{Value: strconv.Itoa(v.Position)},
				":updated_at": str(t.timestamp()),
				":one":        &types.AttributeValueMemberN{Value: "1"},
			},
		},
	}, condVersion)
	return nil
}

// DestroyValues soft-deletes the values. Their properties are expired by
// the stream cascade.
func (t *tx) DestroyValues(_ context.Context, values []field.Value) error {
	for _, v := range values {
		t.softDelete(valueEntity{table: t.s.config.ValuesTable, fieldID: v.FieldID, id: v.ID})
	}
	return nil
}

func (t *tx) CreateProperties(_ context.Context, props []field.Property) error {
	for i := range props {
		if err := t.putProperty(&props[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) DestroyProperties(_ context.Context, props []field.Property) error {
	for _, p := range props {
		t.softDelete(propertyEntity{table: t.s.config.PropertiesTable, valueID: p.ValueID, id: p.ID})
	}
	return nil
}

// LockTaskValues reads the task's live bindings. DynamoDB has no row locks,
// so DestroyTaskValues conditions each delete on the binding still being
// live instead.
func (t *tx) LockTaskValues(ctx context.Context, taskID string) ([]field.TaskValue, error) {
	items, err := t.s.queryTaskValues(ctx, taskID)
	if err != nil {
		return nil, err
	}
	out := make([]field.TaskValue, 0, len(items))
	for _, it := range items {
		out = append(out, it.toTaskValue())
	}
	return out, nil
}

func (t *tx) CreateTaskValues(_ context.Context, productID string, values []field.TaskValue) error {
	for i := range values {
		v := &values[i]
		v.ID = t.s.config.NewID()
		e := taskValueEntity{
			table:       t.s.config.TaskValuesTable,
			fieldsTable: t.s.config.FieldsTable,
			taskID:      v.TaskID,
			id:          v.ID,
			productID:   productID,
			fieldID:     v.FieldID,
		}
		if !t.checked[v.FieldID] {
			t.checked[v.FieldID] = true
			t.checkParent(e)
		}
		err := t.put(e, taskValueItem{
			TaskID:    v.TaskID,
			ID:        v.ID,
			ProductID: productID,
			FieldID:   v.FieldID,
			Value:     v.Value,
			EntityRef: e.EntityRef(),
			ParentRef: e.ParentRef(),
			Version:   1,
			CreatedAt: t.timestamp(),
			UpdatedAt: t.timestamp(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) DestroyTaskValues(_ context.Context, values []field.TaskValue) error {
	for _, v := range values {
		t.softDeleteLive(taskValueEntity{table: t.s.config.TaskValuesTable, taskID: v.TaskID, id: v.ID})
	}
	return nil
}

func (t *tx) putValue(v *field.Value) error {
	v.ID = t.s.config.NewID()
	e := valueEntity{table: t.s.config.ValuesTable, fieldID: v.FieldID, id: v.ID}
	err := t.put(e, valueItem{
		FieldID:   v.FieldID,
		ID:        v.ID,
		Title:     v.Title,
		Position:  v.Position,
		EntityRef: e.EntityRef(),
		ParentRef: e.ParentRef(),
		Version:   1,
		CreatedAt: t.timestamp(),
		UpdatedAt: t.timestamp(),
	})
	if err != nil {
		return err
	}

	for i := range v.Properties {
		v.Properties[i].ValueID = v.ID
		if err := t.putProperty(&v.Properties[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) putProperty(p *field.Property) error {
	p.ID = t.s.config.NewID()
	e := propertyEntity{table: t.s.config.PropertiesTable, valueID: p.ValueID, id: p.ID}
	return t.put(e, propertyItem{
		ValueID:   p.ValueID,
		ID:        p.ID,
		Name:      p.Name,
		Value:     p.Value,
		Position:  p.Position,
		EntityRef: e.EntityRef(),
		ParentRef: e.ParentRef(),
		Version:   1,
		CreatedAt: t.timestamp(),
		UpdatedAt: t.timestamp(),
	})
}

// put buffers a create of entity e, failing if the key is taken.
func (t *tx) put(e Entity, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.EntityType(), err)
	}
	t.add(types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(e.TableName()),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	}, condNotExists)
	return nil
}

// checkParent buffers the parent existence check of e, if it has one.
func (t *tx) checkParent(e ParentChecker) {
	check := e.ParentCheck()
	if check == nil {
		return
	}
	condExpr := check.ConditionExpr
	if condExpr == "" {
		condExpr = parentLiveCondition
	}
	t.add(types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(check.TableName),
			Key:                       check.Key,
			ConditionExpression:       aws.String(condExpr),
			ExpressionAttributeNames:  ttlNames(),
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": unixValue(t.now)},
		},
	}, condParent)
}

// softDelete buffers a TTL write on e. Deleting an already deleted item is a no-op.
func (t *tx) softDelete(e Entity) {
	t.add(types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(e.TableName()),
			Key:                       e.GetKey(),
			UpdateExpression:          aws.String(softDeleteExpr),
			ExpressionAttributeNames:  stampNames(),
			ExpressionAttributeValues: stampValues(t.now),
		},
	}, condNone)
}

// softDeleteLive buffers a TTL write on e that fails if e is already deleted.
func (t *tx) softDeleteLive(e Entity) {
	t.add(types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(e.TableName()),
			Key:                       e.GetKey(),
			UpdateExpression:          aws.String(stampTTLExpr),
			ConditionExpression:       aws.String("attribute_exists(id) AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames:  stampNames(),
			ExpressionAttributeValues: stampValues(t.now),
		},
	}, condVersion)
}

// mapTransactionError maps DynamoDB transaction errors using the condition
// kind of the cancelled action.
func mapTransactionError(err error, kinds []conditionKind) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed":
				if i < len(kinds) {
					switch kinds[i] {
					case condParent:
						return ErrParentNotFound
					case condNotExists:
						return ErrAlreadyExists
					}
				}
				return ErrConcurrentModification
			case "TransactionConflict":
				return ErrConcurrentModification
			}
		}
	}

	return err
}
