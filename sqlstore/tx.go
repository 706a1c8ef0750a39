package sqlstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jacentio/taskfields/field"
)

// tx implements field.Tx on a database transaction.
type tx struct {
	db     *gorm.DB
	config Config
}

var _ field.Tx = (*tx)(nil)

// conn scopes the transaction to ctx.
func (t *tx) conn(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx)
}

func (t *tx) LockField(ctx context.Context, productID, id string) (*field.Field, error) {
	return findField(t.locking(t.conn(ctx)), productID, id)
}

// locking adds a row lock to the next SELECT. SQLite has none.
func (t *tx) locking(db *gorm.DB) *gorm.DB {
	if t.config.Dialect == SQLite {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *tx) CreateField(ctx context.Context, f *field.Field) error {
	f.ID = t.config.NewID()
	m := newFieldModel(f)
	if err := t.conn(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		return fmt.Errorf("insert field: %w", err)
	}

	if len(f.Values) == 0 {
		return nil
	}

	var props []field.Property
	rows := make([]valueModel, 0, len(f.Values))
	for i := range f.Values {
		v := &f.Values[i]
		t.assignValueIDs(f.ID, v)
		rows = append(rows, newValueModel(v))
		props = append(props, v.Properties...)
	}
	if err := t.conn(ctx).Omit(clause.Associations).CreateInBatches(&rows, t.config.BatchSize).Error; err != nil {
		return fmt.Errorf("insert values: %w", err)
	}
	return t.insertProperties(ctx, props)
}

func (t *tx) UpdateField(ctx context.Context, f *field.Field) error {
	err := t.conn(ctx).Model(&fieldModel{ID: f.ID}).Updates(map[string]any{
		"name":       f.Name,
		"type":       f.Type,
		"updated_at": f.UpdatedAt.UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("update field: %w", err)
	}
	return nil
}

// DestroyField deletes the field row. Foreign keys cascade to its values,
// their properties and its task values.
func (t *tx) DestroyField(ctx context.Context, f *field.Field) error {
	if err := t.conn(ctx).Delete(&fieldModel{ID: f.ID}).Error; err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	return nil
}

func (t *tx) CreateValue(ctx context.Context, v *field.Value) error {
	t.assignValueIDs(v.FieldID, v)
	m := newValueModel(v)
	if err := t.conn(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		return fmt.Errorf("insert value: %w", err)
	}
	return t.insertProperties(ctx, v.Properties)
}

func (t *tx) UpdateValue(ctx context.Context, v *field.Value) error {
	err := t.conn(ctx).Model(&valueModel{ID: v.ID}).Updates(map[string]any{
		"title":    v.Title,
		"position": v.Position,
	}).Error
	if err != nil {
		return fmt.Errorf("update value: %w", err)
	}
	return nil
}

// DestroyValues deletes the value rows; their properties cascade.
func (t *tx) DestroyValues(ctx context.Context, values []field.Value) error {
	if len(values) == 0 {
		return nil
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.ID)
	}
	if err := t.conn(ctx).Where("id IN ?", ids).Delete(&valueModel{}).Error; err != nil {
		return fmt.Errorf("delete values: %w", err)
	}
	return nil
}

func (t *tx) CreateProperties(ctx context.Context, props []field.Property) error {
	for i := range props {
		props[i].ID = t.config.NewID()
	}
	return t.insertProperties(ctx, props)
}

func (t *tx) DestroyProperties(ctx context.Context, props []field.Property) error {
	if len(props) == 0 {
		return nil
	}
	ids := make([]string, 0, len(props))
	for _, p := range props {
		ids = append(ids, p.ID)
	}
	if err := t.conn(ctx).Where("id IN ?", ids).Delete(&propertyModel{}).Error; err != nil {
		return fmt.Errorf("delete properties: %w", err)
	}
	return nil
}

func (t *tx) LockTaskValues(ctx context.Context, taskID string) ([]field.TaskValue, error) {
	return listTaskValues(t.locking(t.conn(ctx)), []string{taskID})
}

// CreateTaskValues checks that every bound field belongs to the product
// before inserting, so unknown fields are reported even where foreign keys
// are not enforced.
func (t *tx) CreateTaskValues(ctx context.Context, productID string, values []field.TaskValue) error {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(values))
	fieldIDs := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v.FieldID] {
			seen[v.FieldID] = true
			fieldIDs = append(fieldIDs, v.FieldID)
		}
	}
	var n int64
	err := t.conn(ctx).Model(&fieldModel{}).
		Where("product_id = ? AND id IN ?", productID, fieldIDs).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("count fields: %w", err)
	}
	if int(n) != len(fieldIDs) {
		return errUnknownField
	}

	rows := make([]taskValueModel, 0, len(values))
	for i := range values {
		v := &values[i]
		v.ID = t.config.NewID()
		rows = append(rows, taskValueModel{ID: v.ID, TaskID: v.TaskID, FieldID: v.FieldID, Value: v.Value})
	}
	if err := t.conn(ctx).CreateInBatches(&rows, t.config.BatchSize).Error; err != nil {
		return constraintError("insert task values", err)
	}
	return nil
}

func (t *tx) DestroyTaskValues(ctx context.Context, values []field.TaskValue) error {
	if len(values) == 0 {
		return nil
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.ID)
	}
	if err := t.conn(ctx).Where("id IN ?", ids).Delete(&taskValueModel{}).Error; err != nil {
		return fmt.Errorf("delete task values: %w", err)
	}
	return nil
}

// assignValueIDs gives v and its properties fresh ids under fieldID.
func (t *tx) assignValueIDs(fieldID string, v *field.Value) {
	v.ID = t.config.NewID()
	v.FieldID = fieldID
	for j := range v.Properties {
		v.Properties[j].ID = t.config.NewID()
		v.Properties[j].ValueID = v.ID
	}
}

func (t *tx) insertProperties(ctx context.Context, props []field.Property) error {
	if len(props) == 0 {
		return nil
	}
	rows := newPropertyModels(props)
	if err := t.conn(ctx).CreateInBatches(&rows, t.config.BatchSize).Error; err != nil {
		return fmt.Errorf("insert properties: %w", err)
	}
	return nil
}
