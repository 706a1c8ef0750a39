package sqlstore

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jacentio/taskfields/field"
)

type fieldModel struct {
	ID         string           `gorm:"type:varchar(36);primaryKey"`
	ProductID  string           `gorm:"type:varchar(64);not null;index:task_fields_product_id"`
	Name       string           `gorm:"type:varchar(255);not null"`
	Type       string           `gorm:"type:varchar(255);not null"`
	CreatedAt  time.Time        `gorm:"not null;precision:6;autoCreateTime:false"`
	UpdatedAt  time.Time        `gorm:"not null;precision:6;autoUpdateTime:false"`
	Values     []valueModel     `gorm:"foreignKey:FieldID;constraint:OnDelete:CASCADE"`
	TaskValues []taskValueModel `gorm:"foreignKey:FieldID;constraint:OnDelete:CASCADE"`
}

func (fieldModel) TableName() string { return "task_fields" }

type valueModel struct {
	ID         string          `gorm:"type:varchar(36);primaryKey"`
	FieldID    string          `gorm:"column:task_field_id;type:varchar(36);not null;index:task_fields_values_field_id"`
	Title      string          `gorm:"type:text;not null"`
	Position   int             `gorm:"not null"`
	Properties []propertyModel `gorm:"foreignKey:ValueID;constraint:OnDelete:CASCADE"`
}

func (valueModel) TableName() string { return "task_fields_values" }

type propertyModel struct {
	ID       string `gorm:"type:varchar(36);primaryKey"`
	ValueID  string `gorm:"column:task_field_value_id;type:varchar(36);not null;index:task_fields_values_properties_value_id"`
	Name     string `gorm:"type:text;not null"`
	Value    string `gorm:"type:text;not null"`
	Position int    `gorm:"not null"`
}

func (propertyModel) TableName() string { return "task_fields_values_properties" }

type taskValueModel struct {
	ID      string `gorm:"type:varchar(36);primaryKey"`
	TaskID  string `gorm:"type:varchar(64);not null;uniqueIndex:custom_task_fields_task_field,priority:1"`
	FieldID string `gorm:"column:task_field_id;type:varchar(36);not null;index:custom_task_fields_field_id;uniqueIndex:custom_task_fields_task_field,priority:2"`
	Value   string `gorm:"type:text;not null"`
}

func (taskValueModel) TableName() string { return "custom_task_fields" }

func newFieldModel(f *field.Field) fieldModel {
	return fieldModel{
		ID:        f.ID,
		ProductID: f.ProductID,
		Name:      f.Name,
		Type:      f.Type,
		CreatedAt: f.CreatedAt.UTC(),
		UpdatedAt: f.UpdatedAt.UTC(),
	}
}

func newValueModel(v *field.Value) valueModel {
	return valueModel{ID: v.ID, FieldID: v.FieldID, Title: v.Title, Position: v.Position}
}

func newPropertyModels(props []field.Property) []propertyModel {
	rows := make([]propertyModel, 0, len(props))
	for _, p := range props {
		rows = append(rows, propertyModel{ID: p.ID, ValueID: p.ValueID, Name: p.Name, Value: p.Value, Position: p.Position})
	}
	return rows
}

func (m fieldModel) toField() field.Field {
	f := field.Field{
		ID:        m.ID,
		ProductID: m.ProductID,
		Name:      m.Name,
		Type:      m.Type,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		Values:    make([]field.Value, 0, len(m.Values)),
	}
	for _, vm := range m.Values {
		v := field.Value{
			ID:         vm.ID,
			FieldID:    vm.FieldID,
			Title:      vm.Title,
			Position:   vm.Position,
			Properties: make([]field.Property, 0, len(vm.Properties)),
		}
		for _, pm := range vm.Properties {
			v.Properties = append(v.Properties, field.Property{
				ID:       pm.ID,
				ValueID:  pm.ValueID,
				Name:     pm.Name,
				Value:    pm.Value,
				Position: pm.Position,
			})
		}
		f.Values = append(f.Values, v)
	}
	return f
}

func (m taskValueModel) toTaskValue() field.TaskValue {
	return field.TaskValue{ID: m.ID, TaskID: m.TaskID, FieldID: m.FieldID, Value: m.Value}
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position, id")
}

// withTree preloads the value subtree in position order.
func withTree(db *gorm.DB) *gorm.DB {
	return db.Preload("Values", byPosition).Preload("Values.Properties", byPosition)
}

func findField(db *gorm.DB, productID, id string) (*field.Field, error) {
	var m fieldModel
	err := withTree(db).Where("product_id = ? AND id = ?", productID, id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &field.NotFoundError{Entity: "field", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("query field: %w", err)
	}
	f := m.toField()
	return &f, nil
}

func listTaskValues(db *gorm.DB, taskIDs []string) ([]field.TaskValue, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var rows []taskValueModel
	if err := db.Where("task_id IN ?", taskIDs).Order("task_id, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query task values: %w", err)
	}
	out := make([]field.TaskValue, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toTaskValue())
	}
	return out, nil
}
