package field

import "time"

// Field is a custom field definition together with its value subtree.
type Field struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Values    []Value   `json:"values"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Value is one selectable option of a field.
type Value struct {
	ID         string     `json:"id"`
	FieldID    string     `json:"fieldId"`
	Title      string     `json:"title"`
	Position   int        `json:"position"`
	Properties []Property `json:"properties"`
}

// Property is a name/value metadata pair attached to a value.
type Property struct {
	ID       string `json:"id"`
	ValueID  string `json:"valueId"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Position int    `json:"position"`
}

// TaskValue binds a scalar value for a field to a task.
type TaskValue struct {
	ID      string `json:"id"`
	TaskID  string `json:"taskId"`
	FieldID string `json:"taskFieldId"`
	Value   string `json:"value"`
}

// ValueIDs returns the ids of the field's values in order.
func (f *Field) ValueIDs() []string {
	ids := make([]string, 0, len(f.Values))
	for _, v := range f.Values {
		ids = append(ids, v.ID)
	}
	return ids
}

// PropertyIDs returns the ids of the value's properties in order.
func (v *Value) PropertyIDs() []string {
	ids := make([]string, 0, len(v.Properties))
	for _, p := range v.Properties {
		ids = append(ids, p.ID)
	}
	return ids
}

// CreateInput is the payload of a field create call.
type CreateInput struct {
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Values []ValueInput `json:"values,omitempty"`
}

// Patch is the payload of a field update call.
//
// A nil pointer means the key was not supplied. Values distinguishes an
// omitted list (leave values untouched) from an empty one (delete them all).
type Patch struct {
	Name   *string       `json:"name,omitempty"`
	Type   *string       `json:"type,omitempty"`
	Values *[]ValueInput `json:"values,omitempty"`
}

// ValueInput is one desired value. An empty ID requests a new value.
type ValueInput struct {
	ID         string           `json:"id,omitempty"`
	Title      *string          `json:"title,omitempty"`
	Properties *[]PropertyInput `json:"properties,omitempty"`
}

// PropertyInput is one desired property. Its ID, when sent, is ignored:
// properties are always recreated.
type PropertyInput struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TaskValueInput is one desired task binding.
type TaskValueInput struct {
	FieldID string `json:"taskFieldId"`
	Value   string `json:"value"`
}

// NewValue builds an unsaved value from a desired value.
func (in ValueInput) NewValue(fieldID string, position int) Value {
	v := Value{
		FieldID:  fieldID,
		Position: position,
	}
	if in.Title != nil {
		v.Title = *in.Title
	}
	if in.Properties != nil {
		v.Properties = NewProperties("", *in.Properties)
	}
	return v
}

// NewProperties builds unsaved properties owned by valueID.
func NewProperties(valueID string, in []PropertyInput) []Property {
	props := make([]Property, 0, len(in))
	for i, p := range in {
		props = append(props, Property{
			ValueID:  valueID,
			Name:     p.Name,
			Value:    p.Value,
			Position: i,
		})
	}
	return props
}
