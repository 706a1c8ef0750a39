package store_test

import (
	"slices"
	"testing"

	"github.com/jacentio/taskfields/store"
)

func TestNewRegistry(t *testing.T) {
	r := store.NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if len(r.AllRelationships()) != 0 {
		t.Error("expected empty registry")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := store.NewRegistry()

	r.Register(store.Relationship{
		ParentType:     store.TypeField,
		ChildType:      store.TypeValue,
		ChildTableName: "values",
		ParentKeyAttr:  "field_id",
	})

	rels := r.AllRelationships()
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	if rels[0].ParentType != store.TypeField {
		t.Errorf("expected ParentType 'field', got %q", rels[0].ParentType)
	}
}

func TestRegistry_ChildrenOf(t *testing.T) {
	r := store.NewRegistry()

	r.Register(store.Relationship{
		ParentType:     store.TypeField,
		ChildType:      store.TypeValue,
		ChildTableName: "values",
		ParentKeyAttr:  "field_id",
	})
	r.Register(store.Relationship{
		ParentType:     store.TypeValue,
		ChildType:      store.TypeProperty,
		ChildTableName: "properties",
		ParentKeyAttr:  "value_id",
	})

	fieldChildren := r.ChildrenOf(store.TypeField)
	if len(fieldChildren) != 1 || fieldChildren[0].ChildType != store.TypeValue {
		t.Errorf("expected value child for field, got %+v", fieldChildren)
	}

	valueChildren := r.ChildrenOf(store.TypeValue)
	if len(valueChildren) != 1 || valueChildren[0].ChildType != store.TypeProperty {
		t.Errorf("expected property child for value, got %+v", valueChildren)
	}

	// Properties are leaves
	if len(r.ChildrenOf(store.TypeProperty)) != 0 {
		t.Error("expected 0 children for property")
	}
}

func TestRegistry_HasChildren(t *testing.T) {
	r := store.NewRegistry()

	if r.HasChildren(store.TypeField) {
		t.Error("expected no children before register")
	}

	r.Register(store.Relationship{ParentType: store.TypeField, ChildType: store.TypeValue})

	if !r.HasChildren(store.TypeField) {
		t.Error("expected field to have children")
	}
	if r.HasChildren(store.TypeValue) {
		t.Error("expected value to not have children")
	}
	if r.HasChildren("") {
		t.Error("expected false for empty string parent")
	}
}

func TestRegistry_Register_DuplicateRelationship(t *testing.T) {
	r := store.NewRegistry()

	rel := store.Relationship{ParentType: store.TypeField, ChildType: store.TypeValue}
	r.Register(rel)
	r.Register(rel)

	// No deduplication
	if len(r.AllRelationships()) != 2 {
		t.Errorf("expected 2 relationships, got %d", len(r.AllRelationships()))
	}
	if len(r.ChildrenOf(store.TypeField)) != 2 {
		t.Errorf("expected 2 children, got %d", len(r.ChildrenOf(store.TypeField)))
	}
}

func TestRegistry_AllRelationships_Order(t *testing.T) {
	r := store.NewRegistry()

	r.Register(store.Relationship{ParentType: "a", ChildType: "b"})
	r.Register(store.Relationship{ParentType: "c", ChildType: "d"})
	r.Register(store.Relationship{ParentType: "e", ChildType: "f"})

	var parents []string
	for _, rel := range r.AllRelationships() {
		parents = append(parents, rel.ParentType)
	}
	if !slices.Equal(parents, []string{"a", "c", "e"}) {
		t.Errorf("expected insertion order, got %v", parents)
	}
}

func TestDefaultRegistry(t *testing.T) {
	cfg := store.DefaultConfig()
	r := store.DefaultRegistry(cfg)

	if len(r.AllRelationships()) != 3 {
		t.Fatalf("expected 3 relationships, got %d", len(r.AllRelationships()))
	}

	fieldChildren := r.ChildrenOf(store.TypeField)
	if len(fieldChildren) != 2 {
		t.Fatalf("expected field to have values and task values, got %d", len(fieldChildren))
	}

	values := fieldChildren[0]
	if values.ChildTableName != cfg.ValuesTable || values.ParentKeyAttr != "field_id" || values.IndexName != "" {
		t.Errorf("unexpected value relationship %+v", values)
	}

	taskValues := fieldChildren[1]
	if taskValues.ChildType != store.TypeTaskValue {
		t.Errorf("expected task_value child, got %q", taskValues.ChildType)
	}
	if taskValues.IndexName != cfg.TaskValuesFieldIndex {
		t.Errorf("expected index %q, got %q", cfg.TaskValuesFieldIndex, taskValues.IndexName)
	}
	if !slices.Equal(taskValues.KeyAttrs, []string{"task_id", "id"}) {
		t.Errorf("expected task value key attrs, got %v", taskValues.KeyAttrs)
	}

	props := r.ChildrenOf(store.TypeValue)
	if len(props) != 1 || props[0].ChildTableName != cfg.PropertiesTable {
		t.Errorf("unexpected property relationship %+v", props)
	}
	if r.HasChildren(store.TypeProperty) || r.HasChildren(store.TypeTaskValue) {
		t.Error("expected properties and task values to be leaves")
	}
}

func TestDefaultRegistry_CustomTables(t *testing.T) {
	r := store.DefaultRegistry(store.Config{ValuesTable: "v", TaskValuesFieldIndex: "by-field"})

	fieldChildren := r.ChildrenOf(store.TypeField)
	if fieldChildren[0].ChildTableName != "v" {
		t.Errorf("expected custom values table, got %q", fieldChildren[0].ChildTableName)
	}
	if fieldChildren[1].IndexName != "by-field" {
		t.Errorf("expected custom index, got %q", fieldChildren[1].IndexName)
	}
	// Unset names fall back to defaults
	if fieldChildren[1].ChildTableName != store.DefaultConfig().TaskValuesTable {
		t.Errorf("expected default task values table, got %q", fieldChildren[1].ChildTableName)
	}
}
