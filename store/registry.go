package store

// Relationship defines a parent-child relationship for cascade operations.
type Relationship struct {
	// ParentType is the parent entity type (e.g., "field").
	ParentType string

	// ChildType is the child entity type (e.g., "value").
	ChildType string

	// ChildTableName is the DynamoDB table name for the child (e.g., "task_fields_values").
	ChildTableName string

	// ParentKeyAttr is the attribute name in child that references parent (e.g., "field_id").
	// It must be the hash key of the table or of IndexName.
	ParentKeyAttr string

	// IndexName is the GSI to query when ParentKeyAttr is not the table's hash key.
	IndexName string

	// KeyAttrs are the attributes forming the child's primary key.
	KeyAttrs []string
}

// Registry holds all known entity relationships for cascade operations.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[string][]Relationship),
	}
}

// DefaultRegistry registers the field hierarchy for the tables in config.
func DefaultRegistry(config Config) *Registry {
	config.validate()
	r := NewRegistry()
	r.Register(Relationship{
		ParentType:     TypeField,
		ChildType:      TypeValue,
		ChildTableName: config.ValuesTable,
		ParentKeyAttr:  "field_id",
		KeyAttrs:       []string{"field_id", "id"},
	})
	r.Register(Relationship{
		ParentType:     TypeValue,
		ChildType:      TypeProperty,
		ChildTableName: config.PropertiesTable,
		ParentKeyAttr:  "value_id",
		KeyAttrs:       []string{"value_id", "id"},
	})
	r.Register(Relationship{
		ParentType:     TypeField,
		ChildType:      TypeTaskValue,
		ChildTableName: config.TaskValuesTable,
		ParentKeyAttr:  "field_id",
		IndexName:      config.TaskValuesFieldIndex,
		KeyAttrs:       []string{"task_id", "id"},
	})
	return r
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
}

// ChildrenOf returns all child relationships for a given parent type.
func (r *Registry) ChildrenOf(parentType string) []Relationship {
	return r.byParent[parentType]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the parent type has any registered child relationships.
func (r *Registry) HasChildren(parentType string) bool {
	return len(r.byParent[parentType]) > 0
}
