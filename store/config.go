package store

import "github.com/google/uuid"

// MaxTransactItems is the DynamoDB limit on actions in one TransactWriteItems call.
const MaxTransactItems = 100

// Config holds configuration for the Store.
type Config struct {
	// FieldsTable holds field definitions, keyed by (product_id, id).
	// Default: "task_fields"
	FieldsTable string

	// ValuesTable holds field values, keyed by (field_id, id).
	// Default: "task_fields_values"
	ValuesTable string

	// PropertiesTable holds value properties, keyed by (value_id, id).
	// Default: "task_fields_values_properties"
	PropertiesTable string

	// TaskValuesTable holds task bindings, keyed by (task_id, id).
	// Default: "custom_task_fields"
	TaskValuesTable string

	// TaskValuesFieldIndex is the GSI on TaskValuesTable with field_id as
	// hash key. The cascade handler uses it to find bindings of a deleted field.
	// Default: "field_id-index"
	TaskValuesFieldIndex string

	// MaxTransactItems caps the actions buffered by one transaction.
	// Default and max: 100
	MaxTransactItems int

	// ReadConcurrency bounds parallel queries when loading value subtrees.
	// Default: 8
	ReadConcurrency int

	// NewID generates ids for created items.
	// Default: uuid.NewString
	NewID func() string
}

// DefaultConfig returns the default table layout.
func DefaultConfig() Config {
	return Config{
		FieldsTable:          "task_fields",
		ValuesTable:          "task_fields_values",
		PropertiesTable:      "task_fields_values_properties",
		TaskValuesTable:      "custom_task_fields",
		TaskValuesFieldIndex: "field_id-index",
		MaxTransactItems:     MaxTransactItems,
		ReadConcurrency:      8,
		NewID:                uuid.NewString,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	d := DefaultConfig()
	if c.FieldsTable == "" {
		c.FieldsTable = d.FieldsTable
	}
	if c.ValuesTable == "" {
		c.ValuesTable = d.ValuesTable
	}
	if c.PropertiesTable == "" {
		c.PropertiesTable = d.PropertiesTable
	}
	if c.TaskValuesTable == "" {
		c.TaskValuesTable = d.TaskValuesTable
	}
	if c.TaskValuesFieldIndex == "" {
		c.TaskValuesFieldIndex = d.TaskValuesFieldIndex
	}
	if c.MaxTransactItems < 1 || c.MaxTransactItems > MaxTransactItems {
		c.MaxTransactItems = MaxTransactItems
	}
	if c.ReadConcurrency < 1 {
		c.ReadConcurrency = d.ReadConcurrency
	}
	if c.NewID == nil {
		c.NewID = d.NewID
	}
}
