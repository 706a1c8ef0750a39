package sqlstore

import (
	"context"
	"fmt"
)

// Migrate creates or updates the tables, indexes and cascading foreign keys.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&fieldModel{},
		&valueModel{},
		&propertyModel{},
		&taskValueModel{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
