package sqlstore

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jacentio/taskfields/field"
)

var errUnknownField = &field.ValidationError{Key: "taskFieldId", Reason: "field does not exist"}

// constraintError maps the constraint violations gorm translates into field
// errors and wraps anything else with op.
func constraintError(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return errUnknownField
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %w", op, field.ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
