package field

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Service orchestrates field create, read, update and delete calls on top of
// a Store. It trusts that the caller already authorized the product.
type Service struct {
	store  Store
	logger *slog.Logger
	opts   ReconcileOptions
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithKeepPropertiesOnOmit makes updates leave a value's properties alone
// when the desired value omits the properties key.
func WithKeepPropertiesOnOmit(keep bool) Option {
	return func(s *Service) { s.opts.KeepPropertiesOnOmit = keep }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service backed by store.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateField creates a field and its whole value subtree in one transaction
// and returns the stored tree.
func (s *Service) CreateField(ctx context.Context, productID string, in CreateInput) (*Field, error) {
	if err := validateCreate(productID, in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	f := &Field{
		ProductID: productID,
		Name:      in.Name,
		Type:      in.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, v := range in.Values {
		f.Values = append(f.Values, v.NewValue("", i))
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateField(ctx, f)
	})
	if err != nil {
		return nil, txError("create field", err)
	}

	s.logger.Info("field created",
		"productId", productID,
		"fieldId", f.ID,
		"values", len(f.Values),
	)

	return s.GetField(ctx, productID, f.ID)
}

// GetField returns the field with its subtree.
func (s *Service) GetField(ctx context.Context, productID, id string) (*Field, error) {
	f, err := s.store.FindField(ctx, productID, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get field %s: %w", id, err)
	}
	return f, nil
}

// ListFieldsForProduct returns every field of the product with its subtree.
func (s *Service) ListFieldsForProduct(ctx context.Context, productID string) ([]Field, error) {
	fields, err := s.store.ListFields(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list fields of product %s: %w", productID, err)
	}
	if fields == nil {
		fields = []Field{}
	}
	return fields, nil
}

// UpdateField applies the scalar part of the patch and, when the patch
// carries a values list, reconciles the value subtree against it. All writes
// share one transaction. It returns the stored tree after the update.
func (s *Service) UpdateField(ctx context.Context, productID, id string, p Patch) (*Field, error) {
	if err := validatePatch(p); err != nil {
		return nil, err
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockField(ctx, productID, id)
		if err != nil {
			return err
		}

		next := *cur
		if p.Name != nil {
			next.Name = *p.Name
		}
		if p.Type != nil {
			next.Type = *p.Type
		}
		next.UpdatedAt = s.now().UTC()
		if err := tx.UpdateField(ctx, &next); err != nil {
			return fmt.Errorf("update field: %w", err)
		}

		if p.Values == nil {
			return nil
		}

		plan := Reconcile(cur.ID, cur.Values, *p.Values, s.opts)
		if plan.Empty() {
			return nil
		}
		s.logger.Debug("reconciling field values",
			"fieldId", cur.ID,
			"plan", plan,
		)
		return plan.Apply(ctx, tx)
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound(id)
		}
		return nil, txError("update field", err)
	}

	s.logger.Info("field updated", "productId", productID, "fieldId", id)

	return s.GetField(ctx, productID, id)
}

// DeleteField removes the field together with its values, their properties
// and the task values bound to it. Deleting a missing field succeeds.
func (s *Service) DeleteField(ctx context.Context, productID, id string) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockField(ctx, productID, id)
		if IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.DestroyField(ctx, cur)
	})
	if err != nil {
		return txError("delete field", err)
	}

	s.logger.Info("field deleted", "productId", productID, "fieldId", id)
	return nil
}

// SetTaskValues replaces every task value of the task with the given ones.
// Each field may be bound once and must belong to the product. An empty list
// clears the task's values.
func (s *Service) SetTaskValues(ctx context.Context, productID, taskID string, in []TaskValueInput) ([]TaskValue, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, invalid("taskId", "required")
	}

	fields, err := s.store.ListFields(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list fields of product %s: %w", productID, err)
	}
	if err := validateTaskValues(fields, in); err != nil {
		return nil, err
	}

	next := make([]TaskValue, 0, len(in))
	for _, v := range in {
		next = append(next, TaskValue{TaskID: taskID, FieldID: v.FieldID, Value: v.Value})
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockTaskValues(ctx, taskID)
		if err != nil {
			return err
		}
		if err := tx.DestroyTaskValues(ctx, cur); err != nil {
			return fmt.Errorf("destroy task values: %w", err)
		}
		if len(next) == 0 {
			return nil
		}
		return tx.CreateTaskValues(ctx, productID, next)
	})
	if err != nil {
		return nil, txError("set task values", err)
	}

	s.logger.Info("task values replaced", "taskId", taskID, "values", len(next))

	byTask, err := s.ListTaskValues(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return byTask[taskID], nil
}

// ListTaskValues returns the task values of every given task, keyed by task
// id. Tasks without values map to an empty slice.
func (s *Service) ListTaskValues(ctx context.Context, taskIDs ...string) (map[string][]TaskValue, error) {
	out := make(map[string][]TaskValue, len(taskIDs))
	for _, id := range taskIDs {
		out[id] = []TaskValue{}
	}
	if len(taskIDs) == 0 {
		return out, nil
	}

	values, err := s.store.ListTaskValues(ctx, taskIDs...)
	if err != nil {
		return nil, fmt.Errorf("list task values: %w", err)
	}
	for _, v := range values {
		out[v.TaskID] = append(out[v.TaskID], v)
	}
	return out, nil
}

func validateCreate(productID string, in CreateInput) error {
	if strings.TrimSpace(productID) == "" {
		return invalid("productId", "required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "required")
	}
	if strings.TrimSpace(in.Type) == "" {
		return invalid("type", "required")
	}
	return nil
}

func validatePatch(p Patch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name", "must not be blank")
	}
	if p.Type != nil && strings.TrimSpace(*p.Type) == "" {
		return invalid("type", "must not be blank")
	}
	return nil
}

func validateTaskValues(fields []Field, in []TaskValueInput) error {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.ID] = true
	}

	seen := make(map[string]bool, len(in))
	for _, v := range in {
		switch {
		case v.FieldID == "":
			return invalid("taskFieldId", "required")
		case !known[v.FieldID]:
			return invalid("taskFieldId", fmt.Sprintf("field %s is not defined for the product", v.FieldID))
		case seen[v.FieldID]:
			return invalid("taskFieldId", fmt.Sprintf("field %s bound more than once", v.FieldID))
		}
		seen[v.FieldID] = true
	}
	return nil
}
