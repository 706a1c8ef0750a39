package field

import (
	"context"
	"fmt"
	"log/slog"
)

// ReconcileOptions tunes how omitted keys in a desired value are treated.
type ReconcileOptions struct {
	// KeepPropertiesOnOmit leaves the properties of an updated value alone
	// when the desired value carries no properties key. By default an
	// omitted key clears them.
	KeepPropertiesOnOmit bool
}

// Plan is the set of store operations that turns a field's current value
// tree into the desired one.
type Plan struct {
	// Destroy holds current values absent from the desired set.
	Destroy []Value
	// Create holds new values, each with its new properties.
	Create []Value
	// Update holds values kept by id.
	Update []ValueChange
}

// ValueChange is an in-place update of one existing value.
type ValueChange struct {
	// Current is the value as stored, including its properties.
	Current Value
	// Next is the value after the update. When ReplaceProperties is set its
	// Properties are unsaved and will be created fresh.
	Next Value
	// ReplaceProperties drops every property of Current before Next's
	// properties are created.
	ReplaceProperties bool
}

// Reconcile computes the plan turning current into desired for one field.
//
// Desired values with an empty id are created. Current values whose id is not
// desired are destroyed. Desired ids matching a current value update it in
// place; unknown desired ids are ignored. When an id is desired more than
// once the last occurrence wins. Positions follow the desired order.
func Reconcile(fieldID string, current []Value, desired []ValueInput, opts ReconcileOptions) Plan {
	var plan Plan

	keep := make(map[string]int, len(desired))
	for i, in := range desired {
		if in.ID == "" {
			plan.Create = append(plan.Create, in.NewValue(fieldID, i))
			continue
		}
		keep[in.ID] = i
	}

	for _, cur := range current {
		i, ok := keep[cur.ID]
		if !ok {
			plan.Destroy = append(plan.Destroy, cur)
			continue
		}
		plan.Update = append(plan.Update, change(cur, desired[i], i, opts))
	}

	return plan
}

func change(cur Value, in ValueInput, position int, opts ReconcileOptions) ValueChange {
	next := Value{
		ID:         cur.ID,
		FieldID:    cur.FieldID,
		Title:      cur.Title,
		Position:   position,
		Properties: cur.Properties,
	}
	if in.Title != nil {
		next.Title = *in.Title
	}

	replace := in.Properties != nil || !opts.KeepPropertiesOnOmit
	if replace {
		next.Properties = nil
		if in.Properties != nil {
			next.Properties = NewProperties(cur.ID, *in.Properties)
		}
	}

	return ValueChange{Current: cur, Next: next, ReplaceProperties: replace}
}

// Empty reports whether the plan has no operations.
func (p Plan) Empty() bool {
	return len(p.Destroy) == 0 && len(p.Create) == 0 && len(p.Update) == 0
}

// LogValue implements slog.LogValuer.
func (p Plan) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("destroy", len(p.Destroy)),
		slog.Int("create", len(p.Create)),
		slog.Int("update", len(p.Update)),
	)
}

// Apply runs the plan against tx: destroys first, then creates, then
// updates. Created values and properties get their ids assigned in place.
func (p Plan) Apply(ctx context.Context, tx Tx) error {
	if err := tx.DestroyValues(ctx, p.Destroy); err != nil {
		return fmt.Errorf("destroy values: %w", err)
	}

	for i := range p.Create {
		if err := tx.CreateValue(ctx, &p.Create[i]); err != nil {
			return fmt.Errorf("create value: %w", err)
		}
	}

	for i := range p.Update {
		c := &p.Update[i]
		if c.ReplaceProperties {
			if err := tx.DestroyProperties(ctx, c.Current.Properties); err != nil {
				return fmt.Errorf("destroy properties of value %s: %w", c.Current.ID, err)
			}
		}
		if err := tx.UpdateValue(ctx, &c.Next); err != nil {
			return fmt.Errorf("update value %s: %w", c.Current.ID, err)
		}
		if c.ReplaceProperties && len(c.Next.Properties) > 0 {
			if err := tx.CreateProperties(ctx, c.Next.Properties); err != nil {
				return fmt.Errorf("create properties of value %s: %w", c.Current.ID, err)
			}
		}
	}

	return nil
}
