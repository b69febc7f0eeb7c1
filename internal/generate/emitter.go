package generate

import (
	"fmt"

	"github.com/roach88/dbforge/internal/ids"
	"github.com/roach88/dbforge/internal/record"
)

// Emitter turns entity indexes into records. It owns the run's Tracker, so
// ids stay unique across every entity it emits.
type Emitter struct {
	plan    *Plan
	tracker *ids.Tracker
}

// NewEmitter creates an Emitter for one (seed, namespace) run.
// A nil plan means DefaultPlan.
func NewEmitter(seed int64, namespace string, plan *Plan) *Emitter {
	if plan == nil {
		plan = DefaultPlan()
	}
	return &Emitter{plan: plan, tracker: ids.NewTracker(seed, namespace)}
}

// Emit returns the CreateRecord for index followed by its attribute records.
func (e *Emitter) Emit(index int64) ([]record.Record, error) {
	t := e.tracker

	entityID, err := t.EntityID(index)
	if err != nil {
		return nil, fmt.Errorf("entity %d: %w", index, err)
	}
	containerID, err := t.CreateID(index)
	if err != nil {
		return nil, fmt.Errorf("entity %d: %w", index, err)
	}
	rid, err := t.RandomID(index, record.PropertyCreate)
	if err != nil {
		return nil, fmt.Errorf("entity %d: %w", index, err)
	}

	out := make([]record.Record, 0, len(e.plan.Attributes)+1)
	out = append(out, record.NewCreate(e.plan.Table, containerID, entityID, e.plan.Version, rid))

	for _, attr := range e.plan.Attributes {
		rid, err := t.RandomID(index, attr.Property)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %s: %w", index, attr.Property, err)
		}
		var derived uint64
		if attr.Derive {
			derived = ids.Derive(t.Seed, t.Namespace, index, "attr|"+attr.Property, ids.Space64)
		}
		out = append(out, record.NewAttribute(
			e.plan.Table, attr.Property, entityID,
			attr.value(index, derived), e.plan.Version, rid,
		))
	}
	return out, nil
}
