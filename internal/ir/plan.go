package ir

import "time"

// Action is what the executor will do with a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionNoOp   Action = "noop"
)

// Step is one entry in an execution plan. For deletes the resource is
// reconstructed from the snapshot and carries no attributes.
type Step struct {
	Resource *Resource `json:"resource"`
	Action   Action    `json:"action"`
	Prior    *Snapshot `json:"prior,omitempty"`
}

// Plan is an ordered sequence of steps. The order is a valid topological
// order of the dependency graph: no step precedes a step it depends on,
// and deletes run after all creates and updates.
type Plan struct {
	Steps     []*Step     `json:"steps"`
	Summary   PlanSummary `json:"summary"`
	CreatedAt time.Time   `json:"created_at"`
}

type PlanSummary struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Delete int `json:"delete"`
	NoOp   int `json:"noop"`
}

// HasChanges reports whether applying the plan would touch anything.
func (p *Plan) HasChanges() bool {
	return p.Summary.Create+p.Summary.Update+p.Summary.Delete > 0
}
