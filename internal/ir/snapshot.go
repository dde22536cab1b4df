package ir

import "time"

// Snapshot records what the orchestrator knows about an applied resource.
// A snapshot is written only immediately after a confirmed API success and
// is the source of truth for subsequent plan diffs. Dependencies are kept
// so undeclared resources can still be deleted in a safe order.
type Snapshot struct {
	Type         ResourceType `json:"type"`
	Region       string       `json:"region,omitempty"`
	ConfigHash   string       `json:"config_hash"`
	ExternalID   string       `json:"external_id"`
	Dependencies []string     `json:"dependencies,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
