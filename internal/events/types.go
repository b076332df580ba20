package events

import "time"

// Envelope wraps every event
type Envelope struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	SchemaVersion  string         `json:"schema_version"`
	IdempotencyKey string         `json:"idempotency_key"`
	Timestamp      time.Time      `json:"timestamp"`
	Source         string         `json:"source"`
	TenantID       string         `json:"tenant_id,omitempty"`
	Data           map[string]any `json:"data"`
}

// Event type constants
const (
	// Shift events
	EventShiftPublished = "shift.published"
	EventShiftCancelled = "shift.cancelled"
	EventShiftAssigned  = "shift.assigned"
	EventShiftCompleted = "shift.completed"

	// Claim events
	EventClaimSubmitted = "claim.submitted"
	EventClaimApproved  = "claim.approved"
	EventClaimRejected  = "claim.rejected"
	EventClaimsResolved = "claims.resolved"

	// Worker events
	EventWorkerNoShow = "worker.no_show"
)
