package model

import "time"

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "PENDING"
	ClaimStatusApproved ClaimStatus = "APPROVED"
	ClaimStatusRejected ClaimStatus = "REJECTED"
)

// RejectionCode identifies why a claim was refused or a shift withheld from a
// worker. Codes are stable API values rendered into worker-facing messages.
type RejectionCode string

const (
	RejectionNotVerified        RejectionCode = "NOT_VERIFIED"
	RejectionBelowMinReputation RejectionCode = "BELOW_MINIMUM_REPUTATION"
	RejectionSchedulingConflict RejectionCode = "SCHEDULING_CONFLICT"
	RejectionNetworkDisabled    RejectionCode = "NETWORK_DISABLED"
	RejectionTimeOffConflict    RejectionCode = "TIME_OFF_CONFLICT"
	RejectionOutsideWindow      RejectionCode = "OUTSIDE_VISIBILITY_WINDOW"
	RejectionPositionNotHeld    RejectionCode = "POSITION_NOT_HELD"
	RejectionOutsideMaxDistance RejectionCode = "OUTSIDE_MAX_DISTANCE"

	// RejectionLostPriority marks claims that passed every gate but lost
	// the ranking at resolution.
	RejectionLostPriority RejectionCode = "LOST_TO_HIGHER_PRIORITY"
)

// Claim is one worker's attempt to take an open shift. Terminal once
// resolved; rejected submissions persist for the audit trail.
type Claim struct {
	ID            string      `json:"claim_id" bson:"claim_id"`
	ShiftID       string      `json:"shift_id" bson:"shift_id"`
	ProfileID     string      `json:"worker_id" bson:"worker_id"`
	IdentityID    string      `json:"identity_id" bson:"identity_id"`
	SubmittedAt   time.Time   `json:"submitted_at" bson:"submitted_at"`
	PriorityScore float64     `json:"priority_score" bson:"priority_score"`
	Status        ClaimStatus `json:"status" bson:"status"`

	RejectionReason RejectionCode `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

// Rejection is a typed gating outcome. It is a value, not an error: most
// claim attempts are expected to fail gating and UIs must render the reason.
type Rejection struct {
	Code    RejectionCode  `json:"code"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// ClaimResult is the outcome of a claim submission: an accepted claim, or the
// persisted rejected claim together with its typed reason.
type ClaimResult struct {
	Accepted  bool       `json:"accepted"`
	Claim     Claim      `json:"claim"`
	Rejection *Rejection `json:"rejection,omitempty"`
}

// Resolution summarizes one resolution pass over a shift's pending claims.
type Resolution struct {
	ShiftID       string      `json:"shift_id"`
	WinnerClaimID string      `json:"winner_claim_id,omitempty"`
	ApprovedCount int         `json:"approved_count"`
	RejectedCount int         `json:"rejected_count"`
	ShiftStatus   ShiftStatus `json:"shift_status"`
	ResolvedAt    time.Time   `json:"resolved_at"`
}
