package model

import "time"

// ShiftStatus represents the current state of a shift
type ShiftStatus string

const (
	ShiftStatusDraft      ShiftStatus = "DRAFT"
	ShiftStatusUnassigned ShiftStatus = "PUBLISHED_UNASSIGNED"
	ShiftStatusClaimed    ShiftStatus = "PUBLISHED_CLAIMED"
	ShiftStatusConfirmed  ShiftStatus = "CONFIRMED"
	ShiftStatusInProgress ShiftStatus = "IN_PROGRESS"
	ShiftStatusCompleted  ShiftStatus = "COMPLETED"
	ShiftStatusCancelled  ShiftStatus = "CANCELLED"
	ShiftStatusNoShow     ShiftStatus = "NO_SHOW"
)

var shiftTransitions = map[ShiftStatus][]ShiftStatus{
	ShiftStatusDraft:      {ShiftStatusUnassigned, ShiftStatusCancelled},
	ShiftStatusUnassigned: {ShiftStatusClaimed, ShiftStatusConfirmed, ShiftStatusCancelled},
	ShiftStatusClaimed:    {ShiftStatusConfirmed, ShiftStatusUnassigned, ShiftStatusCancelled},
	ShiftStatusConfirmed:  {ShiftStatusInProgress, ShiftStatusCompleted, ShiftStatusNoShow, ShiftStatusCancelled},
	ShiftStatusInProgress: {ShiftStatusCompleted, ShiftStatusNoShow},
}

// CanTransitionTo reports whether the status machine permits moving to next.
func (s ShiftStatus) CanTransitionTo(next ShiftStatus) bool {
	for _, allowed := range shiftTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the shift holds a live assignment.
func (s ShiftStatus) Active() bool {
	return s == ShiftStatusConfirmed || s == ShiftStatusInProgress
}

// Open reports whether the shift still accepts claims. PUBLISHED_CLAIMED
// shifts keep accepting until the claim window resolves.
func (s ShiftStatus) Open() bool {
	return s == ShiftStatusUnassigned || s == ShiftStatusClaimed
}

// Shift is a single block of work at one restaurant. Version guards the
// read-modify-write of assignment against concurrent resolution.
type Shift struct {
	ID            string      `json:"shift_id" bson:"shift_id"`
	RestaurantID  string      `json:"restaurant_id" bson:"restaurant_id"`
	Position      string      `json:"position" bson:"position"`
	StartTime     time.Time   `json:"start_time" bson:"start_time"`
	EndTime       time.Time   `json:"end_time" bson:"end_time"`
	PayRate       string      `json:"pay_rate" bson:"pay_rate"`
	MinReputation float64     `json:"min_reputation,omitempty" bson:"min_reputation"`
	Status        ShiftStatus `json:"status" bson:"status"`

	AssignedProfileID string     `json:"assigned_worker_id,omitempty" bson:"assigned_worker_id,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty" bson:"published_at,omitempty"`
	ClaimWindowEndsAt *time.Time `json:"claim_window_ends_at,omitempty" bson:"claim_window_ends_at,omitempty"`

	// ClaimWindowMinutes overrides the restaurant's claim window for this
	// shift when positive. Zero means inherit.
	ClaimWindowMinutes int `json:"claim_window_minutes,omitempty" bson:"claim_window_minutes,omitempty"`

	Version   int64     `json:"-" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Hours returns the shift length in hours.
func (s Shift) Hours() float64 {
	return s.EndTime.Sub(s.StartTime).Hours()
}

// Overlaps reports whether two half-open time windows intersect:
// a.start < b.end && a.end > b.start.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

type PublishShiftRequest struct {
	RestaurantID       string    `json:"restaurant_id"`
	Position           string    `json:"position"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	PayRate            string    `json:"pay_rate"`
	MinReputation      float64   `json:"min_reputation,omitempty"`
	ClaimWindowMinutes int       `json:"claim_window_minutes,omitempty"`
}

// VisibilityPhase is the time-derived gating state of a shift. It is never
// stored; every query recomputes it from the clock.
type VisibilityPhase string

const (
	PhaseOwnRestaurant VisibilityPhase = "OWN_RESTAURANT"
	PhaseNetwork       VisibilityPhase = "NETWORK"
	PhaseClosed        VisibilityPhase = "CLOSED"
)

// ShiftWithVisibility is one entry of a worker's visible-shift feed.
type ShiftWithVisibility struct {
	Shift        Shift           `json:"shift"`
	Phase        VisibilityPhase `json:"phase"`
	CrossNetwork bool            `json:"cross_network"`
	EstimatedPay string          `json:"estimated_pay,omitempty"`
}
