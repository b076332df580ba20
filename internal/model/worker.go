package model

import "time"

// WorkerTier classifies a worker's standing at one restaurant and is the
// strongest input to claim priority.
type WorkerTier string

const (
	TierPrimary   WorkerTier = "PRIMARY"
	TierSecondary WorkerTier = "SECONDARY"
	TierOnCall    WorkerTier = "ON_CALL"
)

// TierRank orders tiers for priority scoring: PRIMARY=2, SECONDARY=1, ON_CALL=0.
func TierRank(t WorkerTier) int {
	switch t {
	case TierPrimary:
		return 2
	case TierSecondary:
		return 1
	default:
		return 0
	}
}

type EmploymentStatus string

const (
	StatusPendingVerification EmploymentStatus = "PENDING_VERIFICATION"
	StatusActive              EmploymentStatus = "ACTIVE"
	StatusTerminated          EmploymentStatus = "TERMINATED"
)

// WorkerProfile is one worker's employment record at one restaurant. A worker
// holds one profile per restaurant, linked by IdentityID. Counters are the
// source of truth; ReliabilityScore is a cached derivation of them.
type WorkerProfile struct {
	ID           string           `json:"worker_id" bson:"worker_id"`
	IdentityID   string           `json:"identity_id" bson:"identity_id"`
	RestaurantID string           `json:"restaurant_id" bson:"restaurant_id"`
	Name         string           `json:"name" bson:"name"`
	Positions    []string         `json:"positions" bson:"positions"`
	Tier         WorkerTier       `json:"tier" bson:"tier"`
	Status       EmploymentStatus `json:"status" bson:"status"`

	ShiftsCompleted  int     `json:"shifts_completed" bson:"shifts_completed"`
	NoShowCount      int     `json:"no_show_count" bson:"no_show_count"`
	LateCount        int     `json:"late_count" bson:"late_count"`
	RatingSum        int     `json:"rating_sum" bson:"rating_sum"`
	RatingCount      int     `json:"rating_count" bson:"rating_count"`
	HoursWorked      float64 `json:"hours_worked" bson:"hours_worked"`
	ReliabilityScore float64 `json:"reliability_score" bson:"reliability_score"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// HoldsPosition reports whether the profile lists the given position.
func (p WorkerProfile) HoldsPosition(position string) bool {
	for _, pos := range p.Positions {
		if pos == position {
			return true
		}
	}
	return false
}

type HireWorkerRequest struct {
	IdentityID   string     `json:"identity_id"`
	RestaurantID string     `json:"restaurant_id"`
	Name         string     `json:"name"`
	Positions    []string   `json:"positions"`
	Tier         WorkerTier `json:"tier"`
}

// ReputationTier is the cross-restaurant standing derived from the composite
// score: >=450 PLATINUM, >=400 GOLD, >=350 SILVER, else BRONZE.
type ReputationTier string

const (
	ReputationBronze   ReputationTier = "BRONZE"
	ReputationSilver   ReputationTier = "SILVER"
	ReputationGold     ReputationTier = "GOLD"
	ReputationPlatinum ReputationTier = "PLATINUM"
)

// NetworkReputation aggregates every profile of one worker identity. It is
// recomputed on demand and cached with a short TTL, never stored as truth.
type NetworkReputation struct {
	IdentityID     string                 `json:"identity_id" bson:"identity_id"`
	CompositeScore float64                `json:"composite_score" bson:"composite_score"`
	Tier           ReputationTier         `json:"tier" bson:"tier"`
	TotalShifts    int                    `json:"total_shifts" bson:"total_shifts"`
	TotalHours     float64                `json:"total_hours" bson:"total_hours"`
	TotalNoShows   int                    `json:"total_no_shows" bson:"total_no_shows"`
	AverageRating  float64                `json:"average_rating" bson:"average_rating"`
	Restaurants    []RestaurantReputation `json:"restaurants" bson:"restaurants"`
	ComputedAt     time.Time              `json:"computed_at" bson:"computed_at"`
}

// Rating returns the composite on the 0-5 scale used by shift and network
// minimum-reputation requirements.
func (r NetworkReputation) Rating() float64 {
	return r.CompositeScore / 100
}

// RestaurantReputation is the per-restaurant slice of a worker's network
// reputation breakdown.
type RestaurantReputation struct {
	RestaurantID     string     `json:"restaurant_id" bson:"restaurant_id"`
	RestaurantName   string     `json:"restaurant_name" bson:"restaurant_name"`
	ProfileID        string     `json:"worker_id" bson:"worker_id"`
	WorkerTier       WorkerTier `json:"worker_tier" bson:"worker_tier"`
	ReliabilityScore float64    `json:"reliability_score" bson:"reliability_score"`
	ShiftsCompleted  int        `json:"shifts_completed" bson:"shifts_completed"`
	NoShowCount      int        `json:"no_show_count" bson:"no_show_count"`
	LateCount        int        `json:"late_count" bson:"late_count"`
	AverageRating    float64    `json:"average_rating" bson:"average_rating"`
	HoursWorked      float64    `json:"hours_worked" bson:"hours_worked"`
}
