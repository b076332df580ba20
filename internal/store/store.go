package store

import (
	"context"
	"errors"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
)

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrNetworkNotFound    = errors.New("network not found")
	ErrProfileNotFound    = errors.New("worker profile not found")
	ErrShiftNotFound      = errors.New("shift not found")
	ErrClaimNotFound      = errors.New("claim not found")
	ErrTimeOffNotFound    = errors.New("time off request not found")

	// ErrVersionConflict means a shift update lost a concurrent write race;
	// callers reload and retry or surface a retryable conflict.
	ErrVersionConflict = errors.New("shift version conflict")
)

// Store is the persistence boundary of the allocation core.
type Store interface {
	SaveRestaurant(ctx context.Context, r model.Restaurant) error
	GetRestaurant(ctx context.Context, id string) (model.Restaurant, error)
	ListRestaurantsByNetwork(ctx context.Context, networkID string) ([]model.Restaurant, error)

	SaveNetwork(ctx context.Context, n model.Network) error
	GetNetwork(ctx context.Context, id string) (model.Network, error)

	SaveProfile(ctx context.Context, p model.WorkerProfile) error
	GetProfile(ctx context.Context, id string) (model.WorkerProfile, error)
	ListProfilesByIdentity(ctx context.Context, identityID string) ([]model.WorkerProfile, error)
	UpdateProfile(ctx context.Context, p model.WorkerProfile) error

	SaveShift(ctx context.Context, s model.Shift) error
	GetShift(ctx context.Context, id string) (model.Shift, error)
	// UpdateShift writes the shift only if the stored version still matches
	// s.Version, then increments it; otherwise ErrVersionConflict.
	UpdateShift(ctx context.Context, s model.Shift) error
	// ListOpenShiftsByRestaurants returns shifts still accepting claims at
	// any of the given restaurants, soonest first.
	ListOpenShiftsByRestaurants(ctx context.Context, restaurantIDs []string) ([]model.Shift, error)
	// ListActiveShiftsOverlapping returns CONFIRMED and IN_PROGRESS shifts
	// assigned to any of the given profiles whose window intersects [start, end).
	ListActiveShiftsOverlapping(ctx context.Context, profileIDs []string, start, end time.Time) ([]model.Shift, error)
	// ListDueShifts returns open shifts whose claim window ended at or before now.
	ListDueShifts(ctx context.Context, now time.Time) ([]model.Shift, error)

	SaveClaim(ctx context.Context, c model.Claim) error
	GetClaim(ctx context.Context, id string) (model.Claim, error)
	// ListClaimsByShift filters by status when status is non-empty.
	ListClaimsByShift(ctx context.Context, shiftID string, status model.ClaimStatus) ([]model.Claim, error)
	UpdateClaim(ctx context.Context, c model.Claim) error

	SaveTimeOff(ctx context.Context, t model.TimeOffRequest) error
	GetTimeOff(ctx context.Context, id string) (model.TimeOffRequest, error)
	UpdateTimeOff(ctx context.Context, t model.TimeOffRequest) error
	// ListApprovedTimeOffOverlapping returns APPROVED requests for the
	// identity whose window intersects [start, end).
	ListApprovedTimeOffOverlapping(ctx context.Context, identityID string, start, end time.Time) ([]model.TimeOffRequest, error)

	Close() error
}
