package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/claims"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/events"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/reputation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxVisibilityDelayMinutes = 1440
	minClaimWindowMinutes     = 5
	maxClaimWindowMinutes     = 240
)

// CreateRestaurant registers one employer. A zero visibility delay or claim
// window means the restaurant inherits the platform defaults.
func (s *Service) CreateRestaurant(ctx context.Context, req model.CreateRestaurantRequest) (model.Restaurant, error) {
	if req.Name == "" {
		return model.Restaurant{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		return model.Restaurant{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidRequest)
	}
	if req.NetworkID != "" {
		if _, err := s.store.GetNetwork(ctx, req.NetworkID); err != nil {
			return model.Restaurant{}, err
		}
	}

	rst := model.Restaurant{
		ID:                     generateID("rst"),
		Name:                   req.Name,
		NetworkID:              req.NetworkID,
		Lat:                    req.Lat,
		Lng:                    req.Lng,
		VisibilityDelayMinutes: clampMinutes(req.VisibilityDelayMinutes, 0, maxVisibilityDelayMinutes),
		AutoApproveClaims:      req.AutoApproveClaims,
		ClaimWindowMinutes:     req.ClaimWindowMinutes,
		CreatedAt:              time.Now().UTC(),
	}
	if rst.ClaimWindowMinutes > 0 {
		rst.ClaimWindowMinutes = clampMinutes(rst.ClaimWindowMinutes, minClaimWindowMinutes, maxClaimWindowMinutes)
	}
	if err := s.store.SaveRestaurant(ctx, rst); err != nil {
		return model.Restaurant{}, err
	}

	slog.InfoContext(ctx, "restaurant_created",
		"restaurant_id", rst.ID,
		"network_id", rst.NetworkID,
		"auto_approve", rst.AutoApproveClaims,
	)
	return rst, nil
}

func (s *Service) CreateNetwork(ctx context.Context, req model.CreateNetworkRequest) (model.Network, error) {
	if req.Name == "" {
		return model.Network{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if req.MaxDistanceMiles < 0 {
		return model.Network{}, fmt.Errorf("%w: max_distance_miles cannot be negative", ErrInvalidRequest)
	}
	if req.MinReputation < 0 || req.MinReputation > 5 {
		return model.Network{}, fmt.Errorf("%w: min_reputation must be between 0 and 5", ErrInvalidRequest)
	}

	nw := model.Network{
		ID:                     generateID("net"),
		Name:                   req.Name,
		CrossRestaurantEnabled: req.CrossRestaurantEnabled,
		RequireApproval:        req.RequireApproval,
		MaxDistanceMiles:       req.MaxDistanceMiles,
		MinReputation:          req.MinReputation,
		CreatedAt:              time.Now().UTC(),
	}
	if err := s.store.SaveNetwork(ctx, nw); err != nil {
		return model.Network{}, err
	}

	slog.InfoContext(ctx, "network_created",
		"network_id", nw.ID,
		"cross_restaurant_enabled", nw.CrossRestaurantEnabled,
	)
	return nw, nil
}

// HireWorker creates one employment profile. A request without an identity
// starts a fresh worker identity; a request with one links the new profile
// to the worker's existing history. New profiles await verification before
// they can claim.
func (s *Service) HireWorker(ctx context.Context, req model.HireWorkerRequest) (model.WorkerProfile, error) {
	if req.RestaurantID == "" || req.Name == "" {
		return model.WorkerProfile{}, fmt.Errorf("%w: restaurant_id and name are required", ErrInvalidRequest)
	}
	if len(req.Positions) == 0 {
		return model.WorkerProfile{}, fmt.Errorf("%w: at least one position is required", ErrInvalidRequest)
	}
	tier := req.Tier
	if tier == "" {
		tier = model.TierOnCall
	}
	switch tier {
	case model.TierPrimary, model.TierSecondary, model.TierOnCall:
	default:
		return model.WorkerProfile{}, fmt.Errorf("%w: unknown tier %q", ErrInvalidRequest, req.Tier)
	}
	if _, err := s.store.GetRestaurant(ctx, req.RestaurantID); err != nil {
		return model.WorkerProfile{}, err
	}

	identityID := req.IdentityID
	if identityID == "" {
		identityID = generateID("idn")
	} else {
		existing, err := s.store.ListProfilesByIdentity(ctx, identityID)
		if err != nil {
			return model.WorkerProfile{}, err
		}
		for _, p := range existing {
			if p.RestaurantID == req.RestaurantID {
				return model.WorkerProfile{}, fmt.Errorf("%w: identity already holds a profile at this restaurant", ErrInvalidRequest)
			}
		}
	}

	now := time.Now().UTC()
	p := model.WorkerProfile{
		ID:           generateID("wkr"),
		IdentityID:   identityID,
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Positions:    req.Positions,
		Tier:         tier,
		Status:       model.StatusPendingVerification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.ReliabilityScore = reputation.Reliability(p)
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return model.WorkerProfile{}, err
	}

	slog.InfoContext(ctx, "worker_hired",
		"worker_id", p.ID,
		"identity_id", p.IdentityID,
		"restaurant_id", p.RestaurantID,
		"tier", string(p.Tier),
	)
	return p, nil
}

// VerifyWorker activates a pending profile. Verifying an already active
// profile is a no-op.
func (s *Service) VerifyWorker(ctx context.Context, profileID string) (model.WorkerProfile, error) {
	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return model.WorkerProfile{}, err
	}
	switch p.Status {
	case model.StatusActive:
		return p, nil
	case model.StatusTerminated:
		return model.WorkerProfile{}, fmt.Errorf("%w: profile is terminated", ErrInvalidState)
	}

	p.Status = model.StatusActive
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return model.WorkerProfile{}, err
	}
	slog.InfoContext(ctx, "worker_verified", "worker_id", p.ID)
	return p, nil
}

// TerminateWorker ends employment at one restaurant. The profile and its
// counters stay on the identity, so past work keeps counting toward network
// reputation.
func (s *Service) TerminateWorker(ctx context.Context, profileID string) (model.WorkerProfile, error) {
	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return model.WorkerProfile{}, err
	}
	if p.Status == model.StatusTerminated {
		return p, nil
	}

	p.Status = model.StatusTerminated
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return model.WorkerProfile{}, err
	}
	slog.InfoContext(ctx, "worker_terminated", "worker_id", p.ID)
	return p, nil
}

// RequestTimeOff records an identity-wide time off request. It blocks
// claims at every restaurant once approved, and only then.
func (s *Service) RequestTimeOff(ctx context.Context, profileID string, req model.RequestTimeOffRequest) (model.TimeOffRequest, error) {
	if !req.StartTime.Before(req.EndTime) {
		return model.TimeOffRequest{}, fmt.Errorf("%w: start_time must precede end_time", ErrInvalidRequest)
	}
	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return model.TimeOffRequest{}, err
	}

	t := model.TimeOffRequest{
		ID:         uuid.New().String(),
		IdentityID: p.IdentityID,
		StartTime:  req.StartTime.UTC(),
		EndTime:    req.EndTime.UTC(),
		Status:     model.TimeOffPending,
		Reason:     req.Reason,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveTimeOff(ctx, t); err != nil {
		return model.TimeOffRequest{}, err
	}

	slog.InfoContext(ctx, "time_off_requested", "time_off_id", t.ID, "identity_id", t.IdentityID)
	return t, nil
}

func (s *Service) ApproveTimeOff(ctx context.Context, id string) (model.TimeOffRequest, error) {
	return s.reviewTimeOff(ctx, id, model.TimeOffApproved)
}

func (s *Service) DenyTimeOff(ctx context.Context, id string) (model.TimeOffRequest, error) {
	return s.reviewTimeOff(ctx, id, model.TimeOffDenied)
}

func (s *Service) reviewTimeOff(ctx context.Context, id string, status model.TimeOffStatus) (model.TimeOffRequest, error) {
	t, err := s.store.GetTimeOff(ctx, id)
	if err != nil {
		return model.TimeOffRequest{}, err
	}
	if t.Status != model.TimeOffPending {
		return model.TimeOffRequest{}, fmt.Errorf("%w: request is already %s", ErrInvalidState, t.Status)
	}

	t.Status = status
	if err := s.store.UpdateTimeOff(ctx, t); err != nil {
		return model.TimeOffRequest{}, err
	}
	slog.InfoContext(ctx, "time_off_reviewed", "time_off_id", t.ID, "status", string(t.Status))
	return t, nil
}

// PublishShift creates a shift directly in PUBLISHED_UNASSIGNED. The claim
// window arms when the first claim arrives, not at publish.
func (s *Service) PublishShift(ctx context.Context, req model.PublishShiftRequest) (model.Shift, error) {
	if req.RestaurantID == "" || req.Position == "" {
		return model.Shift{}, fmt.Errorf("%w: restaurant_id and position are required", ErrInvalidRequest)
	}
	if !req.StartTime.Before(req.EndTime) {
		return model.Shift{}, fmt.Errorf("%w: start_time must precede end_time", ErrInvalidRequest)
	}
	now := time.Now().UTC()
	if !req.StartTime.After(now) {
		return model.Shift{}, fmt.Errorf("%w: start_time must be in the future", ErrInvalidRequest)
	}
	rate, err := decimal.NewFromString(req.PayRate)
	if err != nil || !rate.IsPositive() {
		return model.Shift{}, fmt.Errorf("%w: pay_rate must be a positive decimal", ErrInvalidRequest)
	}
	if req.MinReputation < 0 || req.MinReputation > 5 {
		return model.Shift{}, fmt.Errorf("%w: min_reputation must be between 0 and 5", ErrInvalidRequest)
	}
	if _, err := s.store.GetRestaurant(ctx, req.RestaurantID); err != nil {
		return model.Shift{}, err
	}

	sh := model.Shift{
		ID:            generateID("sft"),
		RestaurantID:  req.RestaurantID,
		Position:      req.Position,
		StartTime:     req.StartTime.UTC(),
		EndTime:       req.EndTime.UTC(),
		PayRate:       rate.String(),
		MinReputation: req.MinReputation,
		Status:        model.ShiftStatusUnassigned,
		PublishedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.ClaimWindowMinutes > 0 {
		sh.ClaimWindowMinutes = clampMinutes(req.ClaimWindowMinutes, minClaimWindowMinutes, maxClaimWindowMinutes)
	}
	if err := s.store.SaveShift(ctx, sh); err != nil {
		return model.Shift{}, err
	}

	slog.InfoContext(ctx, "shift_published",
		"shift_id", sh.ID,
		"restaurant_id", sh.RestaurantID,
		"position", sh.Position,
		"start_time", sh.StartTime,
	)
	_ = s.events.Publish(ctx, events.EventShiftPublished, map[string]any{
		"shift_id":      sh.ID,
		"restaurant_id": sh.RestaurantID,
		"position":      sh.Position,
		"start_time":    sh.StartTime.Format(time.RFC3339),
		"end_time":      sh.EndTime.Format(time.RFC3339),
		"pay_rate":      sh.PayRate,
	})
	return sh, nil
}

// CancelShift withdraws a shift. Claimants still waiting are rejected, and
// a confirmed assignee keeps their name on the record.
func (s *Service) CancelShift(ctx context.Context, shiftID string) (model.Shift, error) {
	sh, err := s.arbiter.Cancel(ctx, shiftID, time.Now().UTC())
	if err != nil {
		return model.Shift{}, err
	}

	data := map[string]any{
		"shift_id":      sh.ID,
		"restaurant_id": sh.RestaurantID,
	}
	if sh.AssignedProfileID != "" {
		data["worker_id"] = sh.AssignedProfileID
	}
	_ = s.events.Publish(ctx, events.EventShiftCancelled, data)
	return sh, nil
}

// AssignShift is the direct manager path onto an open shift. It skips claim
// ranking but not the scheduling gates.
func (s *Service) AssignShift(ctx context.Context, shiftID, profileID string) (claims.AssignResult, error) {
	res, err := s.arbiter.Assign(ctx, shiftID, profileID, time.Now().UTC())
	if err != nil {
		return claims.AssignResult{}, err
	}
	if !res.Assigned {
		return res, nil
	}

	_ = s.events.Publish(ctx, events.EventShiftAssigned, map[string]any{
		"shift_id":      shiftID,
		"restaurant_id": res.Shift.RestaurantID,
		"worker_id":     profileID,
		"direct":        true,
	})
	return res, nil
}

func (s *Service) StartShift(ctx context.Context, shiftID string) (model.Shift, error) {
	sh, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return model.Shift{}, err
	}
	if !sh.Status.CanTransitionTo(model.ShiftStatusInProgress) {
		return model.Shift{}, fmt.Errorf("%w: cannot start a %s shift", ErrInvalidState, sh.Status)
	}

	sh.Status = model.ShiftStatusInProgress
	sh.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateShift(ctx, sh); err != nil {
		return model.Shift{}, err
	}
	slog.InfoContext(ctx, "shift_started", "shift_id", sh.ID, "worker_id", sh.AssignedProfileID)
	return sh, nil
}

// CompleteShift closes out a worked shift and settles its effect on the
// worker: completed count, hours, lateness, and the manager rating when one
// is given. The cached reputation is invalidated so the next read sees the
// new counters.
func (s *Service) CompleteShift(ctx context.Context, shiftID string, late bool, rating int) (model.Shift, error) {
	if rating != 0 && (rating < 1 || rating > 5) {
		return model.Shift{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidRequest)
	}
	sh, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return model.Shift{}, err
	}
	if !sh.Status.CanTransitionTo(model.ShiftStatusCompleted) {
		return model.Shift{}, fmt.Errorf("%w: cannot complete a %s shift", ErrInvalidState, sh.Status)
	}

	now := time.Now().UTC()
	sh.Status = model.ShiftStatusCompleted
	sh.UpdatedAt = now
	if err := s.store.UpdateShift(ctx, sh); err != nil {
		return model.Shift{}, err
	}

	worker, err := s.store.GetProfile(ctx, sh.AssignedProfileID)
	if err != nil {
		return model.Shift{}, err
	}
	worker.ShiftsCompleted++
	worker.HoursWorked += sh.Hours()
	if late {
		worker.LateCount++
	}
	if rating > 0 {
		worker.RatingSum += rating
		worker.RatingCount++
	}
	worker.ReliabilityScore = reputation.Reliability(worker)
	worker.UpdatedAt = now
	if err := s.store.UpdateProfile(ctx, worker); err != nil {
		return model.Shift{}, err
	}
	s.reputation.Invalidate(ctx, worker.IdentityID)

	slog.InfoContext(ctx, "shift_completed",
		"shift_id", sh.ID,
		"worker_id", worker.ID,
		"late", late,
		"rating", rating,
		"reliability_score", worker.ReliabilityScore,
	)
	_ = s.events.Publish(ctx, events.EventShiftCompleted, map[string]any{
		"shift_id":      sh.ID,
		"restaurant_id": sh.RestaurantID,
		"worker_id":     worker.ID,
		"identity_id":   worker.IdentityID,
		"late":          late,
		"rating":        rating,
		"hours":         sh.Hours(),
	})
	return sh, nil
}

// RecordNoShow marks an assigned shift as missed. The no-show lands on the
// worker's counters immediately; republishing the uncovered shift is the
// product's call, not this one.
func (s *Service) RecordNoShow(ctx context.Context, shiftID string) (model.Shift, error) {
	sh, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return model.Shift{}, err
	}
	if !sh.Status.CanTransitionTo(model.ShiftStatusNoShow) {
		return model.Shift{}, fmt.Errorf("%w: cannot record a no-show on a %s shift", ErrInvalidState, sh.Status)
	}

	now := time.Now().UTC()
	sh.Status = model.ShiftStatusNoShow
	sh.UpdatedAt = now
	if err := s.store.UpdateShift(ctx, sh); err != nil {
		return model.Shift{}, err
	}

	worker, err := s.store.GetProfile(ctx, sh.AssignedProfileID)
	if err != nil {
		return model.Shift{}, err
	}
	worker.NoShowCount++
	worker.ReliabilityScore = reputation.Reliability(worker)
	worker.UpdatedAt = now
	if err := s.store.UpdateProfile(ctx, worker); err != nil {
		return model.Shift{}, err
	}
	s.reputation.Invalidate(ctx, worker.IdentityID)

	slog.InfoContext(ctx, "no_show_recorded",
		"shift_id", sh.ID,
		"worker_id", worker.ID,
		"no_show_count", worker.NoShowCount,
	)
	_ = s.events.Publish(ctx, events.EventWorkerNoShow, map[string]any{
		"shift_id":      sh.ID,
		"restaurant_id": sh.RestaurantID,
		"worker_id":     worker.ID,
		"identity_id":   worker.IdentityID,
	})
	return sh, nil
}

// SweepSummary reports one pass of the due-shift sweep.
type SweepSummary struct {
	Due      int `json:"due"`
	Assigned int `json:"assigned"`
	Unfilled int `json:"unfilled"`
	Failed   int `json:"failed"`
}

// ResolveDueShifts settles every shift whose claim window has expired.
// Per-shift failures are counted and logged, never fatal to the sweep.
func (s *Service) ResolveDueShifts(ctx context.Context, now time.Time) (SweepSummary, error) {
	due, err := s.store.ListDueShifts(ctx, now)
	if err != nil {
		return SweepSummary{}, err
	}

	sum := SweepSummary{Due: len(due)}
	for _, sh := range due {
		res, err := s.arbiter.Resolve(ctx, sh.ID, now)
		if err != nil {
			sum.Failed++
			slog.WarnContext(ctx, "sweep_resolution_failed", "shift_id", sh.ID, "error", err)
			continue
		}
		if res.ApprovedCount > 0 {
			sum.Assigned++
		} else {
			sum.Unfilled++
		}
	}

	slog.InfoContext(ctx, "due_shifts_resolved",
		"due", sum.Due,
		"assigned", sum.Assigned,
		"unfilled", sum.Unfilled,
		"failed", sum.Failed,
	)
	return sum, nil
}

func clampMinutes(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
