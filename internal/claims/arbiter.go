// Package claims admits claim submissions through the gating chain and
// resolves competing claims to at most one winner per shift. Submission and
// resolution for one shift are serialized behind a per-shift lock; a
// version check on the shift write backs the lock against writers that do
// not take it.
package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/events"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/reputation"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/store"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/visibility"
	"github.com/google/uuid"
)

// ErrShiftNotOpen means the shift already left the claimable states, for
// example through a direct manager assignment.
var ErrShiftNotOpen = errors.New("shift is not open for claims")

// ErrInvalidShiftState means the shift's status machine forbids the
// requested transition.
var ErrInvalidShiftState = errors.New("shift state does not allow this operation")

const (
	retryDelayMin    = 50 * time.Millisecond
	retryDelayJitter = 100 * time.Millisecond
)

// Params are the tunable weights and waits of the arbiter. Zero values fall
// back to the defaults.
type Params struct {
	TierWeight         float64
	ReputationWeight   float64
	LockWait           time.Duration
	DefaultClaimWindow time.Duration
}

func DefaultParams() Params {
	return Params{
		TierWeight:         600,
		ReputationWeight:   100,
		LockWait:           2 * time.Second,
		DefaultClaimWindow: 30 * time.Minute,
	}
}

type Arbiter struct {
	store      store.Store
	resolver   *visibility.Resolver
	reputation *reputation.Engine
	events     *events.Publisher
	locks      *shiftLocks
	params     Params
}

func NewArbiter(st store.Store, res *visibility.Resolver, eng *reputation.Engine, pub *events.Publisher, p Params) *Arbiter {
	def := DefaultParams()
	if p.TierWeight <= 0 {
		p.TierWeight = def.TierWeight
	}
	if p.ReputationWeight <= 0 {
		p.ReputationWeight = def.ReputationWeight
	}
	if p.LockWait <= 0 {
		p.LockWait = def.LockWait
	}
	if p.DefaultClaimWindow <= 0 {
		p.DefaultClaimWindow = def.DefaultClaimWindow
	}
	return &Arbiter{
		store:      st,
		resolver:   res,
		reputation: eng,
		events:     pub,
		locks:      newShiftLocks(p.LockWait),
		params:     p,
	}
}

// Priority scores a claim from worker tier and network rating. The tier
// weight exceeds the maximum rating contribution, so a higher tier always
// outranks a higher rating.
func (a *Arbiter) Priority(tier model.WorkerTier, rating float64) float64 {
	return float64(model.TierRank(tier))*a.params.TierWeight + rating*a.params.ReputationWeight
}

// Submit runs the gating chain for one claim attempt. Gating failures are
// persisted as REJECTED claims and returned as typed rejections, not
// errors. Resubmitting while a previous claim is still pending returns
// that claim unchanged.
func (a *Arbiter) Submit(ctx context.Context, shiftID, profileID string, now time.Time) (model.ClaimResult, error) {
	release, err := a.locks.acquire(ctx, shiftID)
	if err != nil {
		return model.ClaimResult{}, err
	}
	defer release()

	shift, err := a.store.GetShift(ctx, shiftID)
	if err != nil {
		return model.ClaimResult{}, err
	}
	worker, err := a.store.GetProfile(ctx, profileID)
	if err != nil {
		return model.ClaimResult{}, err
	}

	pending, err := a.store.ListClaimsByShift(ctx, shiftID, model.ClaimStatusPending)
	if err != nil {
		return model.ClaimResult{}, err
	}
	for _, c := range pending {
		if c.ProfileID == profileID {
			return model.ClaimResult{Accepted: true, Claim: c}, nil
		}
	}

	d, err := a.resolver.Resolve(ctx, shift, worker, now)
	if err != nil {
		return model.ClaimResult{}, err
	}
	if !d.Visible {
		return a.rejectClaim(ctx, shift, worker, now, d.Rejection)
	}
	rej, err := a.workerGates(ctx, shift, worker)
	if err != nil {
		return model.ClaimResult{}, err
	}
	if rej != nil {
		return a.rejectClaim(ctx, shift, worker, now, rej)
	}

	rating := 0.0
	if rep, err := a.reputation.NetworkReputation(ctx, worker.IdentityID); err == nil {
		rating = rep.Rating()
	} else if !errors.Is(err, reputation.ErrIdentityNotFound) {
		return model.ClaimResult{}, err
	}

	claim := model.Claim{
		ID:            uuid.New().String(),
		ShiftID:       shiftID,
		ProfileID:     profileID,
		IdentityID:    worker.IdentityID,
		SubmittedAt:   now,
		PriorityScore: a.Priority(worker.Tier, rating),
		Status:        model.ClaimStatusPending,
	}
	if err := a.store.SaveClaim(ctx, claim); err != nil {
		return model.ClaimResult{}, err
	}

	if err := a.noteClaimOnShift(ctx, shift, now); err != nil {
		if !errors.Is(err, store.ErrVersionConflict) {
			return model.ClaimResult{}, err
		}
		reloaded, gerr := a.store.GetShift(ctx, shiftID)
		if gerr != nil {
			return model.ClaimResult{}, gerr
		}
		if !reloaded.Status.Open() {
			lost := &model.Rejection{Code: model.RejectionOutsideWindow, Message: "shift was assigned while the claim was submitted"}
			claim.Status = model.ClaimStatusRejected
			claim.RejectionReason = lost.Code
			claim.ResolvedAt = &now
			if uerr := a.store.UpdateClaim(ctx, claim); uerr != nil {
				return model.ClaimResult{}, uerr
			}
			a.publishClaimEvent(ctx, events.EventClaimRejected, shift, claim, lost.Code)
			return model.ClaimResult{Accepted: false, Claim: claim, Rejection: lost}, nil
		}
	}

	slog.InfoContext(ctx, "claim_submitted",
		"claim_id", claim.ID,
		"shift_id", shiftID,
		"worker_id", profileID,
		"priority_score", claim.PriorityScore,
	)
	a.publishClaimEvent(ctx, events.EventClaimSubmitted, shift, claim, "")

	return model.ClaimResult{Accepted: true, Claim: claim}, nil
}

// Resolve settles every pending claim for the shift: at most one winner,
// everyone else rejected with a reason. Contention and write races retry
// once after a short random delay before surfacing to the caller.
func (a *Arbiter) Resolve(ctx context.Context, shiftID string, now time.Time) (model.Resolution, error) {
	res, err := a.resolveOnce(ctx, shiftID, now)
	if err == nil || !retryable(err) {
		return res, err
	}

	delay := retryDelayMin + rand.N(retryDelayJitter)
	slog.DebugContext(ctx, "resolution_retry", "shift_id", shiftID, "delay_ms", delay.Milliseconds(), "error", err)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return model.Resolution{}, err
	}
	return a.resolveOnce(ctx, shiftID, now)
}

func retryable(err error) bool {
	return errors.Is(err, ErrResolutionContended) || errors.Is(err, store.ErrVersionConflict)
}

func (a *Arbiter) resolveOnce(ctx context.Context, shiftID string, now time.Time) (model.Resolution, error) {
	release, err := a.locks.acquire(ctx, shiftID)
	if err != nil {
		return model.Resolution{}, err
	}
	defer release()

	shift, err := a.store.GetShift(ctx, shiftID)
	if err != nil {
		return model.Resolution{}, err
	}
	if !shift.Status.Open() {
		return model.Resolution{}, fmt.Errorf("%w: shift %s is %s", ErrShiftNotOpen, shift.ID, shift.Status)
	}

	pending, err := a.store.ListClaimsByShift(ctx, shiftID, model.ClaimStatusPending)
	if err != nil {
		return model.Resolution{}, err
	}

	type gated struct {
		claim model.Claim
		code  model.RejectionCode
	}
	var eligible []model.Claim
	var ineligible []gated
	for _, c := range pending {
		code, err := a.regate(ctx, shift, c, now)
		if err != nil {
			return model.Resolution{}, err
		}
		if code == "" {
			eligible = append(eligible, c)
		} else {
			ineligible = append(ineligible, gated{claim: c, code: code})
		}
	}

	sortClaims(eligible)

	res := model.Resolution{ShiftID: shiftID, RejectedCount: len(ineligible), ResolvedAt: now}

	// The shift write is the serialization point: it carries the version
	// check, so it happens before any claim status is persisted.
	if len(eligible) == 0 {
		if shift.Status == model.ShiftStatusClaimed {
			shift.Status = model.ShiftStatusUnassigned
		}
	} else {
		winner := eligible[0]
		shift.Status = model.ShiftStatusConfirmed
		shift.AssignedProfileID = winner.ProfileID
		res.WinnerClaimID = winner.ID
		res.ApprovedCount = 1
		res.RejectedCount += len(eligible) - 1
	}
	shift.ClaimWindowEndsAt = nil
	shift.UpdatedAt = now
	if err := a.store.UpdateShift(ctx, shift); err != nil {
		return model.Resolution{}, err
	}
	res.ShiftStatus = shift.Status

	for i, c := range eligible {
		c.ResolvedAt = &now
		if i == 0 {
			c.Status = model.ClaimStatusApproved
			if err := a.store.UpdateClaim(ctx, c); err != nil {
				return model.Resolution{}, err
			}
			a.publishClaimEvent(ctx, events.EventClaimApproved, shift, c, "")
			continue
		}
		c.Status = model.ClaimStatusRejected
		c.RejectionReason = model.RejectionLostPriority
		if err := a.store.UpdateClaim(ctx, c); err != nil {
			return model.Resolution{}, err
		}
		a.publishClaimEvent(ctx, events.EventClaimRejected, shift, c, model.RejectionLostPriority)
	}
	for _, g := range ineligible {
		g.claim.Status = model.ClaimStatusRejected
		g.claim.RejectionReason = g.code
		g.claim.ResolvedAt = &now
		if err := a.store.UpdateClaim(ctx, g.claim); err != nil {
			return model.Resolution{}, err
		}
		a.publishClaimEvent(ctx, events.EventClaimRejected, shift, g.claim, g.code)
	}

	slog.InfoContext(ctx, "claims_resolved",
		"shift_id", shiftID,
		"winner_claim_id", res.WinnerClaimID,
		"approved", res.ApprovedCount,
		"rejected", res.RejectedCount,
		"shift_status", res.ShiftStatus,
	)
	_ = a.events.Publish(ctx, events.EventClaimsResolved, map[string]any{
		"shift_id":        shiftID,
		"restaurant_id":   shift.RestaurantID,
		"winner_claim_id": res.WinnerClaimID,
		"approved_count":  res.ApprovedCount,
		"rejected_count":  res.RejectedCount,
		"shift_status":    string(res.ShiftStatus),
		"resolved_at":     now.Format(time.RFC3339Nano),
	})

	return res, nil
}

// AssignResult is the outcome of a direct manager assignment. Gating
// failures come back as a typed rejection, mirroring claim submission.
type AssignResult struct {
	Assigned  bool
	Shift     model.Shift
	Rejection *model.Rejection
}

// Assign places a worker on an open shift by direct manager action. It
// bypasses claim ranking and the visibility window but honors the same
// scheduling gates, and it rejects whatever claims were still pending so
// their owners hear the outcome.
func (a *Arbiter) Assign(ctx context.Context, shiftID, profileID string, now time.Time) (AssignResult, error) {
	release, err := a.locks.acquire(ctx, shiftID)
	if err != nil {
		return AssignResult{}, err
	}
	defer release()

	shift, err := a.store.GetShift(ctx, shiftID)
	if err != nil {
		return AssignResult{}, err
	}
	if !shift.Status.Open() {
		return AssignResult{}, fmt.Errorf("%w: shift %s is %s", ErrShiftNotOpen, shift.ID, shift.Status)
	}
	worker, err := a.store.GetProfile(ctx, profileID)
	if err != nil {
		return AssignResult{}, err
	}

	rej, err := a.workerGates(ctx, shift, worker)
	if err != nil {
		return AssignResult{}, err
	}
	if rej != nil {
		return AssignResult{Shift: shift, Rejection: rej}, nil
	}

	shift.Status = model.ShiftStatusConfirmed
	shift.AssignedProfileID = worker.ID
	shift.ClaimWindowEndsAt = nil
	shift.UpdatedAt = now
	if err := a.store.UpdateShift(ctx, shift); err != nil {
		return AssignResult{}, err
	}

	rejected, err := a.rejectPending(ctx, shift, now)
	if err != nil {
		return AssignResult{}, err
	}

	slog.InfoContext(ctx, "shift_assigned",
		"shift_id", shiftID,
		"worker_id", profileID,
		"displaced_claims", rejected,
	)
	return AssignResult{Assigned: true, Shift: shift}, nil
}

// Cancel withdraws a shift and rejects any claims still waiting on it, so
// cancellation never strands a pending claimant.
func (a *Arbiter) Cancel(ctx context.Context, shiftID string, now time.Time) (model.Shift, error) {
	release, err := a.locks.acquire(ctx, shiftID)
	if err != nil {
		return model.Shift{}, err
	}
	defer release()

	shift, err := a.store.GetShift(ctx, shiftID)
	if err != nil {
		return model.Shift{}, err
	}
	if !shift.Status.CanTransitionTo(model.ShiftStatusCancelled) {
		return model.Shift{}, fmt.Errorf("%w: cannot cancel a %s shift", ErrInvalidShiftState, shift.Status)
	}

	shift.Status = model.ShiftStatusCancelled
	shift.ClaimWindowEndsAt = nil
	shift.UpdatedAt = now
	if err := a.store.UpdateShift(ctx, shift); err != nil {
		return model.Shift{}, err
	}

	rejected, err := a.rejectPending(ctx, shift, now)
	if err != nil {
		return model.Shift{}, err
	}

	slog.InfoContext(ctx, "shift_cancelled",
		"shift_id", shiftID,
		"displaced_claims", rejected,
	)
	return shift, nil
}

// rejectPending fails every claim still pending on a shift that just left
// the open states. Callers hold the shift lock.
func (a *Arbiter) rejectPending(ctx context.Context, shift model.Shift, now time.Time) (int, error) {
	pending, err := a.store.ListClaimsByShift(ctx, shift.ID, model.ClaimStatusPending)
	if err != nil {
		return 0, err
	}
	for _, c := range pending {
		c.Status = model.ClaimStatusRejected
		c.RejectionReason = model.RejectionOutsideWindow
		c.ResolvedAt = &now
		if err := a.store.UpdateClaim(ctx, c); err != nil {
			return 0, err
		}
		a.publishClaimEvent(ctx, events.EventClaimRejected, shift, c, model.RejectionOutsideWindow)
	}
	return len(pending), nil
}

// regate re-runs the drift-prone gates for one pending claim. An empty code
// means the claim is still eligible.
func (a *Arbiter) regate(ctx context.Context, shift model.Shift, c model.Claim, now time.Time) (model.RejectionCode, error) {
	worker, err := a.store.GetProfile(ctx, c.ProfileID)
	if errors.Is(err, store.ErrProfileNotFound) {
		return model.RejectionNotVerified, nil
	}
	if err != nil {
		return "", err
	}

	d, err := a.resolver.Revalidate(ctx, shift, worker, now)
	if err != nil {
		return "", err
	}
	if !d.Visible {
		return d.Rejection.Code, nil
	}

	rej, err := a.workerGates(ctx, shift, worker)
	if err != nil {
		return "", err
	}
	if rej != nil {
		return rej.Code, nil
	}
	return "", nil
}

// workerGates runs the post-visibility checks: employment status, schedule
// conflicts across every profile of the worker's identity, and approved
// time off.
func (a *Arbiter) workerGates(ctx context.Context, shift model.Shift, worker model.WorkerProfile) (*model.Rejection, error) {
	if worker.Status != model.StatusActive {
		return &model.Rejection{
			Code:    model.RejectionNotVerified,
			Message: "worker employment is not active",
			Detail:  map[string]any{"status": string(worker.Status)},
		}, nil
	}

	profiles, err := a.store.ListProfilesByIdentity(ctx, worker.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	profileIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		profileIDs = append(profileIDs, p.ID)
	}
	conflicts, err := a.store.ListActiveShiftsOverlapping(ctx, profileIDs, shift.StartTime, shift.EndTime)
	if err != nil {
		return nil, fmt.Errorf("list overlapping shifts: %w", err)
	}
	if len(conflicts) > 0 {
		return &model.Rejection{
			Code:    model.RejectionSchedulingConflict,
			Message: "worker already holds an overlapping shift",
			Detail:  map[string]any{"conflicting_shift_id": conflicts[0].ID},
		}, nil
	}

	timeOff, err := a.store.ListApprovedTimeOffOverlapping(ctx, worker.IdentityID, shift.StartTime, shift.EndTime)
	if err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}
	if len(timeOff) > 0 {
		return &model.Rejection{
			Code:    model.RejectionTimeOffConflict,
			Message: "approved time off overlaps this shift",
			Detail:  map[string]any{"time_off_id": timeOff[0].ID},
		}, nil
	}
	return nil, nil
}

// rejectClaim persists the failed attempt as a REJECTED claim for the audit
// trail and returns the typed rejection.
func (a *Arbiter) rejectClaim(ctx context.Context, shift model.Shift, worker model.WorkerProfile, now time.Time, rej *model.Rejection) (model.ClaimResult, error) {
	claim := model.Claim{
		ID:              uuid.New().String(),
		ShiftID:         shift.ID,
		ProfileID:       worker.ID,
		IdentityID:      worker.IdentityID,
		SubmittedAt:     now,
		Status:          model.ClaimStatusRejected,
		RejectionReason: rej.Code,
		ResolvedAt:      &now,
	}
	if err := a.store.SaveClaim(ctx, claim); err != nil {
		return model.ClaimResult{}, err
	}

	slog.InfoContext(ctx, "claim_rejected",
		"shift_id", shift.ID,
		"worker_id", worker.ID,
		"reason", rej.Code,
	)
	a.publishClaimEvent(ctx, events.EventClaimRejected, shift, claim, rej.Code)

	return model.ClaimResult{Accepted: false, Claim: claim, Rejection: rej}, nil
}

// noteClaimOnShift moves a freshly claimed shift to PUBLISHED_CLAIMED and
// arms the claim window when the restaurant resolves on a timer.
func (a *Arbiter) noteClaimOnShift(ctx context.Context, shift model.Shift, now time.Time) error {
	changed := false
	if shift.Status == model.ShiftStatusUnassigned {
		shift.Status = model.ShiftStatusClaimed
		changed = true
	}
	if shift.ClaimWindowEndsAt == nil {
		if window := a.claimWindowFor(ctx, shift); window > 0 {
			endsAt := now.Add(window)
			shift.ClaimWindowEndsAt = &endsAt
			changed = true
		}
	}
	if !changed {
		return nil
	}
	shift.UpdatedAt = now
	return a.store.UpdateShift(ctx, shift)
}

// claimWindowFor returns the claim window for a shift, zero for restaurants
// that auto-approve and therefore resolve immediately. A per-shift override
// beats the restaurant setting.
func (a *Arbiter) claimWindowFor(ctx context.Context, shift model.Shift) time.Duration {
	rst, err := a.store.GetRestaurant(ctx, shift.RestaurantID)
	if err != nil {
		return a.params.DefaultClaimWindow
	}
	if rst.AutoApproveClaims {
		return 0
	}
	if shift.ClaimWindowMinutes > 0 {
		return time.Duration(shift.ClaimWindowMinutes) * time.Minute
	}
	if rst.ClaimWindowMinutes > 0 {
		return time.Duration(rst.ClaimWindowMinutes) * time.Minute
	}
	return a.params.DefaultClaimWindow
}

func (a *Arbiter) publishClaimEvent(ctx context.Context, eventType string, shift model.Shift, c model.Claim, reason model.RejectionCode) {
	data := map[string]any{
		"claim_id":      c.ID,
		"shift_id":      shift.ID,
		"restaurant_id": shift.RestaurantID,
		"worker_id":     c.ProfileID,
		"identity_id":   c.IdentityID,
	}
	if reason != "" {
		data["reason"] = string(reason)
	}
	_ = a.events.Publish(ctx, eventType, data)
}

// sortClaims orders by priority descending, then submission time, then ID
// for total determinism.
func sortClaims(cs []model.Claim) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].PriorityScore != cs[j].PriorityScore {
			return cs[i].PriorityScore > cs[j].PriorityScore
		}
		if !cs[i].SubmittedAt.Equal(cs[j].SubmittedAt) {
			return cs[i].SubmittedAt.Before(cs[j].SubmittedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}
