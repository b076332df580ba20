package claims

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/cache"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/events"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/reputation"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/store"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/visibility"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestShiftLocksSerialize(t *testing.T) {
	locks := newShiftLocks(50 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.acquire(ctx, "sft_1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := locks.acquire(ctx, "sft_1"); !errors.Is(err, ErrResolutionContended) {
		t.Fatalf("second acquire error = %v, want ErrResolutionContended", err)
	}

	// A different shift is independent.
	otherRelease, err := locks.acquire(ctx, "sft_2")
	if err != nil {
		t.Fatalf("acquire other shift: %v", err)
	}
	otherRelease()

	release()
	release() // second call is a no-op

	again, err := locks.acquire(ctx, "sft_1")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()

	locks.mu.Lock()
	remaining := len(locks.entries)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Errorf("lock entries remaining = %d, want 0", remaining)
	}
}

func TestPriorityMonotonic(t *testing.T) {
	a := NewArbiter(store.NewMemoryStore(), nil, nil, events.NewPublisher("claims-test", ""), DefaultParams())

	// The lowest-rated PRIMARY outranks the highest-rated SECONDARY, and
	// likewise one tier down.
	if a.Priority(model.TierPrimary, 0) <= a.Priority(model.TierSecondary, 5) {
		t.Error("PRIMARY at rating 0 must outrank SECONDARY at rating 5")
	}
	if a.Priority(model.TierSecondary, 0) <= a.Priority(model.TierOnCall, 5) {
		t.Error("SECONDARY at rating 0 must outrank ON_CALL at rating 5")
	}

	for _, tier := range []model.WorkerTier{model.TierPrimary, model.TierSecondary, model.TierOnCall} {
		prev := a.Priority(tier, 0)
		for rating := 0.5; rating <= 5; rating += 0.5 {
			got := a.Priority(tier, rating)
			if got <= prev {
				t.Fatalf("Priority(%s, %v) = %v, not above %v", tier, rating, got, prev)
			}
			prev = got
		}
	}

	if got := a.Priority(model.TierPrimary, 4.0); !floatNear(got, 1600, 1e-6) {
		t.Errorf("Priority(PRIMARY, 4.0) = %v, want 1600", got)
	}
	if got := a.Priority(model.TierPrimary, 4.2); !floatNear(got, 1620, 1e-6) {
		t.Errorf("Priority(PRIMARY, 4.2) = %v, want 1620", got)
	}
}

type fixture struct {
	st      *store.MemoryStore
	engine  *reputation.Engine
	arbiter *Arbiter
	shift   model.Shift
}

// newFixture seeds one enabled network with two restaurants and a cast of
// workers. The shift starts three hours after base at the first restaurant
// and needs a server.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	engine := reputation.NewEngine(st, cache.NewMemoryCache(), time.Hour)
	resolver := visibility.NewResolver(st, engine, 2*time.Hour)
	arbiter := NewArbiter(st, resolver, engine, events.NewPublisher("claims-test", ""), DefaultParams())

	if err := st.SaveNetwork(ctx, model.Network{ID: "net_1", Name: "Bay Area Group", CrossRestaurantEnabled: true}); err != nil {
		t.Fatalf("SaveNetwork: %v", err)
	}
	restaurants := []model.Restaurant{
		{ID: "rst_a", Name: "Harbor Grill", NetworkID: "net_1", Lat: 37.7749, Lng: -122.4194, ClaimWindowMinutes: 45},
		{ID: "rst_b", Name: "Union Diner", NetworkID: "net_1", Lat: 37.8044, Lng: -122.2712, ClaimWindowMinutes: 45},
		{ID: "rst_c", Name: "Dockside Cafe", AutoApproveClaims: true},
	}
	for _, r := range restaurants {
		if err := st.SaveRestaurant(ctx, r); err != nil {
			t.Fatalf("SaveRestaurant: %v", err)
		}
	}

	workers := []model.WorkerProfile{
		// Network ratings 4.0 and 4.2, priorities 1600 and 1620.
		{ID: "wkr_p1", IdentityID: "idn_p1", RestaurantID: "rst_a", Positions: []string{"server"},
			Tier: model.TierPrimary, Status: model.StatusActive, ShiftsCompleted: 50, RatingSum: 100, RatingCount: 30},
		{ID: "wkr_p2", IdentityID: "idn_p2", RestaurantID: "rst_a", Positions: []string{"server"},
			Tier: model.TierPrimary, Status: model.StatusActive, ShiftsCompleted: 50, RatingSum: 110, RatingCount: 30},
		// Identical SECONDARY pair for tie-breaks.
		{ID: "wkr_s1", IdentityID: "idn_s1", RestaurantID: "rst_a", Positions: []string{"server"},
			Tier: model.TierSecondary, Status: model.StatusActive, ShiftsCompleted: 20},
		{ID: "wkr_s2", IdentityID: "idn_s2", RestaurantID: "rst_a", Positions: []string{"server"},
			Tier: model.TierSecondary, Status: model.StatusActive, ShiftsCompleted: 20},
		{ID: "wkr_pv", IdentityID: "idn_pv", RestaurantID: "rst_a", Positions: []string{"server"},
			Tier: model.TierPrimary, Status: model.StatusPendingVerification},
		// One identity employed at both restaurants.
		{ID: "wkr_x1", IdentityID: "idn_x", RestaurantID: "rst_a", Positions: []string{"server"},
			Tier: model.TierSecondary, Status: model.StatusActive},
		{ID: "wkr_x2", IdentityID: "idn_x", RestaurantID: "rst_b", Positions: []string{"server"},
			Tier: model.TierSecondary, Status: model.StatusActive},
		// Cross-restaurant claimant with network rating 3.5.
		{ID: "wkr_c", IdentityID: "idn_c", RestaurantID: "rst_b", Positions: []string{"server"},
			Tier: model.TierSecondary, Status: model.StatusActive, ShiftsCompleted: 35},
	}
	for _, p := range workers {
		if err := st.SaveProfile(ctx, p); err != nil {
			t.Fatalf("SaveProfile: %v", err)
		}
	}

	shift := model.Shift{
		ID:           "sft_1",
		RestaurantID: "rst_a",
		Position:     "server",
		StartTime:    base.Add(3 * time.Hour),
		EndTime:      base.Add(11 * time.Hour),
		Status:       model.ShiftStatusUnassigned,
	}
	if err := st.SaveShift(ctx, shift); err != nil {
		t.Fatalf("SaveShift: %v", err)
	}

	return &fixture{st: st, engine: engine, arbiter: arbiter, shift: shift}
}

func (f *fixture) submit(t *testing.T, shiftID, profileID string, now time.Time) model.ClaimResult {
	t.Helper()
	res, err := f.arbiter.Submit(context.Background(), shiftID, profileID, now)
	if err != nil {
		t.Fatalf("Submit(%s, %s): %v", shiftID, profileID, err)
	}
	return res
}

func assertRejectedWith(t *testing.T, res model.ClaimResult, code model.RejectionCode) {
	t.Helper()
	if res.Accepted {
		t.Fatalf("Accepted = true, want rejection %s", code)
	}
	if res.Rejection == nil || res.Rejection.Code != code {
		t.Fatalf("Rejection = %+v, want code %s", res.Rejection, code)
	}
	if res.Claim.Status != model.ClaimStatusRejected {
		t.Errorf("Claim.Status = %s, want %s", res.Claim.Status, model.ClaimStatusRejected)
	}
	if res.Claim.RejectionReason != code {
		t.Errorf("Claim.RejectionReason = %s, want %s", res.Claim.RejectionReason, code)
	}
}

func TestSubmitAcceptsAndArmsClaimWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.submit(t, "sft_1", "wkr_p1", base)
	if !res.Accepted {
		t.Fatalf("Accepted = false, rejection %+v", res.Rejection)
	}
	if res.Claim.Status != model.ClaimStatusPending {
		t.Errorf("Claim.Status = %s, want %s", res.Claim.Status, model.ClaimStatusPending)
	}
	if !floatNear(res.Claim.PriorityScore, 1600, 1e-6) {
		t.Errorf("PriorityScore = %v, want 1600", res.Claim.PriorityScore)
	}

	shift, err := f.st.GetShift(ctx, "sft_1")
	if err != nil {
		t.Fatalf("GetShift: %v", err)
	}
	if shift.Status != model.ShiftStatusClaimed {
		t.Errorf("shift.Status = %s, want %s", shift.Status, model.ShiftStatusClaimed)
	}
	if shift.ClaimWindowEndsAt == nil {
		t.Fatal("ClaimWindowEndsAt = nil, want armed window")
	}
	if want := base.Add(45 * time.Minute); !shift.ClaimWindowEndsAt.Equal(want) {
		t.Errorf("ClaimWindowEndsAt = %v, want %v", shift.ClaimWindowEndsAt, want)
	}
}

func TestSubmitIsIdempotentWhilePending(t *testing.T) {
	f := newFixture(t)

	first := f.submit(t, "sft_1", "wkr_p1", base)
	second := f.submit(t, "sft_1", "wkr_p1", base.Add(5*time.Minute))

	if second.Claim.ID != first.Claim.ID {
		t.Errorf("resubmission created a new claim: %s vs %s", second.Claim.ID, first.Claim.ID)
	}

	pending, err := f.st.ListClaimsByShift(context.Background(), "sft_1", model.ClaimStatusPending)
	if err != nil {
		t.Fatalf("ListClaimsByShift: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending claims = %d, want 1", len(pending))
	}
}

func TestSubmitRejectsUnverifiedWorker(t *testing.T) {
	f := newFixture(t)

	res := f.submit(t, "sft_1", "wkr_pv", base)
	assertRejectedWith(t, res, model.RejectionNotVerified)
}

func TestSubmitRejectsBelowShiftMinimum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.shift
	s.MinReputation = 4.0
	if err := f.st.SaveShift(ctx, s); err != nil {
		t.Fatalf("SaveShift: %v", err)
	}

	res := f.submit(t, "sft_1", "wkr_c", base)
	assertRejectedWith(t, res, model.RejectionBelowMinReputation)
	if got := res.Rejection.Detail["required_rating"]; got != 4.0 {
		t.Errorf("Detail[required_rating] = %v, want 4.0", got)
	}
	actual, ok := res.Rejection.Detail["actual_rating"].(float64)
	if !ok || !floatNear(actual, 3.5, 1e-9) {
		t.Errorf("Detail[actual_rating] = %v, want 3.5", res.Rejection.Detail["actual_rating"])
	}

	// The rejected attempt is persisted for the audit trail.
	rejected, err := f.st.ListClaimsByShift(ctx, "sft_1", model.ClaimStatusRejected)
	if err != nil {
		t.Fatalf("ListClaimsByShift: %v", err)
	}
	if len(rejected) != 1 || rejected[0].RejectionReason != model.RejectionBelowMinReputation {
		t.Errorf("persisted rejected claims = %+v, want one BELOW_MINIMUM_REPUTATION", rejected)
	}
}

func TestSubmitRejectsSchedulingConflictAcrossRestaurants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The identity wins the first shift through its rst_a profile.
	f.submit(t, "sft_1", "wkr_x1", base)
	if _, err := f.arbiter.Resolve(ctx, "sft_1", base.Add(45*time.Minute)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// An identical window at the other restaurant, claimed through the
	// same identity's other profile.
	twin := model.Shift{
		ID:           "sft_2",
		RestaurantID: "rst_b",
		Position:     "server",
		StartTime:    f.shift.StartTime,
		EndTime:      f.shift.EndTime,
		Status:       model.ShiftStatusUnassigned,
	}
	if err := f.st.SaveShift(ctx, twin); err != nil {
		t.Fatalf("SaveShift: %v", err)
	}

	res := f.submit(t, "sft_2", "wkr_x2", base.Add(time.Hour))
	assertRejectedWith(t, res, model.RejectionSchedulingConflict)
	if res.Rejection.Detail["conflicting_shift_id"] != "sft_1" {
		t.Errorf("Detail[conflicting_shift_id] = %v, want sft_1", res.Rejection.Detail["conflicting_shift_id"])
	}
}

func TestSubmitRejectsApprovedTimeOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	off := model.TimeOffRequest{
		ID:         "tmo_1",
		IdentityID: "idn_p1",
		StartTime:  base,
		EndTime:    base.Add(24 * time.Hour),
		Status:     model.TimeOffApproved,
	}
	if err := f.st.SaveTimeOff(ctx, off); err != nil {
		t.Fatalf("SaveTimeOff: %v", err)
	}

	res := f.submit(t, "sft_1", "wkr_p1", base)
	assertRejectedWith(t, res, model.RejectionTimeOffConflict)
	if res.Rejection.Detail["time_off_id"] != "tmo_1" {
		t.Errorf("Detail[time_off_id] = %v, want tmo_1", res.Rejection.Detail["time_off_id"])
	}
}

func TestResolvePicksHighestPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The 1600-priority claim arrives first; the 1620 one fifteen minutes
	// later still wins.
	lower := f.submit(t, "sft_1", "wkr_p1", base)
	higher := f.submit(t, "sft_1", "wkr_p2", base.Add(15*time.Minute))

	res, err := f.arbiter.Resolve(ctx, "sft_1", base.Add(45*time.Minute))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.WinnerClaimID != higher.Claim.ID {
		t.Errorf("WinnerClaimID = %s, want the 1620-priority claim %s", res.WinnerClaimID, higher.Claim.ID)
	}
	if res.ApprovedCount != 1 || res.RejectedCount != 1 {
		t.Errorf("counts = %d approved / %d rejected, want 1/1", res.ApprovedCount, res.RejectedCount)
	}
	if res.ShiftStatus != model.ShiftStatusConfirmed {
		t.Errorf("ShiftStatus = %s, want %s", res.ShiftStatus, model.ShiftStatusConfirmed)
	}

	shift, err := f.st.GetShift(ctx, "sft_1")
	if err != nil {
		t.Fatalf("GetShift: %v", err)
	}
	if shift.AssignedProfileID != "wkr_p2" {
		t.Errorf("AssignedProfileID = %s, want wkr_p2", shift.AssignedProfileID)
	}
	if shift.ClaimWindowEndsAt != nil {
		t.Error("ClaimWindowEndsAt still set after resolution")
	}

	loser, err := f.st.GetClaim(ctx, lower.Claim.ID)
	if err != nil {
		t.Fatalf("GetClaim: %v", err)
	}
	if loser.Status != model.ClaimStatusRejected || loser.RejectionReason != model.RejectionLostPriority {
		t.Errorf("losing claim = %s/%s, want REJECTED/LOST_TO_HIGHER_PRIORITY", loser.Status, loser.RejectionReason)
	}
}

func TestResolveTieBreaksOnSubmissionTime(t *testing.T) {
	f := newFixture(t)

	early := f.submit(t, "sft_1", "wkr_s2", base)
	late := f.submit(t, "sft_1", "wkr_s1", base.Add(10*time.Minute))
	if !floatNear(early.Claim.PriorityScore, late.Claim.PriorityScore, 1e-9) {
		t.Fatalf("fixture priorities differ: %v vs %v", early.Claim.PriorityScore, late.Claim.PriorityScore)
	}

	res, err := f.arbiter.Resolve(context.Background(), "sft_1", base.Add(45*time.Minute))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.WinnerClaimID != early.Claim.ID {
		t.Errorf("WinnerClaimID = %s, want the earlier submission %s", res.WinnerClaimID, early.Claim.ID)
	}
}

func TestResolveRevalidatesEmploymentDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim := f.submit(t, "sft_1", "wkr_p1", base)

	// The worker is terminated while the claim waits.
	p, err := f.st.GetProfile(ctx, "wkr_p1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	p.Status = model.StatusTerminated
	if err := f.st.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	res, err := f.arbiter.Resolve(ctx, "sft_1", base.Add(45*time.Minute))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.WinnerClaimID != "" || res.ApprovedCount != 0 {
		t.Errorf("resolution = %+v, want no winner", res)
	}
	if res.ShiftStatus != model.ShiftStatusUnassigned {
		t.Errorf("ShiftStatus = %s, want %s", res.ShiftStatus, model.ShiftStatusUnassigned)
	}

	got, err := f.st.GetClaim(ctx, claim.Claim.ID)
	if err != nil {
		t.Fatalf("GetClaim: %v", err)
	}
	if got.Status != model.ClaimStatusRejected || got.RejectionReason != model.RejectionNotVerified {
		t.Errorf("claim = %s/%s, want REJECTED/NOT_VERIFIED", got.Status, got.RejectionReason)
	}
}

func TestResolveConfirmedShiftReportsNotOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submit(t, "sft_1", "wkr_p1", base)
	if _, err := f.arbiter.Resolve(ctx, "sft_1", base.Add(45*time.Minute)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	_, err := f.arbiter.Resolve(ctx, "sft_1", base.Add(time.Hour))
	if !errors.Is(err, ErrShiftNotOpen) {
		t.Fatalf("second Resolve error = %v, want ErrShiftNotOpen", err)
	}
}

func TestResolveContendedLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := DefaultParams()
	p.LockWait = 10 * time.Millisecond
	arbiter := NewArbiter(f.st, f.arbiter.resolver, f.engine, events.NewPublisher("claims-test", ""), p)

	release, err := arbiter.locks.acquire(ctx, "sft_1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, err = arbiter.Resolve(ctx, "sft_1", base.Add(45*time.Minute))
	if !errors.Is(err, ErrResolutionContended) {
		t.Fatalf("Resolve error = %v, want ErrResolutionContended", err)
	}
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const claimants = 20
	for i := 0; i < claimants; i++ {
		p := model.WorkerProfile{
			ID:         "wkr_stress_" + string(rune('a'+i)),
			IdentityID: "idn_stress_" + string(rune('a'+i)),

			RestaurantID: "rst_a",
			Positions:    []string{"server"},
			Tier:         model.TierSecondary,
			Status:       model.StatusActive,
		}
		if err := f.st.SaveProfile(ctx, p); err != nil {
			t.Fatalf("SaveProfile: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.arbiter.Submit(ctx, "sft_1", id, base); err != nil {
				t.Errorf("Submit(%s): %v", id, err)
			}
		}("wkr_stress_" + string(rune('a'+i)))
	}
	wg.Wait()

	res, err := f.arbiter.Resolve(ctx, "sft_1", base.Add(45*time.Minute))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ApprovedCount != 1 {
		t.Errorf("ApprovedCount = %d, want 1", res.ApprovedCount)
	}
	if res.RejectedCount != claimants-1 {
		t.Errorf("RejectedCount = %d, want %d", res.RejectedCount, claimants-1)
	}

	approved, err := f.st.ListClaimsByShift(ctx, "sft_1", model.ClaimStatusApproved)
	if err != nil {
		t.Fatalf("ListClaimsByShift: %v", err)
	}
	if len(approved) != 1 {
		t.Fatalf("approved claims = %d, want exactly 1", len(approved))
	}

	shift, err := f.st.GetShift(ctx, "sft_1")
	if err != nil {
		t.Fatalf("GetShift: %v", err)
	}
	if shift.Status != model.ShiftStatusConfirmed {
		t.Errorf("shift.Status = %s, want %s", shift.Status, model.ShiftStatusConfirmed)
	}
	if shift.AssignedProfileID != approved[0].ProfileID {
		t.Errorf("AssignedProfileID = %s, want winner %s", shift.AssignedProfileID, approved[0].ProfileID)
	}
}

func TestConcurrentResolutionsSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submit(t, "sft_1", "wkr_p1", base)
	f.submit(t, "sft_1", "wkr_p2", base.Add(time.Minute))

	const resolvers = 4
	results := make(chan error, resolvers)
	var approvals sync.Map
	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.arbiter.Resolve(ctx, "sft_1", base.Add(45*time.Minute))
			if err == nil && res.WinnerClaimID != "" {
				approvals.Store(res.WinnerClaimID, true)
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrShiftNotOpen) && !errors.Is(err, ErrResolutionContended) {
			t.Errorf("unexpected resolve error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("successful resolutions = %d, want exactly 1", succeeded)
	}

	winners := 0
	approvals.Range(func(_, _ any) bool { winners++; return true })
	if winners != 1 {
		t.Errorf("distinct winners = %d, want 1", winners)
	}

	approved, err := f.st.ListClaimsByShift(ctx, "sft_1", model.ClaimStatusApproved)
	if err != nil {
		t.Fatalf("ListClaimsByShift: %v", err)
	}
	if len(approved) != 1 {
		t.Errorf("approved claims = %d, want exactly 1", len(approved))
	}
}

func TestAssignConfirmsAndDisplacesPendingClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.submit(t, "sft_1", "wkr_p1", base)

	res, err := f.arbiter.Assign(ctx, "sft_1", "wkr_s1", base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !res.Assigned {
		t.Fatalf("Assigned = false, rejection %+v", res.Rejection)
	}
	if res.Shift.Status != model.ShiftStatusConfirmed {
		t.Errorf("Shift.Status = %s, want %s", res.Shift.Status, model.ShiftStatusConfirmed)
	}
	if res.Shift.AssignedProfileID != "wkr_s1" {
		t.Errorf("AssignedProfileID = %s, want wkr_s1", res.Shift.AssignedProfileID)
	}
	if res.Shift.ClaimWindowEndsAt != nil {
		t.Error("ClaimWindowEndsAt still set after direct assignment")
	}

	// The displaced claimant hears the outcome.
	displaced, err := f.st.GetClaim(ctx, pending.Claim.ID)
	if err != nil {
		t.Fatalf("GetClaim: %v", err)
	}
	if displaced.Status != model.ClaimStatusRejected || displaced.RejectionReason != model.RejectionOutsideWindow {
		t.Errorf("displaced claim = %s/%s, want REJECTED/OUTSIDE_VISIBILITY_WINDOW", displaced.Status, displaced.RejectionReason)
	}
	if displaced.ResolvedAt == nil {
		t.Error("displaced claim ResolvedAt = nil, want set")
	}
}

func TestAssignHonorsWorkerGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.arbiter.Assign(ctx, "sft_1", "wkr_pv", base)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Assigned {
		t.Fatal("Assigned = true for an unverified worker")
	}
	if res.Rejection == nil || res.Rejection.Code != model.RejectionNotVerified {
		t.Fatalf("Rejection = %+v, want code NOT_VERIFIED", res.Rejection)
	}

	shift, err := f.st.GetShift(ctx, "sft_1")
	if err != nil {
		t.Fatalf("GetShift: %v", err)
	}
	if shift.Status != model.ShiftStatusUnassigned || shift.AssignedProfileID != "" {
		t.Errorf("shift = %s/%q, want an untouched open shift", shift.Status, shift.AssignedProfileID)
	}
}

func TestAssignRequiresOpenShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.arbiter.Assign(ctx, "sft_1", "wkr_s1", base); err != nil {
		t.Fatalf("first Assign: %v", err)
	}

	_, err := f.arbiter.Assign(ctx, "sft_1", "wkr_s2", base.Add(time.Minute))
	if !errors.Is(err, ErrShiftNotOpen) {
		t.Fatalf("second Assign error = %v, want ErrShiftNotOpen", err)
	}
}

func TestCancelRejectsPendingClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	one := f.submit(t, "sft_1", "wkr_p1", base)
	two := f.submit(t, "sft_1", "wkr_s1", base.Add(5*time.Minute))

	shift, err := f.arbiter.Cancel(ctx, "sft_1", base.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if shift.Status != model.ShiftStatusCancelled {
		t.Errorf("Status = %s, want %s", shift.Status, model.ShiftStatusCancelled)
	}
	if shift.ClaimWindowEndsAt != nil {
		t.Error("ClaimWindowEndsAt still set after cancellation")
	}

	for _, id := range []string{one.Claim.ID, two.Claim.ID} {
		c, err := f.st.GetClaim(ctx, id)
		if err != nil {
			t.Fatalf("GetClaim(%s): %v", id, err)
		}
		if c.Status != model.ClaimStatusRejected || c.RejectionReason != model.RejectionOutsideWindow {
			t.Errorf("claim %s = %s/%s, want REJECTED/OUTSIDE_VISIBILITY_WINDOW", id, c.Status, c.RejectionReason)
		}
	}
}

func TestCancelRejectsTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.arbiter.Cancel(ctx, "sft_1", base); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	_, err := f.arbiter.Cancel(ctx, "sft_1", base.Add(time.Minute))
	if !errors.Is(err, ErrInvalidShiftState) {
		t.Fatalf("second Cancel error = %v, want ErrInvalidShiftState", err)
	}
}

// Helper function to compare floats with tolerance
func floatNear(a, b, tolerance float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
