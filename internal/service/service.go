// Package service is the operational facade over the allocation core. It
// owns the lifecycle of restaurants, networks, workers, shifts, and time
// off, and delegates visibility, reputation, and claim arbitration to the
// engines underneath.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/claims"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/events"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/reputation"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/store"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/visibility"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRequest wraps every request validation failure.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidState means the entity's current status forbids the
	// requested operation.
	ErrInvalidState = errors.New("invalid state for this operation")
)

type Service struct {
	store      store.Store
	reputation *reputation.Engine
	resolver   *visibility.Resolver
	arbiter    *claims.Arbiter
	events     *events.Publisher
}

func New(st store.Store, eng *reputation.Engine, res *visibility.Resolver, arb *claims.Arbiter, pub *events.Publisher) *Service {
	return &Service{
		store:      st,
		reputation: eng,
		resolver:   res,
		arbiter:    arb,
		events:     pub,
	}
}

// GetVisibleShifts builds a worker's feed: every open shift at their own
// restaurant plus, when the network allows it, open shifts at sibling
// restaurants, each filtered through the visibility gate chain.
func (s *Service) GetVisibleShifts(ctx context.Context, profileID string, now time.Time) ([]model.ShiftWithVisibility, error) {
	viewer, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	restaurantIDs := []string{viewer.RestaurantID}
	home, err := s.store.GetRestaurant(ctx, viewer.RestaurantID)
	if err != nil && !errors.Is(err, store.ErrRestaurantNotFound) {
		return nil, err
	}
	if err == nil && home.NetworkID != "" {
		nw, err := s.store.GetNetwork(ctx, home.NetworkID)
		if err != nil && !errors.Is(err, store.ErrNetworkNotFound) {
			return nil, err
		}
		if err == nil && nw.CrossRestaurantEnabled {
			members, err := s.store.ListRestaurantsByNetwork(ctx, home.NetworkID)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				if m.ID != viewer.RestaurantID {
					restaurantIDs = append(restaurantIDs, m.ID)
				}
			}
		}
	}

	shifts, err := s.store.ListOpenShiftsByRestaurants(ctx, restaurantIDs)
	if err != nil {
		return nil, err
	}

	feed := make([]model.ShiftWithVisibility, 0, len(shifts))
	for _, sh := range shifts {
		d, err := s.resolver.Resolve(ctx, sh, viewer, now)
		if err != nil {
			return nil, err
		}
		if !d.Visible {
			continue
		}
		feed = append(feed, model.ShiftWithVisibility{
			Shift:        sh,
			Phase:        d.Phase,
			CrossNetwork: d.CrossNetwork,
			EstimatedPay: estimatedPay(sh),
		})
	}
	return feed, nil
}

// SubmitClaim runs one claim attempt through the arbiter. When the shift's
// restaurant auto-approves, a successful submission resolves the shift
// immediately instead of waiting out the claim window.
func (s *Service) SubmitClaim(ctx context.Context, shiftID, profileID string, now time.Time) (model.ClaimResult, error) {
	res, err := s.arbiter.Submit(ctx, shiftID, profileID, now)
	if err != nil || !res.Accepted {
		return res, err
	}

	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return res, nil
	}
	rst, err := s.store.GetRestaurant(ctx, shift.RestaurantID)
	if err != nil || !rst.AutoApproveClaims {
		return res, nil
	}

	if _, err := s.arbiter.Resolve(ctx, shiftID, now); err != nil {
		// The claim stays pending; an explicit resolve can settle it later.
		slog.WarnContext(ctx, "auto_resolution_failed", "shift_id", shiftID, "error", err)
		return res, nil
	}

	claim, err := s.store.GetClaim(ctx, res.Claim.ID)
	if err != nil {
		return res, nil
	}
	res.Claim = claim
	if claim.Status == model.ClaimStatusRejected {
		res.Accepted = false
		res.Rejection = &model.Rejection{
			Code:    claim.RejectionReason,
			Message: "claim was rejected at resolution",
		}
	}
	return res, nil
}

// ResolveClaims settles every pending claim on the shift.
func (s *Service) ResolveClaims(ctx context.Context, shiftID string, now time.Time) (model.Resolution, error) {
	return s.arbiter.Resolve(ctx, shiftID, now)
}

// GetNetworkReputation returns the cached cross-restaurant aggregate for a
// worker identity.
func (s *Service) GetNetworkReputation(ctx context.Context, identityID string) (model.NetworkReputation, error) {
	return s.reputation.NetworkReputation(ctx, identityID)
}

// GetReputationBreakdown returns the per-restaurant slices behind the
// aggregate, always freshly computed.
func (s *Service) GetReputationBreakdown(ctx context.Context, identityID string) ([]model.RestaurantReputation, error) {
	return s.reputation.Breakdown(ctx, identityID)
}

func (s *Service) GetShift(ctx context.Context, id string) (model.Shift, error) {
	return s.store.GetShift(ctx, id)
}

func (s *Service) GetWorker(ctx context.Context, id string) (model.WorkerProfile, error) {
	return s.store.GetProfile(ctx, id)
}

// ListClaims returns every claim recorded against a shift, including the
// rejected ones kept for the audit trail.
func (s *Service) ListClaims(ctx context.Context, shiftID string) ([]model.Claim, error) {
	if _, err := s.store.GetShift(ctx, shiftID); err != nil {
		return nil, err
	}
	return s.store.ListClaimsByShift(ctx, shiftID, "")
}

// estimatedPay prices a shift as rate times hours, rounded to cents. The
// rate was validated at publish, so a parse failure leaves the field empty
// rather than failing the feed.
func estimatedPay(sh model.Shift) string {
	rate, err := decimal.NewFromString(sh.PayRate)
	if err != nil {
		return ""
	}
	hours := decimal.NewFromFloat(sh.Hours())
	return rate.Mul(hours).Round(2).String()
}

func generateID(prefix string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return prefix + "_" + hex.EncodeToString(b[:])
}
