// Package visibility decides which workers can see and claim which shifts.
// The phase is recomputed from the clock on every query and never stored.
// Gates run in a fixed order and the first failure becomes the reported
// reason; missing restaurant or network configuration fails closed instead
// of erroring.
package visibility

import (
	"context"
	"errors"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/reputation"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/store"
)

// Decision is the outcome of resolving one shift for one viewer. Rejection
// is set exactly when Visible is false.
type Decision struct {
	Phase        model.VisibilityPhase
	Visible      bool
	CrossNetwork bool
	Rejection    *model.Rejection
}

type Resolver struct {
	store        store.Store
	reputation   *reputation.Engine
	defaultDelay time.Duration
}

func NewResolver(st store.Store, eng *reputation.Engine, defaultDelay time.Duration) *Resolver {
	return &Resolver{store: st, reputation: eng, defaultDelay: defaultDelay}
}

// PhaseAt derives the visibility phase of a shift at the given instant. A
// started shift is CLOSED. Far enough from start, with cross-restaurant
// claiming enabled, the shift is network-wide; inside the delay it belongs
// to its own restaurant again.
func PhaseAt(s model.Shift, delay time.Duration, crossEnabled bool, now time.Time) model.VisibilityPhase {
	if !now.Before(s.StartTime) {
		return model.PhaseClosed
	}
	if crossEnabled && s.StartTime.Sub(now) >= delay {
		return model.PhaseNetwork
	}
	return model.PhaseOwnRestaurant
}

// Resolve evaluates every gate between the viewer and the shift. Gating
// failures come back as a Decision with a Rejection, never as an error;
// errors are reserved for storage faults.
func (r *Resolver) Resolve(ctx context.Context, shift model.Shift, viewer model.WorkerProfile, now time.Time) (Decision, error) {
	cfg, err := r.configFor(ctx, shift.RestaurantID)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Phase: PhaseAt(shift, cfg.delay, cfg.cross, now)}

	if !shift.Status.Open() {
		return reject(d, model.RejectionOutsideWindow, "shift is not open for claims", nil), nil
	}
	if d.Phase == model.PhaseClosed {
		return reject(d, model.RejectionOutsideWindow, "shift has already started", nil), nil
	}

	if viewer.RestaurantID == shift.RestaurantID {
		d.Visible = true
		return d, nil
	}
	d.CrossNetwork = true

	if d.Phase != model.PhaseNetwork {
		if cfg.network == nil || !cfg.network.CrossRestaurantEnabled {
			return reject(d, model.RejectionNetworkDisabled, "cross-restaurant claiming is not enabled", nil), nil
		}
		return reject(d, model.RejectionOutsideWindow, "shift is inside its own restaurant's priority window", nil), nil
	}

	return r.crossGates(ctx, cfg, shift, viewer, d)
}

// Revalidate re-checks the gates that can drift while a claim waits for
// resolution: network membership, position, reputation, and distance. The
// submission-time visibility window is not re-examined.
func (r *Resolver) Revalidate(ctx context.Context, shift model.Shift, viewer model.WorkerProfile, now time.Time) (Decision, error) {
	cfg, err := r.configFor(ctx, shift.RestaurantID)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Phase: PhaseAt(shift, cfg.delay, cfg.cross, now)}

	if viewer.RestaurantID == shift.RestaurantID {
		d.Visible = true
		return d, nil
	}
	d.CrossNetwork = true

	return r.crossGates(ctx, cfg, shift, viewer, d)
}

// crossGates runs the different-restaurant gate chain in order: enabled
// network, shared membership, position, network then shift reputation
// minimums, travel distance.
func (r *Resolver) crossGates(ctx context.Context, cfg ownerConfig, shift model.Shift, viewer model.WorkerProfile, d Decision) (Decision, error) {
	if cfg.network == nil || !cfg.network.CrossRestaurantEnabled {
		return reject(d, model.RejectionNetworkDisabled, "cross-restaurant claiming is not enabled", nil), nil
	}

	viewerRst, err := r.store.GetRestaurant(ctx, viewer.RestaurantID)
	if errors.Is(err, store.ErrRestaurantNotFound) {
		return reject(d, model.RejectionNetworkDisabled, "worker's restaurant is not in this network", nil), nil
	}
	if err != nil {
		return Decision{}, err
	}
	if viewerRst.NetworkID == "" || viewerRst.NetworkID != cfg.owner.NetworkID {
		return reject(d, model.RejectionNetworkDisabled, "worker's restaurant is not in this network", nil), nil
	}

	if shift.Position != "" && !viewer.HoldsPosition(shift.Position) {
		return reject(d, model.RejectionPositionNotHeld, "worker does not hold the required position",
			map[string]any{"position": shift.Position}), nil
	}

	if cfg.network.MinReputation > 0 || shift.MinReputation > 0 {
		rating, err := r.viewerRating(ctx, viewer.IdentityID)
		if err != nil {
			return Decision{}, err
		}
		if cfg.network.MinReputation > 0 && rating < cfg.network.MinReputation {
			return reject(d, model.RejectionBelowMinReputation, "network reputation below the network minimum",
				map[string]any{"required_rating": cfg.network.MinReputation, "actual_rating": rating, "scope": "network"}), nil
		}
		if shift.MinReputation > 0 && rating < shift.MinReputation {
			return reject(d, model.RejectionBelowMinReputation, "network reputation below the shift minimum",
				map[string]any{"required_rating": shift.MinReputation, "actual_rating": rating, "scope": "shift"}), nil
		}
	}

	if cfg.network.MaxDistanceMiles > 0 {
		dist := HaversineMiles(viewerRst.Lat, viewerRst.Lng, cfg.owner.Lat, cfg.owner.Lng)
		if dist > cfg.network.MaxDistanceMiles {
			return reject(d, model.RejectionOutsideMaxDistance, "restaurant is beyond the network's travel distance",
				map[string]any{"distance_miles": dist, "max_distance_miles": cfg.network.MaxDistanceMiles}), nil
		}
	}

	d.Visible = true
	return d, nil
}

// ownerConfig is the shift-side configuration for one resolution. Either
// pointer may be nil when the record is missing; gating then fails closed.
type ownerConfig struct {
	owner   *model.Restaurant
	network *model.Network
	delay   time.Duration
	cross   bool
}

func (r *Resolver) configFor(ctx context.Context, restaurantID string) (ownerConfig, error) {
	cfg := ownerConfig{delay: r.defaultDelay}

	rst, err := r.store.GetRestaurant(ctx, restaurantID)
	if errors.Is(err, store.ErrRestaurantNotFound) {
		return cfg, nil
	}
	if err != nil {
		return ownerConfig{}, err
	}
	cfg.owner = &rst
	if rst.VisibilityDelayMinutes > 0 {
		cfg.delay = time.Duration(rst.VisibilityDelayMinutes) * time.Minute
	}
	if rst.NetworkID == "" {
		return cfg, nil
	}

	nw, err := r.store.GetNetwork(ctx, rst.NetworkID)
	if errors.Is(err, store.ErrNetworkNotFound) {
		return cfg, nil
	}
	if err != nil {
		return ownerConfig{}, err
	}
	cfg.network = &nw
	cfg.cross = nw.CrossRestaurantEnabled
	return cfg, nil
}

// viewerRating returns the viewer's network rating on the 0-5 scale. An
// identity with no profiles rates 0 and fails any configured minimum.
func (r *Resolver) viewerRating(ctx context.Context, identityID string) (float64, error) {
	rep, err := r.reputation.NetworkReputation(ctx, identityID)
	if errors.Is(err, reputation.ErrIdentityNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rep.Rating(), nil
}

func reject(d Decision, code model.RejectionCode, msg string, detail map[string]any) Decision {
	d.Visible = false
	d.Rejection = &model.Rejection{Code: code, Message: msg, Detail: detail}
	return d
}
