// Package reputation computes per-restaurant reliability scores and the
// cross-restaurant network composite. Scores are always derivable from raw
// profile counters; the cache only shortcuts recomputation.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/cache"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/store"
	"golang.org/x/sync/singleflight"
)

var ErrIdentityNotFound = errors.New("worker identity has no profiles")

const (
	// Reliability scale.
	neutralReliability = 3.0
	noShowWeight       = 2.0
	lateWeight         = 0.5

	// Composite scale (0-500, a 0-5 rating times 100).
	MaxCompositeScore = 500.0
	volumeWeight      = 2.0
	volumeCap         = 100.0
	ratingWeight      = 60.0
	noShowPenalty     = 15.0

	// NoShowDecayFactor discounts accumulated no-shows with a flat
	// multiplier.
	// TODO: decay each incident by its age against a configurable
	// half-life instead of one flat factor; the flat factor never
	// forgives old infractions.
	NoShowDecayFactor = 0.8
)

// Reliability derives the 1-5 per-restaurant score from raw counters. A
// profile with no completed shifts scores a neutral 3.0.
func Reliability(p model.WorkerProfile) float64 {
	if p.ShiftsCompleted <= 0 {
		return neutralReliability
	}

	score := neutralReliability
	if p.RatingCount > 0 {
		score = float64(p.RatingSum) / float64(p.RatingCount)
	}

	completed := float64(p.ShiftsCompleted)
	score -= float64(p.NoShowCount) / completed * noShowWeight
	score -= float64(p.LateCount) / completed * lateWeight

	switch {
	case p.ShiftsCompleted >= 50:
		score += 0.2
	case p.ShiftsCompleted >= 20:
		score += 0.1
	}

	return clamp(score, 1, 5)
}

// Composite aggregates every profile of one identity into the 0-500 network
// score.
func Composite(profiles []model.WorkerProfile) float64 {
	var totalShifts, totalNoShows, ratingSum, ratingCount int
	for _, p := range profiles {
		totalShifts += p.ShiftsCompleted
		totalNoShows += p.NoShowCount
		ratingSum += p.RatingSum
		ratingCount += p.RatingCount
	}

	volume := math.Min(float64(totalShifts)*volumeWeight, volumeCap)

	avgRating := neutralReliability
	if ratingCount > 0 {
		avgRating = float64(ratingSum) / float64(ratingCount)
	}

	score := volume + avgRating*ratingWeight + reliabilityBonus(totalShifts, totalNoShows)

	effectiveNoShows := float64(totalNoShows) * NoShowDecayFactor
	score -= effectiveNoShows * noShowPenalty

	return clamp(score, 0, MaxCompositeScore)
}

// reliabilityBonus rewards a demonstrated completion rate; a worker with no
// attempts yet has demonstrated nothing and earns no bonus.
func reliabilityBonus(completed, noShows int) float64 {
	attempts := completed + noShows
	if attempts == 0 {
		return 0
	}
	pct := float64(completed) / float64(attempts) * 100
	switch {
	case pct >= 95:
		return 100
	case pct >= 90:
		return 50
	case pct >= 80:
		return 20
	default:
		return 0
	}
}

// TierFor maps a composite score onto the network tier ladder.
func TierFor(score float64) model.ReputationTier {
	switch {
	case score >= 450:
		return model.ReputationPlatinum
	case score >= 400:
		return model.ReputationGold
	case score >= 350:
		return model.ReputationSilver
	default:
		return model.ReputationBronze
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Engine serves network reputation through a TTL cache. Concurrent misses
// for one identity collapse into a single recomputation.
type Engine struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewEngine(st store.Store, c cache.Cache, ttl time.Duration) *Engine {
	return &Engine{store: st, cache: c, ttl: ttl}
}

func cacheKey(identityID string) string {
	return "netrep:" + identityID
}

// NetworkReputation returns the cached aggregate, recomputing on a miss.
// A cache read failure degrades to recomputation; it never fails the call.
func (e *Engine) NetworkReputation(ctx context.Context, identityID string) (model.NetworkReputation, error) {
	key := cacheKey(identityID)

	cached, err := e.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "reputation_cache_read_failed", "identity_id", identityID, "error", err)
	} else if cached != nil {
		return *cached, nil
	}

	v, err, _ := e.group.Do(identityID, func() (any, error) {
		rep, err := e.compute(ctx, identityID)
		if err != nil {
			return model.NetworkReputation{}, err
		}
		if err := e.cache.Set(ctx, key, rep, e.ttl); err != nil {
			slog.WarnContext(ctx, "reputation_cache_write_failed", "identity_id", identityID, "error", err)
		}
		return rep, nil
	})
	if err != nil {
		return model.NetworkReputation{}, err
	}
	return v.(model.NetworkReputation), nil
}

// Breakdown returns the per-restaurant view, always computed fresh.
func (e *Engine) Breakdown(ctx context.Context, identityID string) ([]model.RestaurantReputation, error) {
	profiles, err := e.store.ListProfilesByIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, ErrIdentityNotFound
	}
	return e.breakdown(ctx, profiles), nil
}

// Invalidate drops the cached aggregate after a counter mutation.
func (e *Engine) Invalidate(ctx context.Context, identityID string) {
	if err := e.cache.Delete(ctx, cacheKey(identityID)); err != nil {
		slog.WarnContext(ctx, "reputation_cache_invalidate_failed", "identity_id", identityID, "error", err)
	}
}

func (e *Engine) compute(ctx context.Context, identityID string) (model.NetworkReputation, error) {
	profiles, err := e.store.ListProfilesByIdentity(ctx, identityID)
	if err != nil {
		return model.NetworkReputation{}, fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) == 0 {
		return model.NetworkReputation{}, ErrIdentityNotFound
	}

	rep := model.NetworkReputation{
		IdentityID:  identityID,
		Restaurants: e.breakdown(ctx, profiles),
		ComputedAt:  time.Now().UTC(),
	}

	var ratingSum, ratingCount int
	for _, p := range profiles {
		rep.TotalShifts += p.ShiftsCompleted
		rep.TotalHours += p.HoursWorked
		rep.TotalNoShows += p.NoShowCount
		ratingSum += p.RatingSum
		ratingCount += p.RatingCount
	}
	if ratingCount > 0 {
		rep.AverageRating = float64(ratingSum) / float64(ratingCount)
	}

	rep.CompositeScore = Composite(profiles)
	rep.Tier = TierFor(rep.CompositeScore)

	return rep, nil
}

func (e *Engine) breakdown(ctx context.Context, profiles []model.WorkerProfile) []model.RestaurantReputation {
	out := make([]model.RestaurantReputation, 0, len(profiles))
	for _, p := range profiles {
		entry := model.RestaurantReputation{
			RestaurantID:     p.RestaurantID,
			ProfileID:        p.ID,
			WorkerTier:       p.Tier,
			ReliabilityScore: Reliability(p),
			ShiftsCompleted:  p.ShiftsCompleted,
			NoShowCount:      p.NoShowCount,
			LateCount:        p.LateCount,
			HoursWorked:      p.HoursWorked,
		}
		if p.RatingCount > 0 {
			entry.AverageRating = float64(p.RatingSum) / float64(p.RatingCount)
		}
		if r, err := e.store.GetRestaurant(ctx, p.RestaurantID); err == nil {
			entry.RestaurantName = r.Name
		}
		out = append(out, entry)
	}
	return out
}
