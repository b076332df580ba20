package reputation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/cache"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/store"
)

func TestReliability(t *testing.T) {
	tests := []struct {
		name string
		p    model.WorkerProfile
		want float64
	}{
		{
			name: "ratings average in",
			p:    model.WorkerProfile{ShiftsCompleted: 10, RatingSum: 40, RatingCount: 10},
			want: 4.0,
		},
		{
			name: "one no-show in ten costs a fifth of the scale",
			p:    model.WorkerProfile{ShiftsCompleted: 10, NoShowCount: 1, RatingSum: 40, RatingCount: 10},
			want: 3.8,
		},
		{
			name: "late arrivals cost a quarter of a no-show",
			p:    model.WorkerProfile{ShiftsCompleted: 10, LateCount: 2},
			want: 2.9,
		},
		{
			name: "twenty completed shifts earn the small bonus",
			p:    model.WorkerProfile{ShiftsCompleted: 20},
			want: 3.1,
		},
		{
			name: "fifty completed shifts earn the large bonus",
			p:    model.WorkerProfile{ShiftsCompleted: 50},
			want: 3.2,
		},
		{
			name: "floor at one",
			p:    model.WorkerProfile{ShiftsCompleted: 4, NoShowCount: 8},
			want: 1.0,
		},
		{
			name: "ceiling at five",
			p:    model.WorkerProfile{ShiftsCompleted: 50, RatingSum: 250, RatingCount: 50},
			want: 5.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reliability(tt.p)
			if !floatNear(got, tt.want, 1e-9) {
				t.Errorf("Reliability() = %v, want %v", got, tt.want)
			}
			if got < 1 || got > 5 {
				t.Errorf("Reliability() = %v, outside [1, 5]", got)
			}
		})
	}
}

func TestReliabilityNoHistoryIsExactlyNeutral(t *testing.T) {
	got := Reliability(model.WorkerProfile{})
	if got != 3.0 {
		t.Fatalf("Reliability(zero profile) = %v, want exactly 3.0", got)
	}
}

func TestComposite(t *testing.T) {
	tests := []struct {
		name     string
		profiles []model.WorkerProfile
		want     float64
	}{
		{
			name:     "no history scores the neutral rating term only",
			profiles: []model.WorkerProfile{{}},
			want:     180, // 3.0 * 60, no volume, no bonus
		},
		{
			name: "strong single profile",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 50, RatingSum: 225, RatingCount: 50},
			},
			want: 470, // 100 + 4.5*60 + 100
		},
		{
			name: "volume term capped",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 200},
			},
			want: 380, // 100 + 180 + 100
		},
		{
			name: "aggregates counters across profiles",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 30, RatingSum: 120, RatingCount: 30},
				{ShiftsCompleted: 20, RatingSum: 100, RatingCount: 20},
			},
			want: 464, // 100 + 4.4*60 + 100
		},
		{
			name: "no-shows decay then cost fifteen points each",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 50, RatingSum: 225, RatingCount: 50, NoShowCount: 2},
			},
			want: 446, // 470 - 2*0.8*15
		},
		{
			name: "ninety five percent completion keeps the full bonus",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 19, NoShowCount: 1},
			},
			want: 306, // 38 + 180 + 100 - 12
		},
		{
			name: "ninety percent completion halves the bonus",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 18, NoShowCount: 2},
			},
			want: 242, // 36 + 180 + 50 - 24
		},
		{
			name: "eighty percent completion leaves a sliver",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 16, NoShowCount: 4},
			},
			want: 184, // 32 + 180 + 20 - 48
		},
		{
			name: "below eighty percent earns nothing",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 15, NoShowCount: 5},
			},
			want: 150, // 30 + 180 + 0 - 60
		},
		{
			name: "floor at zero",
			profiles: []model.WorkerProfile{
				{ShiftsCompleted: 10, NoShowCount: 30},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Composite(tt.profiles)
			if !floatNear(got, tt.want, 1e-9) {
				t.Errorf("Composite() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > MaxCompositeScore {
				t.Errorf("Composite() = %v, outside [0, %v]", got, MaxCompositeScore)
			}
		})
	}
}

func TestCompositeMonotonicInNoShows(t *testing.T) {
	prev := Composite([]model.WorkerProfile{{ShiftsCompleted: 40, RatingSum: 160, RatingCount: 40}})
	for noShows := 1; noShows <= 10; noShows++ {
		got := Composite([]model.WorkerProfile{
			{ShiftsCompleted: 40, RatingSum: 160, RatingCount: 40, NoShowCount: noShows},
		})
		if got > prev {
			t.Fatalf("Composite with %d no-shows = %v, above %v with %d", noShows, got, prev, noShows-1)
		}
		prev = got
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  model.ReputationTier
	}{
		{"maximum score", 500, model.ReputationPlatinum},
		{"platinum boundary", 450, model.ReputationPlatinum},
		{"just below platinum", 449.9, model.ReputationGold},
		{"gold boundary", 400, model.ReputationGold},
		{"just below gold", 399.9, model.ReputationSilver},
		{"silver boundary", 350, model.ReputationSilver},
		{"just below silver", 349.9, model.ReputationBronze},
		{"zero score", 0, model.ReputationBronze},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierFor(tt.score); got != tt.want {
				t.Errorf("TierFor(%v) = %v, want %v", tt.score, got, tt.want)
			}
		})
	}
}

func seedWorker(t *testing.T, st *store.MemoryStore) string {
	t.Helper()
	ctx := context.Background()

	restaurants := []model.Restaurant{
		{ID: "rst_a", Name: "Harbor Grill", NetworkID: "net_1"},
		{ID: "rst_b", Name: "Union Diner", NetworkID: "net_1"},
	}
	for _, r := range restaurants {
		if err := st.SaveRestaurant(ctx, r); err != nil {
			t.Fatalf("SaveRestaurant: %v", err)
		}
	}

	profiles := []model.WorkerProfile{
		{ID: "wkr_a", IdentityID: "idn_1", RestaurantID: "rst_a", Tier: model.TierPrimary,
			ShiftsCompleted: 30, RatingSum: 120, RatingCount: 30},
		{ID: "wkr_b", IdentityID: "idn_1", RestaurantID: "rst_b", Tier: model.TierSecondary,
			ShiftsCompleted: 20, RatingSum: 100, RatingCount: 20},
	}
	for _, p := range profiles {
		if err := st.SaveProfile(ctx, p); err != nil {
			t.Fatalf("SaveProfile: %v", err)
		}
	}
	return "idn_1"
}

func TestEngineNetworkReputation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	engine := NewEngine(st, cache.NewMemoryCache(), time.Hour)
	identityID := seedWorker(t, st)

	rep, err := engine.NetworkReputation(ctx, identityID)
	if err != nil {
		t.Fatalf("NetworkReputation: %v", err)
	}
	if !floatNear(rep.CompositeScore, 464, 1e-9) {
		t.Errorf("CompositeScore = %v, want 464", rep.CompositeScore)
	}
	if rep.Tier != model.ReputationPlatinum {
		t.Errorf("Tier = %v, want %v", rep.Tier, model.ReputationPlatinum)
	}
	if rep.TotalShifts != 50 {
		t.Errorf("TotalShifts = %d, want 50", rep.TotalShifts)
	}
	if !floatNear(rep.AverageRating, 4.4, 1e-9) {
		t.Errorf("AverageRating = %v, want 4.4", rep.AverageRating)
	}
	if len(rep.Restaurants) != 2 {
		t.Fatalf("Restaurants = %d entries, want 2", len(rep.Restaurants))
	}
	if rep.Restaurants[0].RestaurantName != "Harbor Grill" {
		t.Errorf("RestaurantName = %q, want %q", rep.Restaurants[0].RestaurantName, "Harbor Grill")
	}
}

func TestEngineCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	engine := NewEngine(st, cache.NewMemoryCache(), time.Hour)
	identityID := seedWorker(t, st)

	before, err := engine.NetworkReputation(ctx, identityID)
	if err != nil {
		t.Fatalf("NetworkReputation: %v", err)
	}

	p, err := st.GetProfile(ctx, "wkr_a")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	p.NoShowCount = 5
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	cached, err := engine.NetworkReputation(ctx, identityID)
	if err != nil {
		t.Fatalf("NetworkReputation: %v", err)
	}
	if cached.CompositeScore != before.CompositeScore {
		t.Errorf("cached score = %v, want %v from before the mutation", cached.CompositeScore, before.CompositeScore)
	}

	engine.Invalidate(ctx, identityID)

	fresh, err := engine.NetworkReputation(ctx, identityID)
	if err != nil {
		t.Fatalf("NetworkReputation: %v", err)
	}
	// 100 + 4.4*60 + 50 - 5*0.8*15: no-shows drop the completion bonus and add penalty.
	if !floatNear(fresh.CompositeScore, 354, 1e-9) {
		t.Errorf("fresh score = %v, want 354", fresh.CompositeScore)
	}
	if fresh.Tier != model.ReputationSilver {
		t.Errorf("fresh tier = %v, want %v", fresh.Tier, model.ReputationSilver)
	}
}

func TestEngineCacheExpires(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	engine := NewEngine(st, cache.NewMemoryCache(), 10*time.Millisecond)
	identityID := seedWorker(t, st)

	if _, err := engine.NetworkReputation(ctx, identityID); err != nil {
		t.Fatalf("NetworkReputation: %v", err)
	}

	p, err := st.GetProfile(ctx, "wkr_a")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	p.NoShowCount = 5
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	rep, err := engine.NetworkReputation(ctx, identityID)
	if err != nil {
		t.Fatalf("NetworkReputation: %v", err)
	}
	if !floatNear(rep.CompositeScore, 354, 1e-9) {
		t.Errorf("score after expiry = %v, want recomputed 354", rep.CompositeScore)
	}
}

func TestEngineUnknownIdentity(t *testing.T) {
	engine := NewEngine(store.NewMemoryStore(), cache.NewMemoryCache(), time.Hour)

	_, err := engine.NetworkReputation(context.Background(), "idn_missing")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("NetworkReputation error = %v, want ErrIdentityNotFound", err)
	}

	_, err = engine.Breakdown(context.Background(), "idn_missing")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("Breakdown error = %v, want ErrIdentityNotFound", err)
	}
}

func TestEngineBreakdownIsNeverCached(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	engine := NewEngine(st, cache.NewMemoryCache(), time.Hour)
	identityID := seedWorker(t, st)

	if _, err := engine.NetworkReputation(ctx, identityID); err != nil {
		t.Fatalf("NetworkReputation: %v", err)
	}

	p, err := st.GetProfile(ctx, "wkr_a")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	p.LateCount = 6
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	entries, err := engine.Breakdown(ctx, identityID)
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Breakdown = %d entries, want 2", len(entries))
	}
	// 4.0 - (6/30)*0.5 + 0.1 volume bonus.
	if !floatNear(entries[0].ReliabilityScore, 4.0, 1e-9) {
		t.Errorf("ReliabilityScore = %v, want 4.0 reflecting the mutation", entries[0].ReliabilityScore)
	}
	if entries[1].WorkerTier != model.TierSecondary {
		t.Errorf("WorkerTier = %v, want %v", entries[1].WorkerTier, model.TierSecondary)
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
