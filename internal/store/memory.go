package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
)

// MemoryStore is an in-memory implementation of Store for development and tests
type MemoryStore struct {
	mu          sync.RWMutex
	restaurants map[string]model.Restaurant
	networks    map[string]model.Network
	profiles    map[string]model.WorkerProfile
	shifts      map[string]model.Shift
	claims      map[string]model.Claim
	timeOff     map[string]model.TimeOffRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		restaurants: make(map[string]model.Restaurant),
		networks:    make(map[string]model.Network),
		profiles:    make(map[string]model.WorkerProfile),
		shifts:      make(map[string]model.Shift),
		claims:      make(map[string]model.Claim),
		timeOff:     make(map[string]model.TimeOffRequest),
	}
}

func (s *MemoryStore) SaveRestaurant(ctx context.Context, r model.Restaurant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restaurants[r.ID] = r
	return nil
}

func (s *MemoryStore) GetRestaurant(ctx context.Context, id string) (model.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restaurants[id]
	if !ok {
		return model.Restaurant{}, ErrRestaurantNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListRestaurantsByNetwork(ctx context.Context, networkID string) ([]model.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Restaurant
	for _, r := range s.restaurants {
		if r.NetworkID == networkID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveNetwork(ctx context.Context, n model.Network) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[n.ID] = n
	return nil
}

func (s *MemoryStore) GetNetwork(ctx context.Context, id string) (model.Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.networks[id]
	if !ok {
		return model.Network{}, ErrNetworkNotFound
	}
	return n, nil
}

func (s *MemoryStore) SaveProfile(ctx context.Context, p model.WorkerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (model.WorkerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return model.WorkerProfile{}, ErrProfileNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListProfilesByIdentity(ctx context.Context, identityID string) ([]model.WorkerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.WorkerProfile
	for _, p := range s.profiles {
		if p.IdentityID == identityID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, p model.WorkerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; !ok {
		return ErrProfileNotFound
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *MemoryStore) SaveShift(ctx context.Context, sh model.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[sh.ID] = sh
	return nil
}

func (s *MemoryStore) GetShift(ctx context.Context, id string) (model.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shifts[id]
	if !ok {
		return model.Shift{}, ErrShiftNotFound
	}
	return sh, nil
}

func (s *MemoryStore) UpdateShift(ctx context.Context, sh model.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.shifts[sh.ID]
	if !ok {
		return ErrShiftNotFound
	}
	if cur.Version != sh.Version {
		return ErrVersionConflict
	}
	sh.Version++
	s.shifts[sh.ID] = sh
	return nil
}

func (s *MemoryStore) ListOpenShiftsByRestaurants(ctx context.Context, restaurantIDs []string) ([]model.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool, len(restaurantIDs))
	for _, id := range restaurantIDs {
		ids[id] = true
	}
	var out []model.Shift
	for _, sh := range s.shifts {
		if sh.Status.Open() && ids[sh.RestaurantID] {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *MemoryStore) ListActiveShiftsOverlapping(ctx context.Context, profileIDs []string, start, end time.Time) ([]model.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool, len(profileIDs))
	for _, id := range profileIDs {
		ids[id] = true
	}
	var out []model.Shift
	for _, sh := range s.shifts {
		if !sh.Status.Active() || !ids[sh.AssignedProfileID] {
			continue
		}
		if model.Overlaps(sh.StartTime, sh.EndTime, start, end) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *MemoryStore) ListDueShifts(ctx context.Context, now time.Time) ([]model.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Shift
	for _, sh := range s.shifts {
		if !sh.Status.Open() || sh.ClaimWindowEndsAt == nil {
			continue
		}
		if !sh.ClaimWindowEndsAt.After(now) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveClaim(ctx context.Context, c model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[c.ID] = c
	return nil
}

func (s *MemoryStore) GetClaim(ctx context.Context, id string) (model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return model.Claim{}, ErrClaimNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListClaimsByShift(ctx context.Context, shiftID string, status model.ClaimStatus) ([]model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Claim
	for _, c := range s.claims {
		if c.ShiftID != shiftID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateClaim(ctx context.Context, c model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[c.ID]; !ok {
		return ErrClaimNotFound
	}
	s.claims[c.ID] = c
	return nil
}

func (s *MemoryStore) SaveTimeOff(ctx context.Context, t model.TimeOffRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeOff[t.ID] = t
	return nil
}

func (s *MemoryStore) GetTimeOff(ctx context.Context, id string) (model.TimeOffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.timeOff[id]
	if !ok {
		return model.TimeOffRequest{}, ErrTimeOffNotFound
	}
	return t, nil
}

func (s *MemoryStore) UpdateTimeOff(ctx context.Context, t model.TimeOffRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timeOff[t.ID]; !ok {
		return ErrTimeOffNotFound
	}
	s.timeOff[t.ID] = t
	return nil
}

func (s *MemoryStore) ListApprovedTimeOffOverlapping(ctx context.Context, identityID string, start, end time.Time) ([]model.TimeOffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TimeOffRequest
	for _, t := range s.timeOff {
		if t.IdentityID != identityID || t.Status != model.TimeOffApproved {
			continue
		}
		if model.Overlaps(t.StartTime, t.EndTime, start, end) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
