package store

import (
	"context"
	"errors"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	restaurants *mongo.Collection
	networks    *mongo.Collection
	profiles    *mongo.Collection
	shifts      *mongo.Collection
	claims      *mongo.Collection
	timeOff     *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		restaurants: db.Collection("restaurants"),
		networks:    db.Collection("networks"),
		profiles:    db.Collection("worker_profiles"),
		shifts:      db.Collection("shifts"),
		claims:      db.Collection("claims"),
		timeOff:     db.Collection("time_off"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.restaurants.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "network_id", Value: 1}},
	}); err != nil {
		return err
	}
	if _, err := s.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "identity_id", Value: 1}},
	}); err != nil {
		return err
	}
	if _, err := s.shifts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "restaurant_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_worker_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "claim_window_ends_at", Value: 1}}},
	}); err != nil {
		return err
	}
	if _, err := s.claims.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "shift_id", Value: 1}, {Key: "status", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := s.timeOff.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "identity_id", Value: 1}, {Key: "status", Value: 1}},
	})
	return err
}

func (s *MongoStore) SaveRestaurant(ctx context.Context, r model.Restaurant) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.restaurants.InsertOne(ctx, r)
	return err
}

func (s *MongoStore) GetRestaurant(ctx context.Context, id string) (model.Restaurant, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var r model.Restaurant
	err := s.restaurants.FindOne(ctx, bson.M{"restaurant_id": id}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Restaurant{}, ErrRestaurantNotFound
		}
		return model.Restaurant{}, err
	}
	return r, nil
}

func (s *MongoStore) ListRestaurantsByNetwork(ctx context.Context, networkID string) ([]model.Restaurant, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cur, err := s.restaurants.Find(ctx, bson.M{"network_id": networkID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []model.Restaurant
	for cur.Next(ctx) {
		var r model.Restaurant
		if err := cur.Decode(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, cur.Err()
}

func (s *MongoStore) SaveNetwork(ctx context.Context, n model.Network) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.networks.InsertOne(ctx, n)
	return err
}

func (s *MongoStore) GetNetwork(ctx context.Context, id string) (model.Network, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n model.Network
	err := s.networks.FindOne(ctx, bson.M{"network_id": id}).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Network{}, ErrNetworkNotFound
		}
		return model.Network{}, err
	}
	return n, nil
}

func (s *MongoStore) SaveProfile(ctx context.Context, p model.WorkerProfile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.profiles.InsertOne(ctx, p)
	return err
}

func (s *MongoStore) GetProfile(ctx context.Context, id string) (model.WorkerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p model.WorkerProfile
	err := s.profiles.FindOne(ctx, bson.M{"worker_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.WorkerProfile{}, ErrProfileNotFound
		}
		return model.WorkerProfile{}, err
	}
	return p, nil
}

func (s *MongoStore) ListProfilesByIdentity(ctx context.Context, identityID string) ([]model.WorkerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cur, err := s.profiles.Find(ctx, bson.M{"identity_id": identityID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []model.WorkerProfile
	for cur.Next(ctx) {
		var p model.WorkerProfile
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, cur.Err()
}

func (s *MongoStore) UpdateProfile(ctx context.Context, p model.WorkerProfile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.profiles.ReplaceOne(ctx, bson.M{"worker_id": p.ID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *MongoStore) SaveShift(ctx context.Context, sh model.Shift) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.shifts.InsertOne(ctx, sh)
	return err
}

func (s *MongoStore) GetShift(ctx context.Context, id string) (model.Shift, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sh model.Shift
	err := s.shifts.FindOne(ctx, bson.M{"shift_id": id}).Decode(&sh)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Shift{}, ErrShiftNotFound
		}
		return model.Shift{}, err
	}
	return sh, nil
}

func (s *MongoStore) UpdateShift(ctx context.Context, sh model.Shift) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"shift_id": sh.ID, "version": sh.Version}
	sh.Version++
	res, err := s.shifts.ReplaceOne(ctx, filter, sh)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing shift from a lost version race.
		if err := s.shifts.FindOne(ctx, bson.M{"shift_id": sh.ID}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return ErrShiftNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *MongoStore) ListOpenShiftsByRestaurants(ctx context.Context, restaurantIDs []string) ([]model.Shift, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"restaurant_id": bson.M{"$in": restaurantIDs},
		"status":        bson.M{"$in": []model.ShiftStatus{model.ShiftStatusUnassigned, model.ShiftStatusClaimed}},
	}
	cur, err := s.shifts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	return decodeShifts(ctx, cur)
}

func (s *MongoStore) ListActiveShiftsOverlapping(ctx context.Context, profileIDs []string, start, end time.Time) ([]model.Shift, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"assigned_worker_id": bson.M{"$in": profileIDs},
		"status":             bson.M{"$in": []model.ShiftStatus{model.ShiftStatusConfirmed, model.ShiftStatusInProgress}},
		"start_time":         bson.M{"$lt": end},
		"end_time":           bson.M{"$gt": start},
	}
	cur, err := s.shifts.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	return decodeShifts(ctx, cur)
}

func (s *MongoStore) ListDueShifts(ctx context.Context, now time.Time) ([]model.Shift, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"status":               bson.M{"$in": []model.ShiftStatus{model.ShiftStatusUnassigned, model.ShiftStatusClaimed}},
		"claim_window_ends_at": bson.M{"$lte": now},
	}
	cur, err := s.shifts.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	return decodeShifts(ctx, cur)
}

func decodeShifts(ctx context.Context, cur *mongo.Cursor) ([]model.Shift, error) {
	var out []model.Shift
	for cur.Next(ctx) {
		var sh model.Shift
		if err := cur.Decode(&sh); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, cur.Err()
}

func (s *MongoStore) SaveClaim(ctx context.Context, c model.Claim) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.claims.InsertOne(ctx, c)
	return err
}

func (s *MongoStore) GetClaim(ctx context.Context, id string) (model.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c model.Claim
	err := s.claims.FindOne(ctx, bson.M{"claim_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Claim{}, ErrClaimNotFound
		}
		return model.Claim{}, err
	}
	return c, nil
}

func (s *MongoStore) ListClaimsByShift(ctx context.Context, shiftID string, status model.ClaimStatus) ([]model.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"shift_id": shiftID}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.claims.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "submitted_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []model.Claim
	for cur.Next(ctx) {
		var c model.Claim
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, cur.Err()
}

func (s *MongoStore) UpdateClaim(ctx context.Context, c model.Claim) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.claims.ReplaceOne(ctx, bson.M{"claim_id": c.ID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrClaimNotFound
	}
	return nil
}

func (s *MongoStore) SaveTimeOff(ctx context.Context, t model.TimeOffRequest) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.timeOff.InsertOne(ctx, t)
	return err
}

func (s *MongoStore) GetTimeOff(ctx context.Context, id string) (model.TimeOffRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var t model.TimeOffRequest
	err := s.timeOff.FindOne(ctx, bson.M{"time_off_id": id}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.TimeOffRequest{}, ErrTimeOffNotFound
		}
		return model.TimeOffRequest{}, err
	}
	return t, nil
}

func (s *MongoStore) UpdateTimeOff(ctx context.Context, t model.TimeOffRequest) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.timeOff.ReplaceOne(ctx, bson.M{"time_off_id": t.ID}, t)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrTimeOffNotFound
	}
	return nil
}

func (s *MongoStore) ListApprovedTimeOffOverlapping(ctx context.Context, identityID string, start, end time.Time) ([]model.TimeOffRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"identity_id": identityID,
		"status":      model.TimeOffApproved,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}
	cur, err := s.timeOff.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []model.TimeOffRequest
	for cur.Next(ctx) {
		var t model.TimeOffRequest
		if err := cur.Decode(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, cur.Err()
}

func (s *MongoStore) Close() error {
	// Mongo client lifetime is owned by main.
	return nil
}
