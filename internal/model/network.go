package model

import "time"

// Restaurant is one employer. Visibility and claim-window settings live
// inline on the record; they are edited by the excluded admin CRUD layer and
// read-only here.
type Restaurant struct {
	ID        string  `json:"restaurant_id" bson:"restaurant_id"`
	Name      string  `json:"name" bson:"name"`
	NetworkID string  `json:"network_id,omitempty" bson:"network_id,omitempty"`
	Lat       float64 `json:"lat" bson:"lat"`
	Lng       float64 `json:"lng" bson:"lng"`

	VisibilityDelayMinutes int  `json:"visibility_delay_minutes" bson:"visibility_delay_minutes"`
	AutoApproveClaims      bool `json:"auto_approve_claims" bson:"auto_approve_claims"`
	ClaimWindowMinutes     int  `json:"claim_window_minutes" bson:"claim_window_minutes"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Network is a group of restaurants sharing a labor pool under common
// cross-restaurant rules.
type Network struct {
	ID                     string  `json:"network_id" bson:"network_id"`
	Name                   string  `json:"name" bson:"name"`
	CrossRestaurantEnabled bool    `json:"cross_restaurant_enabled" bson:"cross_restaurant_enabled"`
	RequireApproval        bool    `json:"require_approval" bson:"require_approval"`
	MaxDistanceMiles       float64 `json:"max_distance_miles" bson:"max_distance_miles"`
	MinReputation          float64 `json:"min_reputation" bson:"min_reputation"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type CreateRestaurantRequest struct {
	Name      string  `json:"name"`
	NetworkID string  `json:"network_id,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`

	VisibilityDelayMinutes int  `json:"visibility_delay_minutes,omitempty"`
	AutoApproveClaims      bool `json:"auto_approve_claims,omitempty"`
	ClaimWindowMinutes     int  `json:"claim_window_minutes,omitempty"`
}

type CreateNetworkRequest struct {
	Name                   string  `json:"name"`
	CrossRestaurantEnabled bool    `json:"cross_restaurant_enabled"`
	RequireApproval        bool    `json:"require_approval"`
	MaxDistanceMiles       float64 `json:"max_distance_miles,omitempty"`
	MinReputation          float64 `json:"min_reputation,omitempty"`
}
