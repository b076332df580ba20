package model

import "time"

type TimeOffStatus string

const (
	TimeOffPending  TimeOffStatus = "PENDING"
	TimeOffApproved TimeOffStatus = "APPROVED"
	TimeOffDenied   TimeOffStatus = "DENIED"
)

// TimeOffRequest is identity-scoped: an approved request blocks claims at
// every restaurant the worker holds a profile with.
type TimeOffRequest struct {
	ID         string        `json:"time_off_id" bson:"time_off_id"`
	IdentityID string        `json:"identity_id" bson:"identity_id"`
	StartTime  time.Time     `json:"start_time" bson:"start_time"`
	EndTime    time.Time     `json:"end_time" bson:"end_time"`
	Status     TimeOffStatus `json:"status" bson:"status"`
	Reason     string        `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
}

type RequestTimeOffRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
}
