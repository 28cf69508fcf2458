package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordSolveRequest is the input to the solve recorder. Date is the
// practice day the outcome belongs to; callers normally leave it zero and
// let the service stamp today.
type RecordSolveRequest struct {
	UserID        primitive.ObjectID `json:"userId"`
	ProblemID     primitive.ObjectID `json:"problemId"`
	Date          time.Time          `json:"date,omitempty"`
	Status        AttemptStatus      `json:"status"`
	Note          string             `json:"note,omitempty"`
	PlacementFlag bool               `json:"placementFlag,omitempty"`
}

// SolveRecordedEvent is published on practice.solve.recorded after the
// solve transaction commits.
type SolveRecordedEvent struct {
	UserID    string        `json:"userId"`
	ProblemID string        `json:"problemId"`
	Date      time.Time     `json:"date"`
	Status    AttemptStatus `json:"status"`
}

// BadgeAwardedEvent is published on practice.badge.awarded once per newly
// earned badge batch.
type BadgeAwardedEvent struct {
	UserID string   `json:"userId"`
	Badges []string `json:"badges"`
	Streak int      `json:"streak"`
}

// RevisionScheduledEvent is published on practice.revision.scheduled with
// the due days actually created (already-scheduled days are omitted).
type RevisionScheduledEvent struct {
	UserID    string      `json:"userId"`
	ProblemID string      `json:"problemId"`
	DueDays   []time.Time `json:"dueDays"`
}

// UserStats is the cheap aggregate view backed by the solved index.
type UserStats struct {
	TotalSolved int64       `json:"totalSolved"`
	Streak      StreakState `json:"streak"`
	Badges      []string    `json:"badges"`
}
