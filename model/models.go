package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AttemptStatus is the outcome a user records for a problem on a given day.
type AttemptStatus string

const (
	StatusSolved  AttemptStatus = "solved"
	StatusWrong   AttemptStatus = "wrong"
	StatusSkipped AttemptStatus = "skipped"
)

func (s AttemptStatus) Valid() bool {
	switch s {
	case StatusSolved, StatusWrong, StatusSkipped:
		return true
	}
	return false
}

// RevisionStatus is the lifecycle state of a scheduled revision task.
type RevisionStatus string

const (
	RevisionPending RevisionStatus = "pending"
	RevisionDone    RevisionStatus = "done"
)

// Skills is the canonical skill list. Assignment slots are keyed by these
// values; anything coming from outside goes through utils.NormalizeSkill first.
var Skills = []string{
	"DSA",
	"SQL",
	"JavaScript",
	"Java",
	"SystemDesign",
	"OperatingSystems",
	"DBMS",
	"Networking",
	"Aptitude",
	"Behavioral",
}

func IsSkill(s string) bool {
	for _, k := range Skills {
		if k == s {
			return true
		}
	}
	return false
}

// Problem is the catalog view the scheduler reads. The catalog itself is
// owned by another service; only the fields needed for selection are mapped.
type Problem struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Link       string             `bson:"link" json:"link"`
	Skills     []string           `bson:"skills" json:"skills"`
	Difficulty string             `bson:"difficulty" json:"difficulty"`
}

// Assignment is the daily pick for one skill. Unique on (date, skill);
// immutable once created and never deleted, so it doubles as the history
// used for the cooldown exclusion window.
type Assignment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Date       time.Time          `bson:"date" json:"date"`
	Skill      string             `bson:"skill" json:"skill"`
	ProblemID  primitive.ObjectID `bson:"problemId" json:"problemId"`
	AssignedAt time.Time          `bson:"assignedAt" json:"assignedAt"`
}

// AssignmentWithStatus is an Assignment joined with the requesting user's
// attempt status for that day, empty when the user has not attempted it.
type AssignmentWithStatus struct {
	Assignment  `bson:",inline"`
	SolveStatus AttemptStatus `bson:"-" json:"solveStatus,omitempty"`
}

// Attempt is a user's recorded outcome for a problem on a day.
// Unique on (userId, problemId, date); re-submission the same day overwrites.
type Attempt struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	ProblemID     primitive.ObjectID `bson:"problemId" json:"problemId"`
	Date          time.Time          `bson:"date" json:"date"`
	Status        AttemptStatus      `bson:"status" json:"status"`
	Note          string             `bson:"note,omitempty" json:"note,omitempty"`
	PlacementFlag bool               `bson:"placementFlag" json:"placementFlag"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SolvedProblem is the denormalized "has ever solved" index entry.
// Unique on (userId, problemId); exists iff the user's latest attempt for
// the problem is solved.
type SolvedProblem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	ProblemID primitive.ObjectID `bson:"problemId" json:"problemId"`
	SolvedAt  time.Time          `bson:"solvedAt" json:"solvedAt"`
}

// RevisionTask is a spaced-repetition reminder.
// Unique on (userId, problemId, scheduledFor); status moves pending -> done
// only through an explicit acknowledgment.
type RevisionTask struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	ProblemID    primitive.ObjectID `bson:"problemId" json:"problemId"`
	ScheduledFor time.Time          `bson:"scheduledFor" json:"scheduledFor"`
	Status       RevisionStatus     `bson:"status" json:"status"`
}

// StreakState lives embedded on the user document and is mutated only by
// the streak engine, inside the same transaction as the solve that
// triggered it.
type StreakState struct {
	Current          int        `bson:"current" json:"current"`
	Max              int        `bson:"max" json:"max"`
	FreezeAvailable  int        `bson:"freezeAvailable" json:"freezeAvailable"`
	LastActivityDate *time.Time `bson:"lastActivityDate" json:"lastActivityDate"`
}

// SkillPreference is one row of a user's practice configuration.
type SkillPreference struct {
	Skill      string `bson:"skill" json:"skill"`
	Enabled    bool   `bson:"enabled" json:"enabled"`
	Difficulty string `bson:"difficulty" json:"difficulty"`
}

// User is the slice of the user document this service reads and writes.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Preferences []SkillPreference  `bson:"preferences" json:"preferences"`
	Streak      StreakState        `bson:"streak" json:"streak"`
	Badges      []string           `bson:"badges" json:"badges"`
}

// EnabledSkills returns the skills the user has switched on, in
// preference order.
func (u *User) EnabledSkills() []string {
	skills := make([]string, 0, len(u.Preferences))
	for _, pref := range u.Preferences {
		if pref.Enabled {
			skills = append(skills, pref.Skill)
		}
	}
	return skills
}

// ActivityDay is one cell of the monthly activity heatmap.
type ActivityDay struct {
	Date     string `bson:"date" json:"date"`
	Count    int    `bson:"count" json:"count"`
	IsActive bool   `bson:"isActive" json:"isActive"`
}

// AssignmentHistoryEntry answers "when was this problem assigned before".
type AssignmentHistoryEntry struct {
	Date  time.Time `bson:"date" json:"date"`
	Skill string    `bson:"skill" json:"skill"`
}
