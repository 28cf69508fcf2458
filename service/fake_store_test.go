package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"prepstreak/apperr"
	"prepstreak/model"
)

func errDuplicate() error {
	return apperr.Conflict("already exists", nil)
}

func notFoundErr(id string) error {
	return apperr.NotFound("not found: %s", id)
}

// fakeStore is an in-memory Store with the same uniqueness and
// insert-if-absent semantics as the Mongo repository.
type fakeStore struct {
	mu          sync.Mutex
	problems    []model.Problem
	assignments []model.Assignment
	attempts    map[string]*model.Attempt
	solved      map[string]*model.SolvedProblem
	revisions   map[string]*model.RevisionTask
	users       map[primitive.ObjectID]*model.User

	pickErr map[string]error // skill -> injected catalog failure
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attempts:  make(map[string]*model.Attempt),
		solved:    make(map[string]*model.SolvedProblem),
		revisions: make(map[string]*model.RevisionTask),
		users:     make(map[primitive.ObjectID]*model.User),
		pickErr:   make(map[string]error),
	}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func attemptKey(userID, problemID primitive.ObjectID, day time.Time) string {
	return userID.Hex() + "|" + problemID.Hex() + "|" + dayKey(day)
}

func solvedKey(userID, problemID primitive.ObjectID) string {
	return userID.Hex() + "|" + problemID.Hex()
}

func revisionKey(userID, problemID primitive.ObjectID, due time.Time) string {
	return userID.Hex() + "|" + problemID.Hex() + "|" + dayKey(due)
}

func (f *fakeStore) addProblem(skill string) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := primitive.NewObjectID()
	f.problems = append(f.problems, model.Problem{
		ID:     id,
		Title:  fmt.Sprintf("problem-%s-%d", skill, len(f.problems)),
		Skills: []string{skill},
	})
	return id
}

func (f *fakeStore) addUser(enabledSkills ...string) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := primitive.NewObjectID()
	prefs := make([]model.SkillPreference, len(enabledSkills))
	for i, skill := range enabledSkills {
		prefs[i] = model.SkillPreference{Skill: skill, Enabled: true, Difficulty: "Medium"}
	}
	f.users[id] = &model.User{
		ID:          id,
		Name:        "test user",
		Preferences: prefs,
		Streak:      model.StreakState{FreezeAvailable: 1},
	}
	return id
}

func (f *fakeStore) user(id primitive.ObjectID) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) AssignmentExists(ctx context.Context, day time.Time, skill string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.Date.Equal(day) && a.Skill == skill {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RecentAssignedProblemIDs(ctx context.Context, skill string, since time.Time) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, a := range f.assignments {
		if a.Skill == skill && !a.Date.Before(since) && !seen[a.ProblemID] {
			seen[a.ProblemID] = true
			ids = append(ids, a.ProblemID)
		}
	}
	return ids, nil
}

func (f *fakeStore) InsertAssignment(ctx context.Context, a model.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.assignments {
		if existing.Date.Equal(a.Date) && existing.Skill == a.Skill {
			return errDuplicate()
		}
	}
	a.ID = primitive.NewObjectID()
	f.assignments = append(f.assignments, a)
	return nil
}

func (f *fakeStore) AssignmentsForDay(ctx context.Context, day time.Time, skills []string) ([]model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[string]bool, len(skills))
	for _, s := range skills {
		want[s] = true
	}
	var out []model.Assignment
	for _, a := range f.assignments {
		if a.Date.Equal(day) && want[a.Skill] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Skill < out[j].Skill })
	return out, nil
}

func (f *fakeStore) AssignmentHistoryForProblem(ctx context.Context, problemID primitive.ObjectID) ([]model.AssignmentHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AssignmentHistoryEntry
	for _, a := range f.assignments {
		if a.ProblemID == problemID {
			out = append(out, model.AssignmentHistoryEntry{Date: a.Date, Skill: a.Skill})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (f *fakeStore) PickRandomProblemExcluding(ctx context.Context, skill string, exclude []primitive.ObjectID) (*model.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pickErr[skill]; err != nil {
		return nil, err
	}
	excluded := make(map[primitive.ObjectID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	// Deterministic: first eligible in insertion order.
	for _, p := range f.problems {
		if excluded[p.ID] {
			continue
		}
		for _, s := range p.Skills {
			if s == skill {
				problem := p
				return &problem, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeStore) UpsertAttempt(ctx context.Context, a model.Attempt) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attemptKey(a.UserID, a.ProblemID, a.Date)
	if existing, ok := f.attempts[key]; ok {
		existing.Status = a.Status
		existing.Note = a.Note
		existing.PlacementFlag = a.PlacementFlag
		existing.UpdatedAt = a.UpdatedAt
		copied := *existing
		return &copied, nil
	}
	a.ID = primitive.NewObjectID()
	stored := a
	f.attempts[key] = &stored
	copied := stored
	return &copied, nil
}

func (f *fakeStore) AttemptStatusesForDay(ctx context.Context, userID primitive.ObjectID, day time.Time) (map[primitive.ObjectID]model.AttemptStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	statuses := make(map[primitive.ObjectID]model.AttemptStatus)
	for _, a := range f.attempts {
		if a.UserID == userID && a.Date.Equal(day) {
			statuses[a.ProblemID] = a.Status
		}
	}
	return statuses, nil
}

func (f *fakeStore) UpsertSolvedProblem(ctx context.Context, userID, problemID primitive.ObjectID, solvedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := solvedKey(userID, problemID)
	if existing, ok := f.solved[key]; ok {
		existing.SolvedAt = solvedAt
		return nil
	}
	f.solved[key] = &model.SolvedProblem{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		ProblemID: problemID,
		SolvedAt:  solvedAt,
	}
	return nil
}

func (f *fakeStore) DeleteSolvedProblem(ctx context.Context, userID, problemID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.solved, solvedKey(userID, problemID))
	return nil
}

func (f *fakeStore) HasSolved(ctx context.Context, userID, problemID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.solved[solvedKey(userID, problemID)]
	return ok, nil
}

func (f *fakeStore) CountSolved(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, sp := range f.solved {
		if sp.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertRevisionTaskIfAbsent(ctx context.Context, userID, problemID primitive.ObjectID, dueDay time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := revisionKey(userID, problemID, dueDay)
	if _, ok := f.revisions[key]; ok {
		return false, nil
	}
	f.revisions[key] = &model.RevisionTask{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		ProblemID:    problemID,
		ScheduledFor: dueDay,
		Status:       model.RevisionPending,
	}
	return true, nil
}

func (f *fakeStore) PendingRevisions(ctx context.Context, userID primitive.ObjectID, asOf time.Time) ([]model.RevisionTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.RevisionTask
	for _, task := range f.revisions {
		if task.UserID == userID && task.Status == model.RevisionPending && !task.ScheduledFor.After(asOf) {
			out = append(out, *task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (f *fakeStore) MarkRevisionDone(ctx context.Context, userID, taskID primitive.ObjectID) (*model.RevisionTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.revisions {
		if task.ID == taskID && task.UserID == userID {
			task.Status = model.RevisionDone
			copied := *task
			return &copied, nil
		}
	}
	return nil, notFoundErr(taskID.Hex())
}

func (f *fakeStore) GetUser(ctx context.Context, userID primitive.ObjectID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, notFoundErr(userID.Hex())
	}
	copied := *user
	copied.Badges = append([]string(nil), user.Badges...)
	return &copied, nil
}

func (f *fakeStore) UpdateStreak(ctx context.Context, userID primitive.ObjectID, state model.StreakState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil
	}
	// Mirrors the guarded update: no-op when the stored streak already
	// reached this day.
	if user.Streak.LastActivityDate != nil && state.LastActivityDate != nil &&
		user.Streak.LastActivityDate.Equal(*state.LastActivityDate) {
		return nil
	}
	user.Streak = state
	return nil
}

func (f *fakeStore) AppendBadges(ctx context.Context, userID primitive.ObjectID, badges []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil
	}
	for _, badge := range badges {
		found := false
		for _, owned := range user.Badges {
			if owned == badge {
				found = true
				break
			}
		}
		if !found {
			user.Badges = append(user.Badges, badge)
		}
	}
	return nil
}

func (f *fakeStore) MonthlySolvedCounts(ctx context.Context, userID primitive.ObjectID, year int, month time.Month) (map[time.Time]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[time.Time]int)
	for _, a := range f.attempts {
		if a.UserID == userID && a.Status == model.StatusSolved &&
			a.Date.Year() == year && a.Date.Month() == month {
			counts[a.Date]++
		}
	}
	return counts, nil
}
