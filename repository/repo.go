package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"prepstreak/apperr"
	"prepstreak/model"
)

type Repository struct {
	mongoclientInstance *mongo.Client
	problems            *mongo.Collection
	assignments         *mongo.Collection
	attempts            *mongo.Collection
	solvedProblems      *mongo.Collection
	revisionTasks       *mongo.Collection
	users               *mongo.Collection
}

func NewRepository(client *mongo.Client, dbName string) *Repository {
	db := client.Database(dbName)
	return &Repository{
		mongoclientInstance: client,
		problems:            db.Collection("problems"),
		assignments:         db.Collection("daily_assignments"),
		attempts:            db.Collection("attempts"),
		solvedProblems:      db.Collection("solved_problems"),
		revisionTasks:       db.Collection("revision_tasks"),
		users:               db.Collection("users"),
	}
}

// EnsureIndexes creates the unique indexes every idempotency guarantee in
// this service leans on. Duplicate-key errors from these indexes are the
// source of truth for "already exists", not application-level checks.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := r.assignments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}, {Key: "skill", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "problemId", Value: 1}, {Key: "date", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create assignment indexes: %w", err)
	}

	_, err = r.attempts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "problemId", Value: 1}, {Key: "date", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create attempt indexes: %w", err)
	}

	_, err = r.solvedProblems.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "problemId", Value: 1}}, Options: unique,
	})
	if err != nil {
		return fmt.Errorf("create solved index: %w", err)
	}

	_, err = r.revisionTasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "problemId", Value: 1}, {Key: "scheduledFor", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}, {Key: "scheduledFor", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create revision task indexes: %w", err)
	}
	return nil
}

// WithTransaction runs fn inside a single MongoDB transaction. The context
// passed to fn carries the session, so every repository call made with it
// joins the transaction; an error aborts and rolls back all writes.
func (r *Repository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.mongoclientInstance.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// ---- assignments ----

func (r *Repository) AssignmentExists(ctx context.Context, day time.Time, skill string) (bool, error) {
	count, err := r.assignments.CountDocuments(ctx, bson.M{"date": day, "skill": skill})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RecentAssignedProblemIDs returns the distinct problem ids assigned for a
// skill on any day >= since. Distinct, so the exclusion list handed to the
// catalog never carries duplicates.
func (r *Repository) RecentAssignedProblemIDs(ctx context.Context, skill string, since time.Time) ([]primitive.ObjectID, error) {
	raw, err := r.assignments.Distinct(ctx, "problemId", bson.M{
		"skill": skill,
		"date":  bson.M{"$gte": since},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// InsertAssignment creates the day's slot for a skill. A duplicate key
// means another run already filled it and comes back as a Conflict.
func (r *Repository) InsertAssignment(ctx context.Context, a model.Assignment) error {
	_, err := r.assignments.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("assignment already exists for day and skill", err)
	}
	return err
}

func (r *Repository) AssignmentsForDay(ctx context.Context, day time.Time, skills []string) ([]model.Assignment, error) {
	cursor, err := r.assignments.Find(ctx,
		bson.M{"date": day, "skill": bson.M{"$in": skills}},
		options.Find().SetSort(bson.D{{Key: "skill", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var assignments []model.Assignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *Repository) AssignmentHistoryForProblem(ctx context.Context, problemID primitive.ObjectID) ([]model.AssignmentHistoryEntry, error) {
	cursor, err := r.assignments.Find(ctx,
		bson.M{"problemId": problemID},
		options.Find().
			SetProjection(bson.M{"date": 1, "skill": 1}).
			SetSort(bson.D{{Key: "date", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	var history []model.AssignmentHistoryEntry
	if err := cursor.All(ctx, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// ---- catalog lookup ----

// PickRandomProblemExcluding returns one uniformly-random catalog problem
// tagged with skill whose id is not in exclude, or nil when the pool is
// exhausted.
func (r *Repository) PickRandomProblemExcluding(ctx context.Context, skill string, exclude []primitive.ObjectID) (*model.Problem, error) {
	match := bson.M{"skills": skill}
	if len(exclude) > 0 {
		match["_id"] = bson.M{"$nin": exclude}
	}
	cursor, err := r.problems.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sample", Value: bson.M{"size": 1}}},
	})
	if err != nil {
		return nil, err
	}
	var picked []model.Problem
	if err := cursor.All(ctx, &picked); err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return nil, nil
	}
	return &picked[0], nil
}

// ---- attempts ----

// UpsertAttempt writes the day's outcome for (user, problem, day),
// overwriting any earlier submission the same day, and returns the
// persisted attempt.
func (r *Repository) UpsertAttempt(ctx context.Context, a model.Attempt) (*model.Attempt, error) {
	filter := bson.M{"userId": a.UserID, "problemId": a.ProblemID, "date": a.Date}
	update := bson.M{
		"$set": bson.M{
			"status":        a.Status,
			"note":          a.Note,
			"placementFlag": a.PlacementFlag,
			"updatedAt":     a.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"userId":    a.UserID,
			"problemId": a.ProblemID,
			"date":      a.Date,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var persisted model.Attempt
	if err := r.attempts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&persisted); err != nil {
		return nil, err
	}
	return &persisted, nil
}

// AttemptStatusesForDay returns problemId -> status for one user and day.
func (r *Repository) AttemptStatusesForDay(ctx context.Context, userID primitive.ObjectID, day time.Time) (map[primitive.ObjectID]model.AttemptStatus, error) {
	cursor, err := r.attempts.Find(ctx,
		bson.M{"userId": userID, "date": day},
		options.Find().SetProjection(bson.M{"problemId": 1, "status": 1}),
	)
	if err != nil {
		return nil, err
	}
	var attempts []model.Attempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	statuses := make(map[primitive.ObjectID]model.AttemptStatus, len(attempts))
	for _, a := range attempts {
		statuses[a.ProblemID] = a.Status
	}
	return statuses, nil
}

// ---- solved index ----

func (r *Repository) UpsertSolvedProblem(ctx context.Context, userID, problemID primitive.ObjectID, solvedAt time.Time) error {
	_, err := r.solvedProblems.UpdateOne(ctx,
		bson.M{"userId": userID, "problemId": problemID},
		bson.M{
			"$set":         bson.M{"solvedAt": solvedAt},
			"$setOnInsert": bson.M{"userId": userID, "problemId": problemID},
		},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// Concurrent upsert of the same entry landed first.
		return apperr.Conflict("solved index entry already exists", err)
	}
	return err
}

func (r *Repository) DeleteSolvedProblem(ctx context.Context, userID, problemID primitive.ObjectID) error {
	_, err := r.solvedProblems.DeleteOne(ctx, bson.M{"userId": userID, "problemId": problemID})
	return err
}

func (r *Repository) HasSolved(ctx context.Context, userID, problemID primitive.ObjectID) (bool, error) {
	err := r.solvedProblems.FindOne(ctx,
		bson.M{"userId": userID, "problemId": problemID},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) CountSolved(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.solvedProblems.CountDocuments(ctx, bson.M{"userId": userID})
}

// ---- revision tasks ----

// InsertRevisionTaskIfAbsent schedules a revision reminder unless one
// already exists for (user, problem, dueDay). Existing tasks keep their
// status untouched. Reports whether a new task was created.
func (r *Repository) InsertRevisionTaskIfAbsent(ctx context.Context, userID, problemID primitive.ObjectID, dueDay time.Time) (bool, error) {
	result, err := r.revisionTasks.UpdateOne(ctx,
		bson.M{"userId": userID, "problemId": problemID, "scheduledFor": dueDay},
		bson.M{"$setOnInsert": bson.M{"status": model.RevisionPending}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// Concurrent wrong-submissions raced on the same due date; the
		// task exists, which is all this call guarantees.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return result.UpsertedCount > 0, nil
}

func (r *Repository) PendingRevisions(ctx context.Context, userID primitive.ObjectID, asOf time.Time) ([]model.RevisionTask, error) {
	cursor, err := r.revisionTasks.Find(ctx,
		bson.M{
			"userId":       userID,
			"status":       model.RevisionPending,
			"scheduledFor": bson.M{"$lte": asOf},
		},
		options.Find().SetSort(bson.D{{Key: "scheduledFor", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var tasks []model.RevisionTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkRevisionDone flips a task the user owns from pending to done.
func (r *Repository) MarkRevisionDone(ctx context.Context, userID, taskID primitive.ObjectID) (*model.RevisionTask, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var task model.RevisionTask
	err := r.revisionTasks.FindOneAndUpdate(ctx,
		bson.M{"_id": taskID, "userId": userID},
		bson.M{"$set": bson.M{"status": model.RevisionDone}},
		opts,
	).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("revision task %s not found", taskID.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ---- users ----

func (r *Repository) GetUser(ctx context.Context, userID primitive.ObjectID) (*model.User, error) {
	var user model.User
	err := r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("user %s not found", userID.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateStreak persists a recomputed streak, guarded so a concurrent solve
// that already advanced the streak to the same day turns this into a no-op
// instead of a double increment.
func (r *Repository) UpdateStreak(ctx context.Context, userID primitive.ObjectID, state model.StreakState) error {
	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID, "streak.lastActivityDate": bson.M{"$ne": state.LastActivityDate}},
		bson.M{"$set": bson.M{"streak": state}},
	)
	return err
}

func (r *Repository) AppendBadges(ctx context.Context, userID primitive.ObjectID, badges []string) error {
	if len(badges) == 0 {
		return nil
	}
	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"badges": bson.M{"$each": badges}}},
	)
	return err
}

// ---- activity ----

// MonthlySolvedCounts returns solved-attempt counts per practice day for
// one calendar month. Keys are the practice-day values themselves.
func (r *Repository) MonthlySolvedCounts(ctx context.Context, userID primitive.ObjectID, year int, month time.Month) (map[time.Time]int, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	cursor, err := r.attempts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"userId": userID,
			"status": model.StatusSolved,
			"date":   bson.M{"$gte": start, "$lt": end},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$date",
			"count": bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Date  time.Time `bson:"_id"`
		Count int       `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[time.Time]int, len(rows))
	for _, row := range rows {
		counts[row.Date.UTC()] = row.Count
	}
	return counts, nil
}
