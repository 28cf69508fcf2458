package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	cron "github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zapcore"

	"prepstreak/apperr"
	"prepstreak/cache"
	"prepstreak/daywindow"
	"prepstreak/logger"
	"prepstreak/model"
	"prepstreak/natsclient"
	"prepstreak/streak"
)

// revisionOffsets are the spaced-repetition due-day offsets applied after
// a wrong or skipped outcome.
var revisionOffsets = []int{3, 7, 14}

// defaultAssignCronSpec is daily midnight in the practice timezone.
const defaultAssignCronSpec = "0 0 * * *"

// Store is the persistence surface the engine runs against, implemented
// by repository.Repository. Methods called with the context passed by
// WithTransaction join that transaction.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	AssignmentExists(ctx context.Context, day time.Time, skill string) (bool, error)
	RecentAssignedProblemIDs(ctx context.Context, skill string, since time.Time) ([]primitive.ObjectID, error)
	InsertAssignment(ctx context.Context, a model.Assignment) error
	AssignmentsForDay(ctx context.Context, day time.Time, skills []string) ([]model.Assignment, error)
	AssignmentHistoryForProblem(ctx context.Context, problemID primitive.ObjectID) ([]model.AssignmentHistoryEntry, error)
	PickRandomProblemExcluding(ctx context.Context, skill string, exclude []primitive.ObjectID) (*model.Problem, error)

	UpsertAttempt(ctx context.Context, a model.Attempt) (*model.Attempt, error)
	AttemptStatusesForDay(ctx context.Context, userID primitive.ObjectID, day time.Time) (map[primitive.ObjectID]model.AttemptStatus, error)

	UpsertSolvedProblem(ctx context.Context, userID, problemID primitive.ObjectID, solvedAt time.Time) error
	DeleteSolvedProblem(ctx context.Context, userID, problemID primitive.ObjectID) error
	HasSolved(ctx context.Context, userID, problemID primitive.ObjectID) (bool, error)
	CountSolved(ctx context.Context, userID primitive.ObjectID) (int64, error)

	InsertRevisionTaskIfAbsent(ctx context.Context, userID, problemID primitive.ObjectID, dueDay time.Time) (bool, error)
	PendingRevisions(ctx context.Context, userID primitive.ObjectID, asOf time.Time) ([]model.RevisionTask, error)
	MarkRevisionDone(ctx context.Context, userID, taskID primitive.ObjectID) (*model.RevisionTask, error)

	GetUser(ctx context.Context, userID primitive.ObjectID) (*model.User, error)
	UpdateStreak(ctx context.Context, userID primitive.ObjectID, state model.StreakState) error
	AppendBadges(ctx context.Context, userID primitive.ObjectID, badges []string) error

	MonthlySolvedCounts(ctx context.Context, userID primitive.ObjectID, year int, month time.Month) (map[time.Time]int, error)
}

// EventPublisher is the slice of the NATS client the service needs.
type EventPublisher interface {
	PublishEvent(subject string, v any) error
}

// Config carries the tunables of the scheduling engine.
type Config struct {
	CooldownDays     int
	SolvedNoteMinLen int
	AssignCronSpec   string
}

// PracticeService is the daily assignment and progress scheduling engine.
type PracticeService struct {
	RepoConnInstance Store
	NatsClient       EventPublisher
	RedisCacheClient cache.Cache
	window           daywindow.Window
	cfg              Config
	logger           *logger.LogStreamer
}

func NewService(repo Store, natsClient EventPublisher, redisCache cache.Cache, window daywindow.Window, cfg Config, logStreamer *logger.LogStreamer) *PracticeService {
	if cfg.CooldownDays <= 0 {
		cfg.CooldownDays = 14
	}
	if cfg.SolvedNoteMinLen <= 0 {
		cfg.SolvedNoteMinLen = 10
	}
	if cfg.AssignCronSpec == "" {
		cfg.AssignCronSpec = defaultAssignCronSpec
	}
	svc := &PracticeService{
		RepoConnInstance: repo,
		NatsClient:       natsClient,
		RedisCacheClient: redisCache,
		window:           window,
		cfg:              cfg,
		logger:           logStreamer,
	}
	svc.logger.Log(zapcore.InfoLevel, uuid.New().String(), "PracticeService initialized", map[string]any{
		"method":       "NewService",
		"cooldownDays": cfg.CooldownDays,
	}, "SERVICE", nil)
	return svc
}

// normalizeDay maps an input instant onto its practice-day key. Values
// that already are day keys (midnight UTC) pass through unchanged, so
// re-normalizing is always safe.
func (s *PracticeService) normalizeDay(t time.Time) time.Time {
	if t.IsZero() {
		return s.window.Today()
	}
	if t.Equal(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)) {
		return t
	}
	return s.window.Day(t)
}

// StartCronJob schedules the daily assignment trigger in the practice
// timezone. The job is idempotent, so a manual re-trigger racing the cron
// is harmless.
func (s *PracticeService) StartCronJob() *cron.Cron {
	c := cron.New(cron.WithLocation(s.window.Location()))

	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.logger.Log(zapcore.InfoLevel, "", "Running daily problem assignment", map[string]any{
			"method": "DAILY ASSIGNMENT CRON JOB",
		}, "CRON", nil)
		s.AssignDaily(ctx, s.window.Today(), model.Skills)
	}

	// The spec comes from config; a typo there must not silently leave
	// the daily job unscheduled.
	if _, err := c.AddFunc(s.cfg.AssignCronSpec, job); err != nil {
		s.logger.Log(zapcore.ErrorLevel, "", "Invalid assignment cron spec, using default", map[string]any{
			"method":   "StartCronJob",
			"cronSpec": s.cfg.AssignCronSpec,
		}, "CRON", err)
		c.AddFunc(defaultAssignCronSpec, job)
	}

	c.Start()
	return c
}

// AssignDaily fills the day's slot for each skill that does not have one
// yet. Skills are handled independently: catalog or store trouble on one
// skill never aborts the rest, and an empty eligible pool is logged, not
// failed. Safe to re-run any number of times per day.
func (s *PracticeService) AssignDaily(ctx context.Context, day time.Time, skills []string) error {
	traceID := uuid.New().String()
	day = s.normalizeDay(day)
	if len(skills) == 0 {
		skills = model.Skills
	}

	s.logger.Log(zapcore.InfoLevel, traceID, "Starting AssignDaily", map[string]any{
		"method": "AssignDaily",
		"day":    day.Format("2006-01-02"),
		"skills": len(skills),
	}, "SERVICE", nil)

	var assigned, skipped, failed int
	for _, skill := range skills {
		if err := ctx.Err(); err != nil {
			return err
		}
		created, err := s.assignSkill(ctx, traceID, day, skill)
		if err != nil {
			failed++
			s.logger.Log(zapcore.ErrorLevel, traceID, "Failed to assign skill for day", map[string]any{
				"method":    "AssignDaily",
				"skill":     skill,
				"day":       day.Format("2006-01-02"),
				"errorType": apperr.KindOf(err).String(),
			}, "SERVICE", err)
			continue
		}
		if created {
			assigned++
		} else {
			skipped++
		}
	}

	s.logger.Log(zapcore.InfoLevel, traceID, "AssignDaily finished", map[string]any{
		"method":   "AssignDaily",
		"day":      day.Format("2006-01-02"),
		"assigned": assigned,
		"skipped":  skipped,
		"failed":   failed,
	}, "SERVICE", nil)
	return nil
}

func (s *PracticeService) assignSkill(ctx context.Context, traceID string, day time.Time, skill string) (bool, error) {
	exists, err := s.RepoConnInstance.AssignmentExists(ctx, day, skill)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	// The exclusion window is the trailing cooldownDays days including
	// today, so a problem assigned on day D becomes eligible again on
	// D+cooldownDays exactly.
	since := daywindow.AddDays(day, -(s.cfg.CooldownDays - 1))
	exclude, err := s.RepoConnInstance.RecentAssignedProblemIDs(ctx, skill, since)
	if err != nil {
		return false, err
	}

	problem, err := s.RepoConnInstance.PickRandomProblemExcluding(ctx, skill, exclude)
	if err != nil {
		return false, apperr.Upstream("catalog lookup failed", err)
	}
	if problem == nil {
		s.logger.Log(zapcore.WarnLevel, traceID, "Eligible pool exhausted for skill", map[string]any{
			"method":   "AssignDaily",
			"skill":    skill,
			"day":      day.Format("2006-01-02"),
			"excluded": len(exclude),
		}, "SERVICE", nil)
		return false, nil
	}

	err = s.RepoConnInstance.InsertAssignment(ctx, model.Assignment{
		Date:       day,
		Skill:      skill,
		ProblemID:  problem.ID,
		AssignedAt: time.Now(),
	})
	if apperr.IsConflict(err) {
		// A concurrent run filled the slot first; exactly one survives.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordSolve records an outcome for (user, problem, day) and drives
// everything hanging off it: solved-index maintenance, streak and badges
// on a solve, revision scheduling on a wrong or skip. All store writes
// happen in one transaction; events and cache invalidation follow commit.
func (s *PracticeService) RecordSolve(ctx context.Context, req model.RecordSolveRequest) (*model.Attempt, error) {
	traceID := uuid.New().String()

	if req.UserID.IsZero() || req.ProblemID.IsZero() {
		return nil, apperr.Validation("userId and problemId required")
	}
	if !req.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", req.Status)
	}
	if req.Status == model.StatusSolved && len(strings.TrimSpace(req.Note)) < s.cfg.SolvedNoteMinLen {
		return nil, apperr.Validation("approach note required (min %d chars) before marking as solved", s.cfg.SolvedNoteMinLen)
	}

	day := s.normalizeDay(req.Date)
	now := time.Now()

	s.logger.Log(zapcore.InfoLevel, traceID, "Starting RecordSolve", map[string]any{
		"method":    "RecordSolve",
		"userId":    req.UserID.Hex(),
		"problemId": req.ProblemID.Hex(),
		"status":    string(req.Status),
		"day":       day.Format("2006-01-02"),
	}, "SERVICE", nil)

	var (
		attempt   *model.Attempt
		newState  model.StreakState
		newBadges []string
		dueDays   []time.Time
	)

	err := s.RepoConnInstance.WithTransaction(ctx, func(txCtx context.Context) error {
		persisted, err := s.RepoConnInstance.UpsertAttempt(txCtx, model.Attempt{
			UserID:        req.UserID,
			ProblemID:     req.ProblemID,
			Date:          day,
			Status:        req.Status,
			Note:          req.Note,
			PlacementFlag: req.PlacementFlag,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
		attempt = persisted

		if req.Status == model.StatusSolved {
			if err := s.RepoConnInstance.UpsertSolvedProblem(txCtx, req.UserID, req.ProblemID, now); err != nil && !apperr.IsConflict(err) {
				return err
			}
			newState, newBadges, err = s.advanceStreak(txCtx, req.UserID, day)
			return err
		}

		// A later wrong or skip invalidates a same-day solved record.
		if err := s.RepoConnInstance.DeleteSolvedProblem(txCtx, req.UserID, req.ProblemID); err != nil {
			return err
		}
		dueDays, err = s.scheduleRevisions(txCtx, req.UserID, req.ProblemID, day)
		return err
	})
	if err != nil {
		s.logger.Log(zapcore.ErrorLevel, traceID, "RecordSolve transaction failed", map[string]any{
			"method":    "RecordSolve",
			"userId":    req.UserID.Hex(),
			"problemId": req.ProblemID.Hex(),
			"errorType": apperr.KindOf(err).String(),
		}, "SERVICE", err)
		return nil, err
	}

	s.invalidateUserCaches(ctx, req.UserID, day)
	s.publishSolveEvents(traceID, req, day, newState, newBadges, dueDays)

	s.logger.Log(zapcore.InfoLevel, traceID, "RecordSolve finished", map[string]any{
		"method":    "RecordSolve",
		"userId":    req.UserID.Hex(),
		"problemId": req.ProblemID.Hex(),
		"status":    string(req.Status),
		"newBadges": len(newBadges),
	}, "SERVICE", nil)
	return attempt, nil
}

// advanceStreak applies the streak engine for the first solved activity of
// the day. Runs inside the solve transaction; the guarded UpdateStreak
// keeps a concurrent same-day solve from double-incrementing.
func (s *PracticeService) advanceStreak(ctx context.Context, userID primitive.ObjectID, day time.Time) (model.StreakState, []string, error) {
	user, err := s.RepoConnInstance.GetUser(ctx, userID)
	if err != nil {
		return model.StreakState{}, nil, err
	}

	firstToday := user.Streak.LastActivityDate == nil || !daywindow.SameDay(*user.Streak.LastActivityDate, day)
	advanced := streak.Advance(user.Streak, day)
	if !firstToday {
		return advanced, nil, nil
	}

	if err := s.RepoConnInstance.UpdateStreak(ctx, userID, advanced); err != nil {
		return model.StreakState{}, nil, err
	}

	earned := streak.DeriveBadges(advanced, user.Badges)
	if err := s.RepoConnInstance.AppendBadges(ctx, userID, earned); err != nil {
		return model.StreakState{}, nil, err
	}
	return advanced, earned, nil
}

// scheduleRevisions inserts pending revision tasks at the fixed offsets,
// skipping due days that already have one. Returns the days actually
// created.
func (s *PracticeService) scheduleRevisions(ctx context.Context, userID, problemID primitive.ObjectID, day time.Time) ([]time.Time, error) {
	var created []time.Time
	for _, offset := range revisionOffsets {
		dueDay := daywindow.AddDays(day, offset)
		inserted, err := s.RepoConnInstance.InsertRevisionTaskIfAbsent(ctx, userID, problemID, dueDay)
		if err != nil {
			return nil, err
		}
		if inserted {
			created = append(created, dueDay)
		}
	}
	return created, nil
}

// GetDailyAssignments returns the day's board for the user: one
// assignment per enabled skill, each carrying the user's attempt status
// when present. Cached briefly; RecordSolve invalidates.
func (s *PracticeService) GetDailyAssignments(ctx context.Context, userID primitive.ObjectID, day time.Time) ([]model.AssignmentWithStatus, error) {
	traceID := uuid.New().String()
	day = s.normalizeDay(day)

	cacheKey := fmt.Sprintf("daily:%s:%s", userID.Hex(), day.Format("2006-01-02"))
	if cached, ok := s.cacheGet(ctx, traceID, cacheKey); ok {
		var board []model.AssignmentWithStatus
		if err := json.Unmarshal([]byte(cached), &board); err == nil {
			return board, nil
		}
	}

	user, err := s.RepoConnInstance.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	enabled := user.EnabledSkills()
	if len(enabled) == 0 {
		return []model.AssignmentWithStatus{}, nil
	}

	assignments, err := s.RepoConnInstance.AssignmentsForDay(ctx, day, enabled)
	if err != nil {
		return nil, err
	}
	statuses, err := s.RepoConnInstance.AttemptStatusesForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	board := make([]model.AssignmentWithStatus, len(assignments))
	for i, a := range assignments {
		board[i] = model.AssignmentWithStatus{
			Assignment:  a,
			SolveStatus: statuses[a.ProblemID],
		}
	}

	s.cacheSet(ctx, traceID, cacheKey, board, 30*time.Second)
	return board, nil
}

// ListPendingRevisions returns the user's due revision tasks, most
// overdue first.
func (s *PracticeService) ListPendingRevisions(ctx context.Context, userID primitive.ObjectID, asOf time.Time) ([]model.RevisionTask, error) {
	return s.RepoConnInstance.PendingRevisions(ctx, userID, s.normalizeDay(asOf))
}

// MarkRevisionDone acknowledges a revision task the user owns.
func (s *PracticeService) MarkRevisionDone(ctx context.Context, userID, taskID primitive.ObjectID) (*model.RevisionTask, error) {
	traceID := uuid.New().String()
	task, err := s.RepoConnInstance.MarkRevisionDone(ctx, userID, taskID)
	if err != nil {
		s.logger.Log(zapcore.ErrorLevel, traceID, "Failed to mark revision done", map[string]any{
			"method":    "MarkRevisionDone",
			"userId":    userID.Hex(),
			"taskId":    taskID.Hex(),
			"errorType": apperr.KindOf(err).String(),
		}, "SERVICE", err)
		return nil, err
	}
	return task, nil
}

// GetStreak returns the user's streak as of today: the stored counter, or
// zero if a full practice day has passed without a solve.
func (s *PracticeService) GetStreak(ctx context.Context, userID primitive.ObjectID) (model.StreakState, error) {
	user, err := s.RepoConnInstance.GetUser(ctx, userID)
	if err != nil {
		return model.StreakState{}, err
	}
	return streak.Effective(user.Streak, s.window.Today()), nil
}

// IsSolved reports whether the user has ever solved the problem, from the
// solved index.
func (s *PracticeService) IsSolved(ctx context.Context, userID, problemID primitive.ObjectID) (bool, error) {
	return s.RepoConnInstance.HasSolved(ctx, userID, problemID)
}

// GetUserStats returns the cheap aggregates backed by the solved index.
func (s *PracticeService) GetUserStats(ctx context.Context, userID primitive.ObjectID) (*model.UserStats, error) {
	traceID := uuid.New().String()

	cacheKey := fmt.Sprintf("stats:%s", userID.Hex())
	if cached, ok := s.cacheGet(ctx, traceID, cacheKey); ok {
		var stats model.UserStats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return &stats, nil
		}
	}

	user, err := s.RepoConnInstance.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.RepoConnInstance.CountSolved(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &model.UserStats{
		TotalSolved: total,
		Streak:      streak.Effective(user.Streak, s.window.Today()),
		Badges:      user.Badges,
	}

	s.cacheSet(ctx, traceID, cacheKey, stats, 5*time.Second)
	return stats, nil
}

// GetProblemAssignmentHistory returns when a problem was previously
// assigned, newest first.
func (s *PracticeService) GetProblemAssignmentHistory(ctx context.Context, problemID primitive.ObjectID) ([]model.AssignmentHistoryEntry, error) {
	if problemID.IsZero() {
		return nil, apperr.Validation("problemId required")
	}
	return s.RepoConnInstance.AssignmentHistoryForProblem(ctx, problemID)
}

// GetMonthlyActivityHeatmap returns one cell per day of the month with the
// user's solved count. Cached until the next practice-day rollover.
func (s *PracticeService) GetMonthlyActivityHeatmap(ctx context.Context, userID primitive.ObjectID, year int, month time.Month) ([]model.ActivityDay, error) {
	traceID := uuid.New().String()

	cacheKey := fmt.Sprintf("heatmap:%s:%d:%d", userID.Hex(), year, int(month))
	if cached, ok := s.cacheGet(ctx, traceID, cacheKey); ok {
		var days []model.ActivityDay
		if err := json.Unmarshal([]byte(cached), &days); err == nil {
			return days, nil
		}
	}

	counts, err := s.RepoConnInstance.MonthlySolvedCounts(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := make([]model.ActivityDay, 0, 31)
	for d := first; d.Month() == month; d = daywindow.AddDays(d, 1) {
		count := counts[d]
		days = append(days, model.ActivityDay{
			Date:     d.Format("2006-01-02"),
			Count:    count,
			IsActive: count > 0,
		})
	}

	now := time.Now().In(s.window.Location())
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	s.cacheSet(ctx, traceID, cacheKey, days, time.Until(nextMidnight))
	return days, nil
}

// ---- cache and event plumbing ----

func (s *PracticeService) cacheGet(ctx context.Context, traceID, key string) (string, bool) {
	val, ok, err := s.RedisCacheClient.Get(ctx, key)
	if err != nil {
		s.logger.Log(zapcore.WarnLevel, traceID, "Cache read failed", map[string]any{
			"cacheKey":  key,
			"errorType": "CACHE_ERROR",
		}, "SERVICE", err)
		return "", false
	}
	return val, ok
}

func (s *PracticeService) cacheSet(ctx context.Context, traceID, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Log(zapcore.ErrorLevel, traceID, "Failed to marshal cache value", map[string]any{
			"cacheKey":  key,
			"errorType": "MARSHAL_ERROR",
		}, "SERVICE", err)
		return
	}
	if err := s.RedisCacheClient.Set(ctx, key, data, ttl); err != nil {
		s.logger.Log(zapcore.WarnLevel, traceID, "Cache write failed", map[string]any{
			"cacheKey":  key,
			"errorType": "CACHE_ERROR",
		}, "SERVICE", err)
	}
}

func (s *PracticeService) invalidateUserCaches(ctx context.Context, userID primitive.ObjectID, day time.Time) {
	keys := []string{
		fmt.Sprintf("daily:%s:%s", userID.Hex(), day.Format("2006-01-02")),
		fmt.Sprintf("stats:%s", userID.Hex()),
		fmt.Sprintf("heatmap:%s:%d:%d", userID.Hex(), day.Year(), int(day.Month())),
	}
	if err := s.RedisCacheClient.Delete(ctx, keys...); err != nil {
		s.logger.Log(zapcore.WarnLevel, "", "Cache invalidation failed", map[string]any{
			"userId":    userID.Hex(),
			"errorType": "CACHE_ERROR",
		}, "SERVICE", err)
	}
}

func (s *PracticeService) publishSolveEvents(traceID string, req model.RecordSolveRequest, day time.Time, state model.StreakState, badges []string, dueDays []time.Time) {
	s.publish(traceID, natsclient.SubjectSolveRecorded, model.SolveRecordedEvent{
		UserID:    req.UserID.Hex(),
		ProblemID: req.ProblemID.Hex(),
		Date:      day,
		Status:    req.Status,
	})
	if len(badges) > 0 {
		s.publish(traceID, natsclient.SubjectBadgeAwarded, model.BadgeAwardedEvent{
			UserID: req.UserID.Hex(),
			Badges: badges,
			Streak: state.Current,
		})
	}
	if len(dueDays) > 0 {
		s.publish(traceID, natsclient.SubjectRevisionScheduled, model.RevisionScheduledEvent{
			UserID:    req.UserID.Hex(),
			ProblemID: req.ProblemID.Hex(),
			DueDays:   dueDays,
		})
	}
}

func (s *PracticeService) publish(traceID, subject string, event any) {
	if err := s.NatsClient.PublishEvent(subject, event); err != nil {
		s.logger.Log(zapcore.WarnLevel, traceID, "Failed to publish event", map[string]any{
			"subject":   subject,
			"errorType": "NATS_ERROR",
		}, "SERVICE", err)
	}
}
