package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zapcore"

	"prepstreak/apperr"
	"prepstreak/model"
	"prepstreak/natsclient"
)

// Request/reply subjects the gateway calls. The engine itself stays
// transport-agnostic; these handlers only decode, delegate and encode.
const (
	SubjectDailyGet     = "practice.daily.get"
	SubjectSolveRecord  = "practice.solve.record"
	SubjectRevisionList = "practice.revision.list"
	SubjectRevisionDone = "practice.revision.done"
	SubjectStreakGet    = "practice.streak.get"
	SubjectStatsGet     = "practice.stats.get"
)

const handlerTimeout = 10 * time.Second

type dailyGetRequest struct {
	UserID string `json:"userId"`
	Date   string `json:"date,omitempty"`
}

type revisionListRequest struct {
	UserID string `json:"userId"`
	AsOf   string `json:"asOf,omitempty"`
}

type revisionDoneRequest struct {
	UserID string `json:"userId"`
	TaskID string `json:"taskId"`
}

type userRequest struct {
	UserID string `json:"userId"`
}

type solveRecordRequest struct {
	UserID        string `json:"userId"`
	ProblemID     string `json:"problemId"`
	Date          string `json:"date,omitempty"`
	Status        string `json:"status"`
	Note          string `json:"note,omitempty"`
	PlacementFlag bool   `json:"placementFlag,omitempty"`
}

// RegisterHandlers subscribes the request/reply surface on the given NATS
// client. Handlers run on the NATS delivery goroutine; each call gets its
// own timeout-bound context.
func (s *PracticeService) RegisterHandlers(nc *natsclient.NatsClient) error {
	handlers := map[string]func(ctx context.Context, data []byte) (any, error){
		SubjectDailyGet:     s.handleDailyGet,
		SubjectSolveRecord:  s.handleSolveRecord,
		SubjectRevisionList: s.handleRevisionList,
		SubjectRevisionDone: s.handleRevisionDone,
		SubjectStreakGet:    s.handleStreakGet,
		SubjectStatsGet:     s.handleStatsGet,
	}

	for subject, handler := range handlers {
		handler := handler
		_, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			defer cancel()

			payload, err := handler(ctx, msg.Data)
			reply, marshalErr := json.Marshal(toResponse(payload, err))
			if marshalErr != nil {
				s.logger.Log(zapcore.ErrorLevel, "", "Failed to marshal reply", map[string]any{
					"subject":   msg.Subject,
					"errorType": "MARSHAL_ERROR",
				}, "HANDLER", marshalErr)
				return
			}
			if err := msg.Respond(reply); err != nil {
				s.logger.Log(zapcore.WarnLevel, "", "Failed to respond", map[string]any{
					"subject":   msg.Subject,
					"errorType": "NATS_ERROR",
				}, "HANDLER", err)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PracticeService) handleDailyGet(ctx context.Context, data []byte) (any, error) {
	var req dailyGetRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperr.Validation("malformed request: %v", err)
	}
	userID, err := parseObjectID(req.UserID, "userId")
	if err != nil {
		return nil, err
	}
	day, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	return s.GetDailyAssignments(ctx, userID, day)
}

func (s *PracticeService) handleSolveRecord(ctx context.Context, data []byte) (any, error) {
	var req solveRecordRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperr.Validation("malformed request: %v", err)
	}
	userID, err := parseObjectID(req.UserID, "userId")
	if err != nil {
		return nil, err
	}
	problemID, err := parseObjectID(req.ProblemID, "problemId")
	if err != nil {
		return nil, err
	}
	day, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	return s.RecordSolve(ctx, model.RecordSolveRequest{
		UserID:        userID,
		ProblemID:     problemID,
		Date:          day,
		Status:        model.AttemptStatus(req.Status),
		Note:          req.Note,
		PlacementFlag: req.PlacementFlag,
	})
}

func (s *PracticeService) handleRevisionList(ctx context.Context, data []byte) (any, error) {
	var req revisionListRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperr.Validation("malformed request: %v", err)
	}
	userID, err := parseObjectID(req.UserID, "userId")
	if err != nil {
		return nil, err
	}
	asOf, err := parseDay(req.AsOf)
	if err != nil {
		return nil, err
	}
	return s.ListPendingRevisions(ctx, userID, asOf)
}

func (s *PracticeService) handleRevisionDone(ctx context.Context, data []byte) (any, error) {
	var req revisionDoneRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperr.Validation("malformed request: %v", err)
	}
	userID, err := parseObjectID(req.UserID, "userId")
	if err != nil {
		return nil, err
	}
	taskID, err := parseObjectID(req.TaskID, "taskId")
	if err != nil {
		return nil, err
	}
	return s.MarkRevisionDone(ctx, userID, taskID)
}

func (s *PracticeService) handleStreakGet(ctx context.Context, data []byte) (any, error) {
	var req userRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperr.Validation("malformed request: %v", err)
	}
	userID, err := parseObjectID(req.UserID, "userId")
	if err != nil {
		return nil, err
	}
	return s.GetStreak(ctx, userID)
}

func (s *PracticeService) handleStatsGet(ctx context.Context, data []byte) (any, error) {
	var req userRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperr.Validation("malformed request: %v", err)
	}
	userID, err := parseObjectID(req.UserID, "userId")
	if err != nil {
		return nil, err
	}
	return s.GetUserStats(ctx, userID)
}

func parseObjectID(raw, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid %s", field)
	}
	return id, nil
}

func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q, want YYYY-MM-DD", raw)
	}
	return day, nil
}

func toResponse(payload any, err error) model.GenericResponse {
	if err == nil {
		return model.GenericResponse{Success: true, Status: 200, Payload: payload}
	}
	status := 500
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = 400
	case apperr.KindNotFound:
		status = 404
	case apperr.KindUpstream:
		status = 503
	}
	return model.GenericResponse{
		Success: false,
		Status:  status,
		Error: &model.ErrorInfo{
			ErrorType: apperr.KindOf(err).String(),
			Code:      status,
			Message:   err.Error(),
		},
	}
}
