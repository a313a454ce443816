package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/gradelab/gradelab-api/internal/middleware"
)

const (
	gradingSubject = "gradelab.grading.tasks"
	gradingQueue   = "gradelab-graders"
)

// GradingTask is the fire-and-forget handoff from upload (or retry) to the
// grading worker. There is no result channel back; the uploader's only view
// of progress is the submission status field.
type GradingTask struct {
	SubmissionID   uuid.UUID `json:"submission_id"`
	FocusProfileID uuid.UUID `json:"focus_profile_id"`
	UserID         uuid.UUID `json:"user_id"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
}

// GradingDispatcher submits grading tasks for asynchronous execution.
type GradingDispatcher interface {
	Dispatch(ctx context.Context, task GradingTask) error
}

type natsGradingDispatcher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewGradingDispatcher constructs a NATS-backed dispatcher.
func NewGradingDispatcher(conn *nats.Conn, logger zerolog.Logger) GradingDispatcher {
	return &natsGradingDispatcher{
		conn:   conn,
		logger: logger.With().Str("component", "grading_dispatcher").Logger(),
	}
}

func (d *natsGradingDispatcher) Dispatch(ctx context.Context, task GradingTask) error {
	if task.CorrelationID == "" {
		task.CorrelationID = middleware.CorrelationIDFromContext(ctx)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode grading task: %w", err)
	}

	if err := d.conn.Publish(gradingSubject, payload); err != nil {
		return fmt.Errorf("publish grading task: %w", err)
	}

	d.logger.Debug().
		Str("submission_id", task.SubmissionID.String()).
		Msg("grading task dispatched")

	return nil
}

// GradingWorker consumes grading tasks and runs the pipeline. Workers in the
// same queue group share the load; each task is one independent grading
// attempt with no coordination between concurrent submissions.
type GradingWorker struct {
	conn    *nats.Conn
	grading GradingService
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGradingWorker constructs the queue-group worker.
func NewGradingWorker(conn *nats.Conn, grading GradingService, timeout time.Duration, logger zerolog.Logger) *GradingWorker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &GradingWorker{
		conn:    conn,
		grading: grading,
		timeout: timeout,
		logger:  logger.With().Str("component", "grading_worker").Logger(),
	}
}

// Start subscribes to the grading subject. The returned subscription should be
// drained on shutdown.
func (w *GradingWorker) Start() (*nats.Subscription, error) {
	sub, err := w.conn.QueueSubscribe(gradingSubject, gradingQueue, func(msg *nats.Msg) {
		var task GradingTask
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			w.logger.Error().Err(err).Msg("discarding malformed grading task")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		ctx = middleware.ContextWithCorrelation(ctx, task.CorrelationID)

		// The pipeline records its own terminal status; failures here are
		// already visible to pollers, so just log them.
		if _, err := w.grading.Grade(ctx, task.SubmissionID, task.FocusProfileID, task.UserID); err != nil {
			w.logger.Warn().Err(err).
				Str("submission_id", task.SubmissionID.String()).
				Str("correlation_id", task.CorrelationID).
				Msg("async grading attempt failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe grading tasks: %w", err)
	}

	w.logger.Info().Str("subject", gradingSubject).Msg("grading worker started")

	return sub, nil
}
