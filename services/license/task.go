package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chwone-controlplane/pkg/task"
	"chwone-controlplane/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// StaleSessionAge is how long a session may stay open before the sweep
// closes it.
const StaleSessionAge = 24 * time.Hour

type jobPayload struct {
	JobID string `json:"job_id"`
}

// EnqueueSweep records a pending job and hands it to the queue. taskID, when
// set, deduplicates the task in asynq.
func (s *Service) EnqueueSweep(ctx context.Context, enq task.Enqueuer, taskType, taskID string) (*Job, error) {
	zapLog := logger(ctx)

	job := &Job{
		ID:       s.newID(),
		TaskType: taskType,
		Status:   JobPending,
		Metadata: datatypes.JSONMap{"task_id": taskID},
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, storeError(err)
	}

	payload, err := json.Marshal(jobPayload{JobID: job.ID})
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{asynq.Queue(task.QueueLow), asynq.MaxRetry(3), asynq.Timeout(30 * time.Minute)}
	if taskID != "" {
		opts = append(opts, asynq.TaskID(taskID))
	}

	if _, err := enq.Enqueue(ctx, asynq.NewTask(taskType, payload), opts...); err != nil {
		s.finishJob(ctx, job.ID, err, nil)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			zapLog.Info("sweep already enqueued", zap.String("task_type", taskType), zap.String("task_id", taskID))
			return job, nil
		}
		return nil, err
	}

	zapLog.Info("enqueued license sweep",
		zap.String("task_type", taskType),
		zap.String("job_id", job.ID),
		zap.String("task_id", taskID),
	)
	return job, nil
}

// HandleExpiryTask is the worker entry point for taskname.LicenseExpiryRun.
func (s *Service) HandleExpiryTask(ctx context.Context, t *asynq.Task) error {
	return s.runJob(ctx, t, func(ctx context.Context) (map[string]any, error) {
		n, err := s.ExpireLapsedLicenses(ctx)
		return map[string]any{"expired": n}, err
	})
}

// HandleCloseStaleTask is the worker entry point for
// taskname.LicenseSessionCloseStale.
func (s *Service) HandleCloseStaleTask(ctx context.Context, t *asynq.Task) error {
	return s.runJob(ctx, t, func(ctx context.Context) (map[string]any, error) {
		n, err := s.CloseStaleSessions(ctx, StaleSessionAge)
		return map[string]any{"closed": n}, err
	})
}

func (s *Service) runJob(ctx context.Context, t *asynq.Task, run func(context.Context) (map[string]any, error)) error {
	zapLog := logger(ctx).With(zap.String("task_type", t.Type()))

	var payload jobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zapLog.Error("invalid license task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", payload.JobID).Updates(map[string]any{
		"status":     JobRunning,
		"started_at": now,
		"error_msg":  "",
	}).Error; err != nil {
		zapLog.Warn("failed to mark job running", zap.Error(err), zap.String("job_id", payload.JobID))
	}

	zapLog.Info("processing license task", zap.String("job_id", payload.JobID))
	result, err := run(ctx)
	s.finishJob(ctx, payload.JobID, err, result)
	if err != nil {
		zapLog.Error("license task failed", zap.Error(err), zap.String("job_id", payload.JobID))
		return err
	}

	zapLog.Info("license task finished", zap.String("job_id", payload.JobID), zap.Any("result", result))
	return nil
}

// finishJob records the outcome. Bookkeeping failures are logged only.
func (s *Service) finishJob(ctx context.Context, jobID string, runErr error, result map[string]any) {
	updates := map[string]any{
		"status":       JobSuccess,
		"completed_at": s.now(),
	}
	if runErr != nil {
		updates["status"] = JobFailed
		updates["error_msg"] = runErr.Error()
	}
	if result != nil {
		updates["metadata"] = datatypes.JSONMap(result)
	}

	if err := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		logger(ctx).Warn("failed to record job result", zap.Error(err), zap.String("job_id", jobID))
	}
}

// GetJob returns nil, nil when the job does not exist.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.jobs.FindOne(ctx, &Job{ID: jobID})
	if err != nil {
		return nil, storeError(err)
	}
	return job, nil
}

// RegisterTasks binds the license task handlers on mux.
func RegisterTasks(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.LicenseExpiryRun, s.HandleExpiryTask)
	mux.HandleFunc(taskname.LicenseSessionCloseStale, s.HandleCloseStaleTask)
}
