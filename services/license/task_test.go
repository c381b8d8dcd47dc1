package license

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chwone-controlplane/pkg/db/option"
	"chwone-controlplane/pkg/task"
	"chwone-controlplane/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEnqueueSweep(t *testing.T) {
	svc, _ := newTestService(t)
	ctrl := gomock.NewController(t)
	enq := task.NewMockEnqueuer(ctrl)

	var enqueued *asynq.Task
	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tk *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
			enqueued = tk
			return &asynq.TaskInfo{ID: "sweep-1"}, nil
		})

	job, err := svc.EnqueueSweep(context.Background(), enq, taskname.LicenseExpiryRun, "sweep-1")
	require.NoError(t, err)
	require.Equal(t, JobPending, job.Status)

	require.NotNil(t, enqueued)
	require.Equal(t, taskname.LicenseExpiryRun, enqueued.Type())
	var payload jobPayload
	require.NoError(t, json.Unmarshal(enqueued.Payload(), &payload))
	require.Equal(t, job.ID, payload.JobID)

	stored, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, JobPending, stored.Status)
	require.Equal(t, "sweep-1", stored.Metadata["task_id"])
}

func TestEnqueueSweepAlreadyQueued(t *testing.T) {
	svc, _ := newTestService(t)
	ctrl := gomock.NewController(t)
	enq := task.NewMockEnqueuer(ctrl)

	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, asynq.ErrTaskIDConflict)

	job, err := svc.EnqueueSweep(context.Background(), enq, taskname.LicenseSessionCloseStale, "dup")
	require.NoError(t, err)

	stored, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, JobFailed, stored.Status)
	require.Contains(t, stored.ErrorMsg, "task ID conflicts")
}

func TestEnqueueSweepQueueDown(t *testing.T) {
	svc, _ := newTestService(t)
	ctrl := gomock.NewController(t)
	enq := task.NewMockEnqueuer(ctrl)

	down := errors.New("redis: connection refused")
	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, down)

	job, err := svc.EnqueueSweep(context.Background(), enq, taskname.LicenseExpiryRun, "")
	require.ErrorIs(t, err, down)
	require.Nil(t, job)
}

func jobTask(t *testing.T, taskType, jobID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(jobPayload{JobID: jobID})
	require.NoError(t, err)
	return asynq.NewTask(taskType, payload)
}

func TestHandleExpiryTask(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	in := activeInput("org-1", 3)
	end := clk.Now().Add(time.Hour)
	in.EndDate = &end
	l := mustCreate(t, svc, in)

	job := &Job{ID: svc.newID(), TaskType: taskname.LicenseExpiryRun, Status: JobPending}
	require.NoError(t, svc.jobs.Create(ctx, job))

	clk.Advance(2 * time.Hour)
	require.NoError(t, svc.HandleExpiryTask(ctx, jobTask(t, taskname.LicenseExpiryRun, job.ID)))

	require.Equal(t, StatusExpired, mustGet(t, svc, l.ID).Status)

	stored, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobSuccess, stored.Status)
	require.NotNil(t, stored.StartedAt)
	require.NotNil(t, stored.CompletedAt)
	require.Equal(t, json.Number("1"), stored.Metadata["expired"])
}

func TestHandleCloseStaleTask(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	l := mustCreate(t, svc, activeInput("org-1", 3))
	require.NoError(t, svc.GrantToolAccess(ctx, l.ID, Forms, 3, admin))
	_, err := svc.StartToolSession(ctx, StartSessionInput{LicenseID: l.ID, Tool: Forms, UserID: "user-1"})
	require.NoError(t, err)

	job := &Job{ID: svc.newID(), TaskType: taskname.LicenseSessionCloseStale, Status: JobPending}
	require.NoError(t, svc.jobs.Create(ctx, job))

	clk.Advance(StaleSessionAge + time.Minute)
	require.NoError(t, svc.HandleCloseStaleTask(ctx, jobTask(t, taskname.LicenseSessionCloseStale, job.ID)))

	stored, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobSuccess, stored.Status)
	require.Equal(t, json.Number("1"), stored.Metadata["closed"])
}

func TestHandleTaskFailureIsRecorded(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	job := &Job{ID: svc.newID(), TaskType: taskname.LicenseExpiryRun, Status: JobPending}
	require.NoError(t, svc.jobs.Create(ctx, job))

	down := errors.New("connection reset")
	svc.licenses = &repoMock[OrganizationLicense]{
		findFn: func(context.Context, *OrganizationLicense, ...option.QueryOption) ([]*OrganizationLicense, error) {
			return nil, down
		},
	}

	err := svc.HandleExpiryTask(ctx, jobTask(t, taskname.LicenseExpiryRun, job.ID))
	require.ErrorIs(t, err, down)

	stored, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobFailed, stored.Status)
	require.Contains(t, stored.ErrorMsg, "connection reset")
}

func TestHandleTaskBadPayloadSkipsRetry(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.HandleExpiryTask(context.Background(), asynq.NewTask(taskname.LicenseExpiryRun, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRegisterTasks(t *testing.T) {
	svc, _ := newTestService(t)
	mux := asynq.NewServeMux()
	RegisterTasks(mux, svc)

	for _, name := range SweepTasks {
		_, pattern := mux.Handler(asynq.NewTask(name, nil))
		require.Equal(t, name, pattern)
	}
}
