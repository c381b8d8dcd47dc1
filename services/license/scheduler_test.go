package license

import (
	"context"
	"errors"
	"testing"
	"time"

	"chwone-controlplane/pkg/rediskey"
	"chwone-controlplane/pkg/task"
	"chwone-controlplane/pkg/taskname"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestScheduler(t *testing.T, enq task.Enqueuer) (*Scheduler, *miniredis.Miniredis, *clock) {
	t.Helper()
	svc, clk := newTestService(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewScheduler(SchedulerParams{Service: svc, Enqueuer: enq, Redis: rdb})
	s.now = clk.Now
	return s, mr, clk
}

func TestRunDailyEnqueuesOncePerDay(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := task.NewMockEnqueuer(ctrl)
	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&asynq.TaskInfo{}, nil).
		Times(2)

	s, mr, clk := newTestScheduler(t, enq)
	ctx := context.Background()

	jobs, err := s.RunDaily(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, taskname.LicenseExpiryRun, jobs[0].TaskType)
	require.Equal(t, taskname.LicenseSessionCloseStale, jobs[1].TaskType)

	key := rediskey.BuildSweepLockKey(taskname.LicenseExpiryRun, clk.Now())
	require.True(t, mr.Exists(key))
	require.Equal(t, sweepLockTTL, mr.TTL(key))

	// A second replica on the same day finds the locks taken.
	jobs, err = s.RunDaily(ctx)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestRunDailyReleasesLockOnEnqueueFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := task.NewMockEnqueuer(ctrl)
	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("queue unavailable"))

	s, mr, clk := newTestScheduler(t, enq)

	_, err := s.RunDaily(context.Background())
	require.Error(t, err)
	require.False(t, mr.Exists(rediskey.BuildSweepLockKey(taskname.LicenseExpiryRun, clk.Now())))
}

func TestRunDailyRedisDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	s, mr, _ := newTestScheduler(t, task.NewMockEnqueuer(ctrl))
	mr.Close()

	_, err := s.RunDaily(context.Background())
	require.Error(t, err)
}

func TestNextRunTime(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }

	require.Equal(t, at(1, 0), nextRunTime(at(0, 30), 1, 0))
	require.Equal(t, at(1, 0), nextRunTime(at(1, 0), 1, 0))
	require.Equal(t, at(1, 0).Add(24*time.Hour), nextRunTime(at(1, 1), 1, 0))
	require.Equal(t, at(23, 45), nextRunTime(at(9, 0), 23, 45))
}

func TestRunDailyLockHolderFallsBackWithoutHostname(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := task.NewMockEnqueuer(ctrl)
	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&asynq.TaskInfo{}, nil).
		Times(2)

	s, mr, clk := newTestScheduler(t, enq)
	s.hostname = func() (string, error) { return "", errors.New("uname failed") }

	_, err := s.RunDaily(context.Background())
	require.NoError(t, err)

	got, err := mr.Get(rediskey.BuildSweepLockKey(taskname.LicenseExpiryRun, clk.Now()))
	require.NoError(t, err)
	require.Equal(t, defaultLockHolder, got)
}

func TestLockHolderUsesHostname(t *testing.T) {
	s := &Scheduler{hostname: func() (string, error) { return "worker-2", nil }}
	require.Equal(t, "worker-2", s.lockHolder())
}
