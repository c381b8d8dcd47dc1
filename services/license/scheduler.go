package license

import (
	"context"
	"os"
	"time"

	"chwone-controlplane/pkg/rediskey"
	"chwone-controlplane/pkg/task"
	"chwone-controlplane/pkg/taskname"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// sweepLockTTL outlives the day so a replica starting late cannot enqueue
// the same sweep twice.
const sweepLockTTL = 25 * time.Hour

// defaultLockHolder marks locks taken by a replica whose hostname is unknown.
const defaultLockHolder = "license-scheduler"

// SweepTasks are enqueued once a day.
var SweepTasks = []string{taskname.LicenseExpiryRun, taskname.LicenseSessionCloseStale}

type Scheduler struct {
	service  *Service
	enqueuer task.Enqueuer
	rdb      *redis.Client
	hour     int
	now      func() time.Time
	hostname func() (string, error)
}

type SchedulerParams struct {
	fx.In
	Service  *Service
	Enqueuer task.Enqueuer
	Redis    *redis.Client
}

func NewScheduler(p SchedulerParams) *Scheduler {
	return &Scheduler{
		service:  p.Service,
		enqueuer: p.Enqueuer,
		rdb:      p.Redis,
		hour:     p.Service.cfg.ExpirySweepHour,
		now:      func() time.Time { return time.Now().UTC() },
		hostname: os.Hostname,
	}
}

// StartScheduler runs the daily loop for the lifetime of the app.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started license sweep scheduler", zap.Int("hour_utc", s.hour))

	for {
		now := s.now()
		next := nextRunTime(now, s.hour, 0)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			if _, err := s.RunDaily(ctx); err != nil {
				zap.L().Error("[Scheduler] daily sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

// RunDaily enqueues each sweep task unless another replica already did so
// today. It returns the jobs it enqueued.
func (s *Scheduler) RunDaily(ctx context.Context) ([]*Job, error) {
	start := s.now()
	holder := s.lockHolder()

	var jobs []*Job
	for _, taskType := range SweepTasks {
		key := rediskey.BuildSweepLockKey(taskType, start)
		acquired, err := s.rdb.SetNX(ctx, key, holder, sweepLockTTL).Result()
		if err != nil {
			return jobs, err
		}
		if !acquired {
			zap.L().Info("[Scheduler] sweep already claimed", zap.String("task_type", taskType), zap.String("lock", key))
			continue
		}

		job, err := s.service.EnqueueSweep(ctx, s.enqueuer, taskType, key)
		if err != nil {
			// Release the claim so a later run can retry today.
			s.rdb.Del(ctx, key)
			return jobs, err
		}
		jobs = append(jobs, job)
	}

	zap.L().Info("[Scheduler] finished daily enqueue",
		zap.Int("jobs", len(jobs)),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return jobs, nil
}

// nextRunTime returns the next occurrence of hour:minute at or after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

func (s *Scheduler) lockHolder() string {
	name, err := s.hostname()
	if err != nil || name == "" {
		zap.L().Warn("[Scheduler] hostname unavailable, using default lock holder",
			zap.String("holder", defaultLockHolder), zap.Error(err))
		return defaultLockHolder
	}
	return name
}
