// Package worker runs periodic jobs (expiry sweep, alert dispatch). A Redis
// lock keeps a job to one replica per tick; the jobs stay correct without it.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// LastRunKey is the Redis hash holding one RunRecord per job name.
const LastRunKey = "worker:last_run"

// Task does one unit of periodic work at now.
type Task func(ctx context.Context, now time.Time) error

type RunRecord struct {
	At         time.Time `json:"at"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

type Runner struct {
	Name     string
	Interval time.Duration
	Task     Task
	Locker   *redislock.Client
	LockTTL  time.Duration
	Redis    *redis.Client
	Now      func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Run calls RunOnce now and then every Interval until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	log.Info().Str("worker", r.Name).Dur("interval", r.Interval).Msg("worker started")
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("worker", r.Name).Msg("worker run failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Str("worker", r.Name).Msg("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes the task under the job lock. It reports false without
// running when another replica holds the lock. If the lock service itself
// fails, the task runs unlocked.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	if r.Locker != nil {
		lock, err := r.Locker.Obtain(ctx, "lock:worker:"+r.Name, r.lockTTL(), nil)
		switch {
		case errors.Is(err, redislock.ErrNotObtained):
			log.Debug().Str("worker", r.Name).Msg("worker lock held elsewhere, skipping")
			return false, nil
		case err != nil:
			log.Warn().Err(err).Str("worker", r.Name).Msg("error obtaining worker lock; running without lock")
		default:
			defer func() {
				if rerr := lock.Release(context.Background()); rerr != nil && !errors.Is(rerr, redislock.ErrLockNotHeld) {
					log.Warn().Err(rerr).Str("worker", r.Name).Msg("failed to release worker lock")
				}
			}()
		}
	}

	start := r.now()
	err := r.Task(ctx, start)
	rec := RunRecord{At: start, OK: err == nil, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		rec.Error = err.Error()
	}
	r.record(ctx, rec)
	return true, err
}

func (r *Runner) lockTTL() time.Duration {
	if r.LockTTL > 0 {
		return r.LockTTL
	}
	return 30 * time.Second
}

func (r *Runner) record(ctx context.Context, rec RunRecord) {
	if r.Redis == nil {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.Redis.HSet(ctx, LastRunKey, r.Name, b).Err(); err != nil {
		log.Warn().Err(err).Str("worker", r.Name).Msg("failed to record worker run")
	}
}

// LastRuns returns the latest RunRecord per job name.
func LastRuns(ctx context.Context, rdb *redis.Client) (map[string]RunRecord, error) {
	out := map[string]RunRecord{}
	if rdb == nil {
		return out, nil
	}
	raw, err := rdb.HGetAll(ctx, LastRunKey).Result()
	if err != nil {
		return nil, err
	}
	for name, v := range raw {
		var rec RunRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		out[name] = rec
	}
	return out, nil
}
