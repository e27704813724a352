package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobGuard enforces one active processing job per account. The lock is held
// for the lifetime of the job and released when the job reaches a terminal
// state; the TTL is a safety net against worker crashes.
type JobGuard struct {
	rdb   *redis.Client
	scope string
	ttl   time.Duration
}

// NewJobGuard builds a per-account guard under the given key scope, e.g.
// "jobguard" for batch processing or "discoveryguard" for pattern runs.
func NewJobGuard(rdb *redis.Client, scope string, ttl time.Duration) *JobGuard {
	return &JobGuard{rdb: rdb, scope: scope, ttl: ttl}
}

func (g *JobGuard) guardKey(accountID int) string {
	return fmt.Sprintf("%s:%d", g.scope, accountID)
}

// Acquire returns true if no other job is active for the account.
func (g *JobGuard) Acquire(ctx context.Context, accountID int, jobID string) (bool, error) {
	return g.rdb.SetNX(ctx, g.guardKey(accountID), jobID, g.ttl).Result()
}

// Release frees the guard, but only if it is still held by the given job.
func (g *JobGuard) Release(ctx context.Context, accountID int, jobID string) error {
	const script = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`
	return g.rdb.Eval(ctx, script, []string{g.guardKey(accountID)}, jobID).Err()
}

// Holder returns the job id currently holding the guard, or "" if free.
func (g *JobGuard) Holder(ctx context.Context, accountID int) (string, error) {
	id, err := g.rdb.Get(ctx, g.guardKey(accountID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}
