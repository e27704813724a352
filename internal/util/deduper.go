package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce tries to acquire a dedup lock for a given handler + message id.
// Returns true if this is the FIRST time processing, false on a duplicate.
func (d *Deduper) AcquireOnce(ctx context.Context, handler, messageID string) bool {
	key := fmt.Sprintf("dedup:%s:%s", handler, messageID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// When redis is unavailable, processing is allowed through rather
		// than blocked; the handlers themselves are idempotent.
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("handler", handler),
				zap.String("message_id", messageID),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("message_id", messageID),
			zap.String("dedup_key", key),
		)
	}

	return ok
}
