package cache

import (
	"context"
	"encoding/json"
	"time"

	"docchat-client/internal/constant"
	"docchat-client/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis shares descriptions between clients of the same store. Failures
// degrade to cache misses.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.ILogger
}

func NewRedis(rdb *redis.Client, ttl time.Duration, log logger.ILogger) *Redis {
	return &Redis{
		rdb:    rdb,
		ttl:    defaultTTL(ttl),
		logger: log,
	}
}

func (r *Redis) key(sessionId uuid.UUID) string {
	return constant.DescriptionCachePrefix + sessionId.String()
}

func (r *Redis) Get(ctx context.Context, sessionId uuid.UUID, documentIds []string) (string, bool) {
	raw, err := r.rdb.Get(ctx, r.key(sessionId)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("DescriptionCache", "Redis get failed", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
		}
		return "", false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", false
	}
	if e.Fingerprint != fingerprint(documentIds) {
		return "", false
	}
	return e.Description, true
}

func (r *Redis) Set(ctx context.Context, sessionId uuid.UUID, documentIds []string, description string) {
	payload, _ := json.Marshal(entry{
		Fingerprint: fingerprint(documentIds),
		Description: description,
	})
	if err := r.rdb.Set(ctx, r.key(sessionId), payload, r.ttl).Err(); err != nil {
		r.logger.Warn("DescriptionCache", "Redis set failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}

func (r *Redis) Invalidate(ctx context.Context, sessionId uuid.UUID) {
	if err := r.rdb.Del(ctx, r.key(sessionId)).Err(); err != nil {
		r.logger.Warn("DescriptionCache", "Redis delete failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}
