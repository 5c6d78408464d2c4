package cache

import (
	"context"
	"time"

	"docchat-client/internal/constant"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Local keeps descriptions in process memory.
type Local struct {
	cache *gocache.Cache
}

func NewLocal(ttl time.Duration) *Local {
	return &Local{
		cache: gocache.New(defaultTTL(ttl), constant.DescriptionCachePurge),
	}
}

func (l *Local) Get(ctx context.Context, sessionId uuid.UUID, documentIds []string) (string, bool) {
	x, found := l.cache.Get(sessionId.String())
	if !found {
		return "", false
	}
	e := x.(entry)
	if e.Fingerprint != fingerprint(documentIds) {
		return "", false
	}
	return e.Description, true
}

func (l *Local) Set(ctx context.Context, sessionId uuid.UUID, documentIds []string, description string) {
	l.cache.Set(sessionId.String(), entry{
		Fingerprint: fingerprint(documentIds),
		Description: description,
	}, gocache.DefaultExpiration)
}

func (l *Local) Invalidate(ctx context.Context, sessionId uuid.UUID) {
	l.cache.Delete(sessionId.String())
}
