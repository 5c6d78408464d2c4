package cache

import (
	"context"
	"time"

	"docchat-client/internal/constant"

	"github.com/google/uuid"
)

// DescriptionCache memoizes a session's derived description keyed by its
// document id set, so a changed set never serves a stale value.
type DescriptionCache interface {
	Get(ctx context.Context, sessionId uuid.UUID, documentIds []string) (string, bool)
	Set(ctx context.Context, sessionId uuid.UUID, documentIds []string, description string)
	Invalidate(ctx context.Context, sessionId uuid.UUID)
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, uuid.UUID, []string) (string, bool) { return "", false }
func (Noop) Set(context.Context, uuid.UUID, []string, string)        {}
func (Noop) Invalidate(context.Context, uuid.UUID)                   {}

type entry struct {
	Fingerprint string `json:"fingerprint"`
	Description string `json:"description"`
}

func fingerprint(documentIds []string) string {
	n := 0
	for _, id := range documentIds {
		n += len(id) + 1
	}
	b := make([]byte, 0, n)
	for _, id := range documentIds {
		b = append(b, id...)
		b = append(b, 0)
	}
	return string(b)
}

func defaultTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return constant.DefaultDescriptionTTL
	}
	return ttl
}
