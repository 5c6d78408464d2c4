package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLocalCacheKeyedByDocumentSet(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(time.Minute)
	id := uuid.New()

	c.Set(ctx, id, []string{"a", "b"}, "a.pdf, b.pdf")

	got, ok := c.Get(ctx, id, []string{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, "a.pdf, b.pdf", got)

	_, ok = c.Get(ctx, id, []string{"a"})
	assert.False(t, ok, "a different document set must miss")

	c.Invalidate(ctx, id)
	_, ok = c.Get(ctx, id, []string{"a", "b"})
	assert.False(t, ok)
}

func TestFingerprintDistinguishesBoundaries(t *testing.T) {
	assert.NotEqual(t, fingerprint([]string{"ab", "c"}), fingerprint([]string{"a", "bc"}))
	assert.Equal(t, fingerprint(nil), fingerprint([]string{}))
}

func TestNoopNeverHits(t *testing.T) {
	var c DescriptionCache = Noop{}
	c.Set(context.Background(), uuid.New(), nil, "x")
	_, ok := c.Get(context.Background(), uuid.New(), nil)
	assert.False(t, ok)
}
