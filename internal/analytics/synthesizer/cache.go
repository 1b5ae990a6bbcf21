package synthesizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"marketing-analyst/internal/models"
)

const draftKeyPrefix = "analyst:sqldraft:"

// DraftCache stores post-safety-net SQL drafts. Query results are never
// cached.
type DraftCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, query string) error
}

// DraftKey hashes the normalized question plus which optional filters are
// active. Filter values are bound at execution time, so they are not part
// of the key.
func DraftKey(question string, filters models.Filters) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	var b strings.Builder
	b.WriteString(normalized)
	b.WriteString("|segment=")
	if filters.ActiveSegment() != "" {
		b.WriteString("1")
	} else {
		b.WriteString("0")
	}
	b.WriteString("|channel=")
	if filters.ActiveChannel() != "" {
		b.WriteString("1")
	} else {
		b.WriteString("0")
	}
	sum := sha256.Sum256([]byte(b.String()))
	return draftKeyPrefix + hex.EncodeToString(sum[:])
}

// RedisDraftCache keeps drafts in Redis with a fixed TTL.
type RedisDraftCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDraftCache(client redis.Cmdable, ttl time.Duration) *RedisDraftCache {
	return &RedisDraftCache{client: client, ttl: ttl}
}

func (c *RedisDraftCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisDraftCache) Set(ctx context.Context, key, query string) error {
	return c.client.Set(ctx, key, query, c.ttl).Err()
}

// NoopCache never hits.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (NoopCache) Set(context.Context, string, string) error         { return nil }
