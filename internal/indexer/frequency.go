package indexer

import (
	"context"
	"strconv"

	pkgredis "github.com/babelindex/babelindex/pkg/redis"
)

const frequencyKey = "vocab:frequency"

// RedisFrequencyTracker keeps per-spelling usage counts in a Redis hash.
type RedisFrequencyTracker struct {
	client *pkgredis.Client
}

func NewRedisFrequencyTracker(client *pkgredis.Client) *RedisFrequencyTracker {
	return &RedisFrequencyTracker{client: client}
}

func (t *RedisFrequencyTracker) Adjust(ctx context.Context, spellings []string, delta int64) error {
	for _, spelling := range spellings {
		if _, err := t.client.HIncrBy(ctx, frequencyKey, spelling, delta); err != nil {
			return err
		}
	}
	return nil
}

// Frequency returns the current count for one spelling, zero when unseen.
func (t *RedisFrequencyTracker) Frequency(ctx context.Context, spelling string) (int64, error) {
	v, err := t.client.HGet(ctx, frequencyKey, spelling)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
