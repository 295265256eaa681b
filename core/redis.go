package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const postViewsPrefix = "post:views:"

// ViewCounter counts how often a post page was rendered. Counting is best effort.
type ViewCounter interface {
	Increment(ctx context.Context, postID int64) (int64, error)
	Forget(ctx context.Context, postID int64) error
	Ping(ctx context.Context) error
	Enabled() bool
}

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// RedisViewCounter implements ViewCounter with one INCR key per post.
type RedisViewCounter struct {
	client redis.Cmdable
}

func NewRedisViewCounter(client redis.Cmdable) *RedisViewCounter {
	return &RedisViewCounter{client: client}
}

func PostViewsKey(postID int64) string {
	return postViewsPrefix + strconv.FormatInt(postID, 10)
}

func (v *RedisViewCounter) Increment(ctx context.Context, postID int64) (int64, error) {
	return v.client.Incr(ctx, PostViewsKey(postID)).Result()
}

func (v *RedisViewCounter) Forget(ctx context.Context, postID int64) error {
	return v.client.Del(ctx, PostViewsKey(postID)).Err()
}

func (v *RedisViewCounter) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *RedisViewCounter) Enabled() bool { return true }

// NoopViewCounter is used when no Redis is configured.
type NoopViewCounter struct{}

func (NoopViewCounter) Increment(context.Context, int64) (int64, error) { return 0, nil }
func (NoopViewCounter) Forget(context.Context, int64) error             { return nil }
func (NoopViewCounter) Ping(context.Context) error                      { return nil }
func (NoopViewCounter) Enabled() bool                                   { return false }
