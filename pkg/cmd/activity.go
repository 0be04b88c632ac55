package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/paygrid/payflow/pkg/activity"
)

// NewActivityRecorder selects the activity feed backend: Redis when a URL
// is configured, an in-memory recorder otherwise.
func NewActivityRecorder(redisURL string) activity.Recorder {
	if redisURL == "" {
		return activity.NewMemoryRecorder()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return activity.NewRedisRecorder(redis.NewClient(opts))
}
