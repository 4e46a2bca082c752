package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/feedback-service/internal/events"
)

// FailureStore records failed deliveries and lists the most recent ones.
type FailureStore interface {
	events.FailureSink
	List(ctx context.Context, limit int) ([]events.Failure, error)
}

// RedisFailureSink keeps failures in a capped Redis list, newest first.
type RedisFailureSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisFailureSink builds the sink.
func NewRedisFailureSink(client *redis.Client, key string, maxLen int64) *RedisFailureSink {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &RedisFailureSink{client: client, key: key, maxLen: maxLen}
}

// Record pushes failure and trims the list.
func (s *RedisFailureSink) Record(ctx context.Context, failure events.Failure) error {
	payload, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("encode failure: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, payload)
	pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns up to limit failures, newest first.
func (s *RedisFailureSink) List(ctx context.Context, limit int) ([]events.Failure, error) {
	if limit <= 0 || int64(limit) > s.maxLen {
		limit = int(s.maxLen)
	}
	raw, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	result := make([]events.Failure, 0, len(raw))
	for _, item := range raw {
		var failure events.Failure
		if err := json.Unmarshal([]byte(item), &failure); err != nil {
			return nil, fmt.Errorf("decode failure: %w", err)
		}
		result = append(result, failure)
	}
	return result, nil
}

// MemoryFailureSink keeps a bounded in-process list, used without Redis.
type MemoryFailureSink struct {
	mu       sync.Mutex
	maxLen   int
	failures []events.Failure
}

// NewMemoryFailureSink builds the sink.
func NewMemoryFailureSink(maxLen int) *MemoryFailureSink {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &MemoryFailureSink{maxLen: maxLen}
}

// Record stores failure, dropping the oldest entry once full.
func (s *MemoryFailureSink) Record(_ context.Context, failure events.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	if len(s.failures) > s.maxLen {
		s.failures = s.failures[len(s.failures)-s.maxLen:]
	}
	return nil
}

// List returns up to limit failures, newest first.
func (s *MemoryFailureSink) List(_ context.Context, limit int) ([]events.Failure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.failures) {
		limit = len(s.failures)
	}
	result := make([]events.Failure, 0, limit)
	for i := len(s.failures) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.failures[i])
	}
	return result, nil
}
