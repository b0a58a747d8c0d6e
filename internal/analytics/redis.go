// Package analytics keeps hourly run outcome counters per app in Redis.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/metrics"
)

// Outcomes are the outcomes reported by Counts.
var Outcomes = []string{
	metrics.OutcomeSuccess,
	metrics.OutcomeFailed,
	metrics.OutcomeInvalidArgs,
	metrics.OutcomeCircuitOpen,
	metrics.OutcomeRecordError,
}

const keyPrefix = "difycron"

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
	logger    *zap.Logger
}

// NewRedisSink returns a sink whose counters expire after retention.
func NewRedisSink(client *redis.Client, retention time.Duration, logger *zap.Logger) *RedisSink {
	return &RedisSink{client: client, retention: retention, logger: logger.Named("analytics")}
}

// Record increments the counter for appID and outcome in the hour of at.
// Errors are logged and dropped so a Redis outage never fails a run.
func (s *RedisSink) Record(ctx context.Context, appID, outcome string, at time.Time) {
	if err := s.Increment(ctx, appID, outcome, at); err != nil {
		s.logger.Warn("failed to record outcome",
			zap.String("app_id", appID),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}

// Increment is Record with the error returned.
func (s *RedisSink) Increment(ctx context.Context, appID, outcome string, at time.Time) error {
	key := buildKey(appID, outcome, at)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	if s.retention > 0 {
		pipe.Expire(ctx, key, s.retention)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

// Counts returns the counters of appID for the hour containing at.
// Outcomes without a counter are reported as zero.
func (s *RedisSink) Counts(ctx context.Context, appID string, at time.Time) (map[string]int64, error) {
	keys := make([]string, len(Outcomes))
	for i, outcome := range Outcomes {
		keys[i] = buildKey(appID, outcome, at)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	counts := make(map[string]int64, len(Outcomes))
	for i, outcome := range Outcomes {
		counts[outcome] = 0
		str, ok := values[i].(string)
		if !ok {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(str, &n); err != nil {
			return nil, fmt.Errorf("parse counter %s: %w", keys[i], err)
		}
		counts[outcome] = n
	}
	return counts, nil
}

// Ping checks Redis connectivity.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func buildKey(appID, outcome string, t time.Time) string {
	return fmt.Sprintf("%s:app:%s:%s:%s", keyPrefix, appID, outcome, hourBucket(t))
}

func hourBucket(t time.Time) string {
	return t.UTC().Format("2006010215")
}
