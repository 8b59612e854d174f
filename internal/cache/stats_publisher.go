package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsPublisher mirrors a Cache's counters into Redis on an interval, so
// that a deployment running more than one API process can expose one
// combined hit-rate figure instead of N disjoint in-process ones. It is
// optional: nil-safety is the caller's responsibility, not this package's —
// callers that don't configure Redis simply don't construct one.
type StatsPublisher struct {
	rdb    *redis.Client
	key    string
	nodeID string
}

// NewStatsPublisher builds a publisher that writes to a Redis hash at key,
// one field per counter per nodeID; no combined field is written, so
// readers sum the per-node fields themselves.
func NewStatsPublisher(rdb *redis.Client, key, nodeID string) *StatsPublisher {
	return &StatsPublisher{rdb: rdb, key: key, nodeID: nodeID}
}

// Publish writes stats to Redis under this publisher's node field and
// returns any Redis error. Run discards that error and publishes again on
// the next tick; a failed publish never blocks cache operations themselves.
func (p *StatsPublisher) Publish(ctx context.Context, stats Stats) error {
	pipe := p.rdb.Pipeline()
	pipe.HSet(ctx, p.key, p.nodeID+":hits", strconv.FormatInt(stats.Hits, 10))
	pipe.HSet(ctx, p.key, p.nodeID+":misses", strconv.FormatInt(stats.Misses, 10))
	pipe.HSet(ctx, p.key, p.nodeID+":size", strconv.Itoa(stats.Size))
	pipe.HSet(ctx, p.key, p.nodeID+":evictions", strconv.FormatInt(stats.Evictions, 10))
	pipe.Expire(ctx, p.key, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// Run publishes stats every interval until ctx is cancelled.
func (p *StatsPublisher) Run(ctx context.Context, interval time.Duration, snapshot func() Stats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Publish(ctx, snapshot())
		}
	}
}
