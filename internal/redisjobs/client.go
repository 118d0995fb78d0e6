// Package redisjobs implements ports.RedisJobSource on top of go-redis v9
// Streams: consumer-group reads, acking, and idle-entry reclaiming.
package redisjobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ibs-source/threadpool/golang/internal/config"
	"github.com/ibs-source/threadpool/golang/internal/domain"
	"github.com/ibs-source/threadpool/golang/internal/ports"
	"github.com/ibs-source/threadpool/golang/pkg/jsonx"
	goredis "github.com/redis/go-redis/v9"
)

// client implements ports.RedisJobSource using go-redis v9.
type client struct {
	rdb          goredis.UniversalClient
	cfg          *config.RedisConfig
	logger       ports.Logger
	consumerName string
}

// NewClient builds a ports.RedisJobSource backed by the addresses, auth, and
// pool settings in cfg.Redis.
func NewClient(cfg *config.Config, logger ports.Logger) (ports.RedisJobSource, error) {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        cfg.Redis.Addresses,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.ConnectTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		MasterName:   cfg.Redis.MasterName,
	})

	return &client{
		rdb:          rdb,
		cfg:          &cfg.Redis,
		logger:       logger.WithFields(ports.Field{Key: "component", Value: "redisjobs"}),
		consumerName: fmt.Sprintf("poolworker-%s", uuid.New().String()),
	}, nil
}

// CreateConsumerGroup creates the consumer group (and stream, if missing).
// BUSYGROUP is treated as already-created, matching XGROUP CREATE semantics.
func (c *client) CreateConsumerGroup(ctx context.Context, stream, group, startID string) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		err := c.rdb.XGroupCreateMkStream(ctx, stream, group, startID).Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return err
		}
		return nil
	})
}

// ReadJobs issues XREADGROUP for new entries ("id > last-delivered"),
// recreating the consumer group transparently if Redis reports NOGROUP
// (e.g. after a restart that dropped it).
func (c *client) ReadJobs(ctx context.Context, group, consumer, stream string, count int64, block time.Duration) ([]*domain.Job, error) {
	var jobs []*domain.Job

	err := c.withRetry(ctx, func(ctx context.Context) error {
		streams, err := c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    count,
			Block:    block,
			NoAck:    false,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				jobs = []*domain.Job{}
				return nil
			}
			if strings.Contains(err.Error(), "NOGROUP") {
				if cgErr := c.rdb.XGroupCreateMkStream(ctx, stream, group, "0-0").Err(); cgErr != nil && !strings.Contains(cgErr.Error(), "BUSYGROUP") {
					return cgErr
				}
				jobs = []*domain.Job{}
				return nil
			}
			return err
		}
		jobs = convertXStreams(streams)
		return nil
	})

	return jobs, err
}

// Ack acknowledges ids in stream/group. NOGROUP is treated as already
// cleaned up rather than an error, since a missing group means nothing is
// left to ack.
func (c *client) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.withRetry(ctx, func(ctx context.Context) error {
		err := c.rdb.XAck(ctx, stream, group, ids...).Err()
		if err != nil && strings.Contains(err.Error(), "NOGROUP") {
			return nil
		}
		return err
	})
}

// ClaimPending reclaims entries idle for at least minIdleTime from other
// consumers in the group, handing them to consumer.
func (c *client) ClaimPending(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, count int64) ([]*domain.Job, error) {
	var jobs []*domain.Job

	err := c.withRetry(ctx, func(ctx context.Context) error {
		pending, err := c.rdb.XPendingExt(ctx, &goredis.XPendingExtArgs{
			Stream: stream,
			Group:  group,
			Idle:   minIdleTime,
			Start:  "-",
			End:    "+",
			Count:  count,
		}).Result()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = p.ID
		}

		xmsgs, err := c.rdb.XClaim(ctx, &goredis.XClaimArgs{
			Stream:   stream,
			Group:    group,
			Consumer: consumer,
			MinIdle:  minIdleTime,
			Messages: ids,
		}).Result()
		if err != nil {
			return err
		}

		jobs = convertXStreams([]goredis.XStream{{Stream: stream, Messages: xmsgs}})
		return nil
	})

	return jobs, err
}

// GetPending lists pending entries without claiming them.
func (c *client) GetPending(ctx context.Context, stream, group string, start, end string, count int64) ([]ports.PendingJob, error) {
	var pendingJobs []ports.PendingJob

	err := c.withRetry(ctx, func(ctx context.Context) error {
		pending, err := c.rdb.XPendingExt(ctx, &goredis.XPendingExtArgs{
			Stream: stream,
			Group:  group,
			Start:  start,
			End:    end,
			Count:  count,
		}).Result()
		if err != nil {
			return err
		}

		pendingJobs = make([]ports.PendingJob, len(pending))
		for i, p := range pending {
			pendingJobs[i] = ports.PendingJob{
				ID:         p.ID,
				Consumer:   p.Consumer,
				Idle:       p.Idle,
				RetryCount: p.RetryCount,
			}
		}
		return nil
	})

	return pendingJobs, err
}

// GetConsumerName returns this client's unique consumer-group identity.
func (c *client) GetConsumerName() string {
	return c.consumerName
}

// DeadLetter publishes job to stream as a dead-letter entry, carrying the
// reason it exhausted its delivery attempts. The caller is responsible for
// acking job out of its original consumer group once this returns.
func (c *client) DeadLetter(ctx context.Context, stream string, job *domain.Job, reason string) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		return c.rdb.XAdd(ctx, &goredis.XAddArgs{
			Stream: stream,
			Values: map[string]any{
				"original_id":      job.ID,
				"original_stream":  job.Stream,
				"payload":          job.Payload,
				"attempts":         job.Attempts,
				"reason":           reason,
				"dead_lettered_at": time.Now().Format(time.RFC3339),
			},
		}).Err()
	})
}

// Ping verifies connectivity, used by the health handler and the startup
// wait for Redis.
func (c *client) Ping(ctx context.Context) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		return c.rdb.Ping(ctx).Err()
	})
}

// Close releases the underlying connection pool.
func (c *client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// convertXStreams turns go-redis stream entries into domain.Jobs, preferring
// a zero-copy pass-through when the "payload" field already looks like JSON.
// Jobs are drawn from domain.JobPool; the pipeline returns them once a job
// reaches a terminal outcome (acked or dead-lettered).
func convertXStreams(streams []goredis.XStream) []*domain.Job {
	now := time.Now()
	jobs := make([]*domain.Job, 0, 128)

	for _, stream := range streams {
		for _, xmsg := range stream.Messages {
			job := domain.GetJob()
			job.ID = xmsg.ID
			job.Stream = stream.Stream
			job.Timestamp = now
			job.Payload = buildPayload(xmsg.Values)
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func buildPayload(values map[string]any) []byte {
	if raw, ok := values["payload"]; ok {
		switch v := raw.(type) {
		case []byte:
			if jsonx.IsLikelyJSONBytes(v) {
				return v
			}
			b, _ := jsonx.Marshal(string(v))
			return b
		case string:
			if jsonx.IsLikelyJSONString(v) {
				return []byte(v)
			}
			b, _ := jsonx.Marshal(v)
			return b
		default:
			b, _ := jsonx.Marshal(v)
			return b
		}
	}
	b, err := jsonx.Marshal(values)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// withRetry retries fn on transient Redis errors, backing off by
// cfg.RetryInterval, at most cfg.MaxRetries times and never past ctx's
// cancellation. redis.Nil is always
// treated as "no data", never an error worth retrying.
func (c *client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var attempt int
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if !isTransientRedisError(err) || attempt >= c.cfg.MaxRetries {
			return err
		}
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryInterval):
		}
	}
}

func isTransientRedisError(err error) bool {
	if err == nil {
		return false
	}
	es := err.Error()
	return strings.Contains(es, "LOADING") ||
		strings.Contains(es, "connect: connection refused") ||
		strings.Contains(es, "i/o timeout") ||
		strings.Contains(es, "EOF") ||
		strings.Contains(es, "read: connection reset")
}
