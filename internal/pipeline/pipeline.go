// Package pipeline wires the bounded thread pool to a Redis Streams job
// source and an MQTT result publisher: it is the glue a production
// consumer needs around pkg/threadpool, not a reimplementation of the
// pool itself.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ibs-source/threadpool/golang/internal/config"
	"github.com/ibs-source/threadpool/golang/internal/domain"
	"github.com/ibs-source/threadpool/golang/internal/mqttpublish"
	"github.com/ibs-source/threadpool/golang/internal/ports"
	"github.com/ibs-source/threadpool/golang/pkg/threadpool"
)

// state is the pipeline's lifecycle state (no pause/resume: backpressure is
// handled by the pool's own ErrBackpressure rather than a separate paused
// state).
type state int32

const (
	stateStopped state = iota
	stateRunning
)

// Pipeline pulls jobs from a Redis consumer group, executes them on a
// bounded thread pool, and publishes results to MQTT behind a circuit
// breaker, acking each job back to Redis once publish succeeds.
type Pipeline struct {
	cfg       *config.Config
	source    ports.RedisJobSource
	publisher ports.Publisher
	breaker   ports.CircuitBreaker
	logger    ports.Logger
	metrics   *domain.Metrics

	pool *threadpool.Pool

	retryPolicy ports.RetryPolicy
	backoff     ports.BackoffStrategy

	st     atomic.Int32
	cancel context.CancelFunc
}

// New constructs a Pipeline and its backing thread pool. The pool is not
// started until Start is called.
func New(cfg *config.Config, source ports.RedisJobSource, publisher ports.Publisher, breaker ports.CircuitBreaker, logger ports.Logger) (*Pipeline, error) {
	pool, err := threadpool.NewPoolWithOptions(cfg.Pool.MaxThreads, cfg.Pool.MaxPending, threadpool.Options{
		Keepalive: cfg.Pool.Keepalive,
	})
	if err != nil {
		return nil, fmt.Errorf("create thread pool: %w", err)
	}

	retryPolicy := ports.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialBackoff,
		MaxInterval:     cfg.Retry.MaxBackoff,
		Multiplier:      cfg.Retry.Multiplier,
	}

	return &Pipeline{
		cfg:         cfg,
		source:      source,
		publisher:   publisher,
		breaker:     breaker,
		logger:      logger.WithFields(ports.Field{Key: "component", Value: "pipeline"}),
		metrics:     domain.NewMetrics(),
		pool:        pool,
		retryPolicy: retryPolicy,
		backoff:     newExponentialBackoff(retryPolicy),
	}, nil
}

// SetWorkers resizes the backing thread pool, delegating directly to the
// pool's own dynamic resize.
func (p *Pipeline) SetWorkers(n int) {
	p.pool.SetMaxThreads(n)
}

// Backlog reports the number of jobs the pool is currently holding, queued
// or in flight.
func (p *Pipeline) Backlog() int {
	return p.pool.Backload()
}

// Metrics returns the pipeline's metrics, readable concurrently from the
// health/metrics HTTP handlers.
func (p *Pipeline) Metrics() *domain.Metrics {
	return p.metrics
}

// State returns "running" or "stopped".
func (p *Pipeline) State() string {
	if state(p.st.Load()) == stateRunning {
		return "running"
	}
	return "stopped"
}

// Start connects the publisher, ensures the consumer group exists, and
// launches the consume and claim loops. It returns once both are running;
// the loops themselves run until ctx is canceled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.st.CompareAndSwap(int32(stateStopped), int32(stateRunning)) {
		return fmt.Errorf("pipeline already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	if err := p.publisher.Connect(runCtx); err != nil {
		p.st.Store(int32(stateStopped))
		return fmt.Errorf("connect publisher: %w", err)
	}

	if err := p.source.CreateConsumerGroup(runCtx, p.cfg.Redis.Stream, p.cfg.Redis.ConsumerGroup, "0"); err != nil {
		p.st.Store(int32(stateStopped))
		return fmt.Errorf("create consumer group: %w", err)
	}

	if err := p.publisher.Subscribe(runCtx, p.cfg.MQTT.AckTopic, p.cfg.MQTT.QoS, p.handleAck); err != nil {
		p.logger.Warn("ack subscription failed, downstream negative acks will not be logged", ports.Field{Key: "error", Value: err})
	}

	go p.consumeLoop(runCtx)
	go p.claimLoop(runCtx)

	p.logger.Info("pipeline started",
		ports.Field{Key: "stream", Value: p.cfg.Redis.Stream},
		ports.Field{Key: "group", Value: p.cfg.Redis.ConsumerGroup},
	)
	return nil
}

// Stop cancels the running loops, drains the thread pool's in-flight and
// queued jobs (bounded by cfg.App.ShutdownTimeout), and disconnects the
// publisher and job source.
func (p *Pipeline) Stop(ctx context.Context) error {
	if !p.st.CompareAndSwap(int32(stateRunning), int32(stateStopped)) {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}

	drained := make(chan error, 1)
	go func() { drained <- p.pool.Destroy(true) }()

	select {
	case err := <-drained:
		if err != nil {
			p.logger.Warn("thread pool drain returned an error", ports.Field{Key: "error", Value: err})
		}
	case <-time.After(p.cfg.App.ShutdownTimeout):
		p.logger.Warn("thread pool drain timed out, results for in-flight jobs may be lost")
	}

	p.publisher.Disconnect(p.cfg.App.ShutdownTimeout)
	if err := p.source.Close(); err != nil {
		return fmt.Errorf("close job source: %w", err)
	}
	return nil
}

// consumeLoop reads batches of new jobs and submits each to the thread
// pool. Backpressure (ErrBackpressure) is handled by backing off rather
// than dropping the job: submit keeps retrying until the pool accepts it,
// and if ctx is canceled first the job stays unacked in Redis for
// claimLoop to reclaim.
func (p *Pipeline) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobs, err := p.source.ReadJobs(ctx, p.cfg.Redis.ConsumerGroup, p.source.GetConsumerName(), p.cfg.Redis.Stream, p.cfg.Redis.BatchSize, p.cfg.Redis.BlockTime)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.metrics.RedisErrors.Add(1)
			p.logger.Error("read jobs failed", ports.Field{Key: "error", Value: err})
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.Redis.RetryInterval):
			}
			continue
		}

		for _, job := range jobs {
			p.metrics.JobsReceived.Add(1)
			p.submit(ctx, job)
		}
	}
}

// submit hands job to the thread pool, retrying the ErrBackpressure case
// with a short backoff rather than dropping the job on the floor.
func (p *Pipeline) submit(ctx context.Context, job *domain.Job) {
	for {
		err := p.pool.Submit(func(arg any) { p.runJob(ctx, arg.(*domain.Job)) }, job)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		p.metrics.BackpressureDropped.Add(1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// runJob executes on a pool worker goroutine: publish the job's payload,
// guarded by the circuit breaker, and ack it in Redis on success. A failed
// publish is handled by handleFailure, which either schedules a retry or
// routes the job to the dead-letter stream.
func (p *Pipeline) runJob(ctx context.Context, job *domain.Job) {
	start := time.Now()
	p.metrics.ActiveWorkers.Add(1)
	defer p.metrics.ActiveWorkers.Add(-1)

	err := p.breaker.Execute(func() error {
		return p.publisher.Publish(ctx, p.cfg.MQTT.PublishTopic, p.cfg.MQTT.QoS, false, job.Payload)
	})

	p.metrics.ProcessingTimeNs.Add(uint64(time.Since(start).Nanoseconds()))

	if err != nil {
		p.metrics.MQTTErrors.Add(1)
		p.handleFailure(ctx, job, err)
		return
	}

	p.metrics.JobsPublished.Add(1)
	p.ackAndRelease(ctx, job)
}

// ackAndRelease acks job's Redis entry and, on success, returns it to
// domain.JobPool: this is the only point on the success path where a job's
// lifetime ends.
func (p *Pipeline) ackAndRelease(ctx context.Context, job *domain.Job) {
	if ackErr := p.source.Ack(ctx, job.Stream, p.cfg.Redis.ConsumerGroup, job.ID); ackErr != nil {
		p.metrics.RedisErrors.Add(1)
		p.logger.Error("ack failed", ports.Field{Key: "jobID", Value: job.ID}, ports.Field{Key: "error", Value: ackErr})
		return
	}
	p.metrics.JobsAcked.Add(1)
	domain.PutJob(job)
}

// handleFailure decides, based on job.Attempts against retryPolicy.MaxAttempts,
// whether to ack and reschedule job for another attempt or route it to the
// dead-letter stream. Either way the original Redis entry is acked here: this
// pipeline, not claimLoop's idle reclaim, now owns the job's fate.
func (p *Pipeline) handleFailure(ctx context.Context, job *domain.Job, pubErr error) {
	job.Attempts++

	p.logger.Error("publish failed",
		ports.Field{Key: "jobID", Value: job.ID},
		ports.Field{Key: "attempts", Value: job.Attempts},
		ports.Field{Key: "error", Value: pubErr},
	)

	if int(job.Attempts) <= p.retryPolicy.MaxAttempts {
		p.retryJob(ctx, job)
		return
	}

	p.deadLetterJob(ctx, job, pubErr)
}

// retryJob acks the original entry, taking ownership of job away from Redis
// pending-entry tracking, then reschedules it after an exponential backoff.
func (p *Pipeline) retryJob(ctx context.Context, job *domain.Job) {
	p.metrics.JobsRetried.Add(1)

	if ackErr := p.source.Ack(ctx, job.Stream, p.cfg.Redis.ConsumerGroup, job.ID); ackErr != nil {
		p.metrics.RedisErrors.Add(1)
		p.logger.Error("ack before retry failed", ports.Field{Key: "jobID", Value: job.ID}, ports.Field{Key: "error", Value: ackErr})
	}

	backoff := p.backoff.NextInterval(int(job.Attempts))
	p.logger.Warn("retrying job",
		ports.Field{Key: "jobID", Value: job.ID},
		ports.Field{Key: "attempts", Value: job.Attempts},
		ports.Field{Key: "backoff", Value: backoff},
	)
	go p.retryJobAfter(ctx, backoff, job)
}

// retryJobAfter waits backoff, then resubmits job to the pool; it is always
// run in its own goroutine so a retrying job never occupies a pool worker
// while it waits.
func (p *Pipeline) retryJobAfter(ctx context.Context, backoff time.Duration, job *domain.Job) {
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}
	p.submit(ctx, job)
}

// deadLetterJob routes job to the configured dead-letter stream once it has
// exhausted retryPolicy.MaxAttempts, then acks the original entry and
// releases job back to domain.JobPool.
func (p *Pipeline) deadLetterJob(ctx context.Context, job *domain.Job, cause error) {
	p.metrics.JobsDeadLettered.Add(1)
	p.logger.Error("max attempts exhausted, dead-lettering job",
		ports.Field{Key: "jobID", Value: job.ID},
		ports.Field{Key: "attempts", Value: job.Attempts},
	)

	if dlErr := p.source.DeadLetter(ctx, p.cfg.Redis.DeadLetterStream, job, cause.Error()); dlErr != nil {
		p.metrics.RedisErrors.Add(1)
		p.logger.Error("dead-letter publish failed", ports.Field{Key: "jobID", Value: job.ID}, ports.Field{Key: "error", Value: dlErr})
	}

	if ackErr := p.source.Ack(ctx, job.Stream, p.cfg.Redis.ConsumerGroup, job.ID); ackErr != nil {
		p.metrics.RedisErrors.Add(1)
		p.logger.Error("ack after dead-letter failed", ports.Field{Key: "jobID", Value: job.ID}, ports.Field{Key: "error", Value: ackErr})
		return
	}
	domain.PutJob(job)
}

// claimLoop periodically reclaims entries left pending by crashed
// consumers, resubmitting them the same way consumeLoop does.
func (p *Pipeline) claimLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Redis.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs, err := p.source.ClaimPending(ctx, p.cfg.Redis.Stream, p.cfg.Redis.ConsumerGroup, p.source.GetConsumerName(), p.cfg.Redis.ClaimMinIdleTime, p.cfg.Redis.ClaimBatchSize)
			if err != nil {
				p.metrics.RedisErrors.Add(1)
				p.logger.Error("claim pending failed", ports.Field{Key: "error", Value: err})
				continue
			}
			for _, job := range jobs {
				job.Attempts++
				p.submit(ctx, job)
			}
		}
	}
}

// handleAck lets a downstream consumer explicitly negative-ack a job by
// publishing {"id": "...", "ack": false} on the ack topic. A negative ack
// is only logged: the job's Redis entry was already acked when its publish
// succeeded, so neither the pipeline nor claimLoop retries it.
func (p *Pipeline) handleAck(_ string, payload []byte) {
	ack, err := mqttpublish.ParseAck(payload)
	if err != nil {
		p.logger.Warn("malformed ack payload", ports.Field{Key: "error", Value: err})
		return
	}
	if !ack.Ack {
		p.logger.Warn("downstream reported negative ack", ports.Field{Key: "jobID", Value: ack.ID})
	}
}
