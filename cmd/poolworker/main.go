// Package main boots the pool worker daemon, wiring configuration, logger,
// Redis job source, MQTT publisher, circuit breaker, and pipeline together.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ibs-source/threadpool/golang/internal/config"
	"github.com/ibs-source/threadpool/golang/internal/logger"
	"github.com/ibs-source/threadpool/golang/internal/mqttpublish"
	"github.com/ibs-source/threadpool/golang/internal/pipeline"
	core "github.com/ibs-source/threadpool/golang/internal/ports"
	"github.com/ibs-source/threadpool/golang/internal/redisjobs"
	runtimex "github.com/ibs-source/threadpool/golang/internal/runtime"
	"github.com/ibs-source/threadpool/golang/pkg/circuitbreaker"
)

// Application wires the process's dependencies and owns their lifecycle.
type Application struct {
	config    *config.Config
	logger    core.Logger
	source    core.RedisJobSource
	publisher core.Publisher
	pipeline  *pipeline.Pipeline
	healthSrv *http.Server
	wg        sync.WaitGroup
}

func main() {
	os.Exit(run())
}

// run contains the program logic and returns an exit code.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logr, err := logger.NewLogrusLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}

	app := &Application{
		config: cfg,
		logger: logr,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		logr.Error("failed to start application", core.Field{Key: "error", Value: err})
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logr.Info("received shutdown signal", core.Field{Key: "signal", Value: sig})

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logr.Error("failed to shutdown gracefully", core.Field{Key: "error", Value: err})
		return 1
	}

	logr.Info("application shutdown complete")
	return 0
}

// Start wires Redis, MQTT, the circuit breaker, and the pipeline, then
// starts the pipeline and, if enabled, the health server.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("starting application",
		core.Field{Key: "name", Value: app.config.App.Name},
		core.Field{Key: "environment", Value: app.config.App.Environment},
	)

	app.applyCPUAffinityIfConfigured()

	source, err := redisjobs.NewClient(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create redis job source: %w", err)
	}
	app.source = source

	if err := app.waitForRedisReady(ctx); err != nil {
		return err
	}

	publisher, err := mqttpublish.NewClient(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create mqtt publisher: %w", err)
	}
	app.publisher = publisher

	breaker := app.makePublishCB()

	pl, err := pipeline.New(app.config, app.source, app.publisher, breaker, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	app.pipeline = pl

	if err := app.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	if app.config.Health.Enabled {
		app.startHealthServer()
	}

	app.logger.Info("application started successfully")
	return nil
}

// applyCPUAffinityIfConfigured passes CPUAffinity, if provided, to
// runtimex.ApplyProcessAffinity, which is a no-op in this build, so the
// process's CPU set is not changed. Logs a warning on error rather than
// failing startup.
func (app *Application) applyCPUAffinityIfConfigured() {
	if len(app.config.App.CPUAffinity) == 0 {
		return
	}
	if err := runtimex.ApplyProcessAffinity(runtimex.AffinitySpec{CPUSet: app.config.App.CPUAffinity}); err != nil {
		app.logger.Warn("failed to apply CPU affinity (best-effort)", core.Field{Key: "error", Value: err})
		return
	}
	app.logger.Info("applied CPU affinity", core.Field{Key: "cpus", Value: app.config.App.CPUAffinity})
}

// makePublishCB constructs the circuit breaker guarding the publish path.
func (app *Application) makePublishCB() core.CircuitBreaker {
	cfg := app.config.CircuitBreaker
	volumeThreshold := cfg.RequestVolumeThreshold
	if volumeThreshold > uint64(^uint(0)>>1) {
		volumeThreshold = uint64(^uint(0) >> 1)
	}
	// cfg.ErrorThreshold is a fraction in (0, 1]; the breaker takes a percentage.
	return circuitbreaker.New(
		"mqtt-publish",
		cfg.ErrorThreshold*100,
		cfg.SuccessThreshold,
		cfg.Timeout,
		cfg.MaxConcurrentCalls,
		int(volumeThreshold),
	)
}

// Shutdown stops the pipeline, the health server, and releases the wait
// group used by background goroutines.
func (app *Application) Shutdown(ctx context.Context) error {
	app.logger.Info("shutting down application")

	if app.pipeline != nil {
		if err := app.pipeline.Stop(ctx); err != nil {
			app.logger.Error("failed to stop pipeline", core.Field{Key: "error", Value: err})
		}
	}

	if app.healthSrv != nil {
		if err := app.healthSrv.Shutdown(ctx); err != nil {
			app.logger.Error("failed to shutdown health server", core.Field{Key: "error", Value: err})
		}
	}

	app.wg.Wait()

	return nil
}

func (app *Application) waitForRedisReady(ctx context.Context) error {
	for {
		redisCtx, redisCancel := context.WithTimeout(ctx, app.config.Health.RedisTimeout)
		err := app.source.Ping(redisCtx)
		redisCancel()
		if err == nil {
			return nil
		}
		app.logger.Error("failed to connect to redis, will retry", core.Field{Key: "error", Value: err})
		select {
		case <-time.After(app.config.Redis.RetryInterval):
		case <-ctx.Done():
			return fmt.Errorf("context canceled before redis became ready: %w", ctx.Err())
		}
	}
}

// startHealthServer starts the health check HTTP server.
func (app *Application) startHealthServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", app.healthHandler)
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.HandleFunc("/ready", app.readyHandler)
	mux.HandleFunc("/live", app.liveHandler)
	mux.HandleFunc("/metrics", app.metricsHandler)

	app.healthSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.Health.Port),
		Handler:      mux,
		ReadTimeout:  app.config.Health.ReadTimeout,
		WriteTimeout: app.config.Health.WriteTimeout,
	}

	app.wg.Add(1)
	go app.runHealthServer()
}

func (app *Application) runHealthServer() {
	defer app.wg.Done()
	app.logger.Info("starting health server", core.Field{Key: "port", Value: app.config.Health.Port})

	err := app.healthSrv.ListenAndServe()
	if err == nil || err == http.ErrServerClosed {
		return
	}

	app.logger.Error("health server error", core.Field{Key: "error", Value: err})
}

func (app *Application) healthHandler(w http.ResponseWriter, _ *http.Request) {
	health := app.checkHealth()

	if health.Healthy {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339)); err != nil {
			app.logger.Error("failed to write health response", core.Field{Key: "error", Value: err})
		}
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	if _, err := fmt.Fprintf(w, `{"status":"unhealthy","message":"%s","timestamp":"%s"}`,
		health.Message, time.Now().Format(time.RFC3339)); err != nil {
		app.logger.Error("failed to write health response", core.Field{Key: "error", Value: err})
	}
}

func (app *Application) readyHandler(w http.ResponseWriter, _ *http.Request) {
	if app.pipeline != nil && app.pipeline.State() == "running" {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, `{"status":"ready","timestamp":"%s"}`, time.Now().Format(time.RFC3339)); err != nil {
			app.logger.Error("failed to write ready response", core.Field{Key: "error", Value: err})
		}
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	if _, err := fmt.Fprintf(w, `{"status":"not_ready","timestamp":"%s"}`, time.Now().Format(time.RFC3339)); err != nil {
		app.logger.Error("failed to write ready response", core.Field{Key: "error", Value: err})
	}
}

func (app *Application) liveHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"status":"alive","timestamp":"%s"}`, time.Now().Format(time.RFC3339)); err != nil {
		app.logger.Error("failed to write live response", core.Field{Key: "error", Value: err})
	}
}

func (app *Application) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	snap := app.pipeline.Metrics().Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w,
		`{"jobsReceived":%d,"jobsPublished":%d,"jobsAcked":%d,"jobsDropped":%d,`+
			`"throughputRate":%f,"errorRate":%f,"avgProcessingTimeMs":%f,`+
			`"activeWorkers":%d,"queueDepth":%d}`,
		snap.JobsReceived, snap.JobsPublished, snap.JobsAcked, snap.JobsDropped,
		snap.ThroughputRate, snap.ErrorRate, snap.AvgProcessingTimeMs,
		snap.ActiveWorkers, snap.QueueDepth,
	); err != nil {
		app.logger.Error("failed to write metrics response", core.Field{Key: "error", Value: err})
	}
}

// checkHealth performs health checks on all components.
func (app *Application) checkHealth() core.HealthStatus {
	redisCtx, cancel := context.WithTimeout(context.Background(), app.config.Health.RedisTimeout)
	defer cancel()

	if err := app.source.Ping(redisCtx); err != nil {
		return core.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis health check failed: %v", err),
		}
	}

	if !app.publisher.IsConnected() {
		return core.HealthStatus{
			Healthy: false,
			Message: "mqtt client not connected",
		}
	}

	if app.pipeline.State() != "running" {
		return core.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("pipeline not running (state: %s)", app.pipeline.State()),
		}
	}

	return core.HealthStatus{
		Healthy: true,
		Message: "all components healthy",
	}
}
