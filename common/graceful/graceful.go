package graceful

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Laisky/zap"

	"github.com/ierezell/ml-infra/common/logger"
)

// Shutdown bookkeeping: in-flight HTTP requests plus background tasks
// (loopback generation, purge sweeps) that must finish before exit.

var (
	inFlightRequests int64
	draining         atomic.Bool

	wg sync.WaitGroup
)

// BeginRequest increments the in-flight request counter and returns a function
// to decrement it. Use with `defer` at the top of request handlers/middlewares.
func BeginRequest() func() {
	atomic.AddInt64(&inFlightRequests, 1)
	return func() {
		atomic.AddInt64(&inFlightRequests, -1)
	}
}

// InFlight returns the number of requests currently tracked.
func InFlight() int64 {
	return atomic.LoadInt64(&inFlightRequests)
}

// GoCritical runs fn in a tracked goroutine that Drain waits for.
func GoCritical(ctx context.Context, name string, fn func(context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()
		logger.Logger.Debug("critical task start", zap.String("name", name))
		fn(ctx)
		logger.Logger.Debug("critical task done", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	}()
}

// Drain blocks until tracked tasks finish and in-flight requests reach zero, or ctx is done.
func Drain(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	tasksDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(tasksDone)
	}()

	tasksFinished := false
	for {
		if tasksFinished && InFlight() == 0 {
			logger.Logger.Info("graceful drain complete")
			return nil
		}

		select {
		case <-ctx.Done():
			logger.Logger.Error("graceful drain timeout",
				zap.Bool("tasks_finished", tasksFinished),
				zap.Int64("in_flight_requests", InFlight()))
			return ctx.Err()
		case <-tasksDone:
			tasksFinished = true
			tasksDone = nil
		case <-ticker.C:
			logger.Logger.Debug("draining...", zap.Int64("in_flight_requests", InFlight()))
		}
	}
}

// SetDraining flips the draining flag to true.
func SetDraining() { draining.Store(true) }

// IsDraining returns whether the server is currently draining.
func IsDraining() bool { return draining.Load() }
