package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig contains the tick intervals driving the queue manager.
type WorkerConfig struct {
	DispatchInterval time.Duration
	CleanupInterval  time.Duration
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		DispatchInterval: 30 * time.Second,
		CleanupInterval:  1 * time.Hour,
	}
}

// Worker drives the queue manager with a periodic dispatch tick and a much
// slower cleanup tick. These two tickers are the only sources of
// concurrency around the manager; the manager's in-flight guard keeps an
// overrunning batch from interleaving with the next tick.
type Worker struct {
	config  WorkerConfig
	manager *Manager

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a worker over the given manager.
func NewWorker(config WorkerConfig, manager *Manager) *Worker {
	return &Worker{
		config:  config,
		manager: manager,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the dispatch and cleanup loops.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting delivery worker",
		"dispatch_interval", w.config.DispatchInterval,
		"cleanup_interval", w.config.CleanupInterval,
	)

	w.wg.Add(2)
	go w.runDispatch(ctx)
	go w.runCleanup(ctx)
}

// Stop gracefully stops both loops.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	slog.Info("delivery worker stopped")
}

func (w *Worker) runDispatch(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.manager.ProcessBatch(ctx)
			RecordQueueStats(w.manager.QueueStats())
		}
	}
}

func (w *Worker) runCleanup(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.manager.Cleanup(ctx)
		}
	}
}
