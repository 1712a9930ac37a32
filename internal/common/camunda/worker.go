// internal/common/camunda/worker.go
package camunda

import (
	"sync"

	"investlink-workers/internal/common/config"
	"investlink-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobWorkerOpener is the part of zbc.Client needed to open job workers.
type JobWorkerOpener interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

var _ JobWorkerOpener = zbc.Client(nil)

// Workers owns the job workers opened by the process.
type Workers struct {
	opener JobWorkerOpener
	name   string
	logger logger.Logger

	mu      sync.Mutex
	running map[string]worker.JobWorker
}

func NewWorkers(opener JobWorkerOpener, name string, log logger.Logger) *Workers {
	return &Workers{
		opener:  opener,
		name:    name,
		logger:  log,
		running: make(map[string]worker.JobWorker),
	}
}

// Start opens a worker for taskType unless the config disables it. It
// reports whether a worker was opened.
func (w *Workers) Start(taskType string, cfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !cfg.Enabled {
		w.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.running[taskType]; exists {
		w.logger.Warn("worker already running", map[string]interface{}{"taskType": taskType})
		return false
	}

	jobWorker := w.opener.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		Name(w.name).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(config.GetDuration(cfg.Timeout)).
		Open()

	w.running[taskType] = jobWorker
	w.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": cfg.MaxJobsActive,
		"timeout":       cfg.Timeout,
	})
	return true
}

// Running lists the task types with an open worker.
func (w *Workers) Running() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.running))
	for taskType := range w.running {
		out = append(out, taskType)
	}
	return out
}

// StopAll closes every worker and waits for in-flight jobs to finish.
func (w *Workers) StopAll() {
	w.mu.Lock()
	running := w.running
	w.running = make(map[string]worker.JobWorker)
	w.mu.Unlock()

	for taskType, jobWorker := range running {
		jobWorker.Close()
		jobWorker.AwaitClose()
		w.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
}
