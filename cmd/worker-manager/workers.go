// cmd/worker-manager/workers.go
package main

import (
	"sort"

	"investlink-workers/internal/common/camunda"
	"investlink-workers/internal/common/config"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/observability"
	"investlink-workers/pkg/registry"

	gsm "investlink-workers/internal/workers/matching/get-smart-match"
	np "investlink-workers/internal/workers/matching/normalize-profiles"
	ram "investlink-workers/internal/workers/matching/record-ai-match"
	rsm "investlink-workers/internal/workers/matching/rank-startup-matches"
	smn "investlink-workers/internal/workers/matching/send-match-notification"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

func registerWorkers(workers *camunda.Workers, cfg *config.Config, deps *dependencies, obs *observability.Observability, log logger.Logger) {
	start := func(taskType string, handler worker.JobHandler) {
		workers.Start(taskType, config.GetWorkerConfig(cfg, taskType), obs.Instrument(taskType, handler))
	}

	if config.IsWorkerEnabled(cfg, np.TaskType) {
		handler := np.NewHandler(np.LoadConfig(config.GetWorkerConfig(cfg, np.TaskType)), log)
		start(np.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, gsm.TaskType) {
		handler := gsm.NewHandler(
			gsm.LoadConfig(config.GetWorkerConfig(cfg, gsm.TaskType)),
			deps.matcher, deps.profiles, log,
		)
		start(gsm.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, rsm.TaskType) {
		handler := rsm.NewHandler(
			rsm.LoadConfig(config.GetWorkerConfig(cfg, rsm.TaskType), cfg.Database.Elasticsearch),
			deps.ranker, deps.elasticsearch, deps.profiles, log,
		)
		start(rsm.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, ram.TaskType) {
		handler := ram.NewHandler(ram.LoadConfig(config.GetWorkerConfig(cfg, ram.TaskType)), deps.postgres.DB, log)
		start(ram.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, smn.TaskType) {
		var handler *smn.Handler
		smnConfig := smn.LoadConfig(config.GetWorkerConfig(cfg, smn.TaskType), cfg.Notifications)
		if deps.aws != nil {
			handler = smn.NewHandler(smnConfig, deps.aws.SES, deps.aws.SNS, deps.profiles, log)
		} else {
			handler = smn.NewHandler(smnConfig, nil, nil, deps.profiles, log)
		}
		start(smn.TaskType, handler.Handle)
	}
}

// unregisteredTaskTypes returns running task types the activity registry does not describe.
func unregisteredTaskTypes(reg *registry.ActivityRegistry, running []string) []string {
	var missing []string
	for _, taskType := range running {
		if _, ok := reg.Find(taskType); !ok {
			missing = append(missing, taskType)
		}
	}
	sort.Strings(missing)
	return missing
}

func checkRegistry(path string, running []string, log logger.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry unavailable", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}
	if err := reg.Validate(); err != nil {
		log.Warn("activity registry is invalid", map[string]interface{}{"path": path, "error": err.Error()})
	}
	if missing := unregisteredTaskTypes(reg, running); len(missing) > 0 {
		log.Warn("workers missing from activity registry", map[string]interface{}{"taskTypes": missing})
	}
}
