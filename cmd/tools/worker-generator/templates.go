// cmd/tools/worker-generator/templates.go
package main

var templates = map[string]string{
	"models.go":       modelsTemplate,
	"config.go":       configTemplate,
	"handler.go":      handlerTemplate,
	"handler_test.go": testTemplate,
	"README.md":       readmeTemplate,
}

const modelsTemplate = `// internal/workers/{{ .Dir }}/models.go
package {{ .PackageName }}

type Input struct {
{{- range .Input }}
	{{ .Name }} {{ .Type }} {{ .JSONTag }}{{ if .Comment }} // {{ .Comment }}{{ end }}
{{- end }}
}

type Output struct {
{{- range .Output }}
	{{ .Name }} {{ .Type }} {{ .JSONTag }}{{ if .Comment }} // {{ .Comment }}{{ end }}
{{- end }}
}
`

const configTemplate = `// internal/workers/{{ .Dir }}/config.go
package {{ .PackageName }}

import (
	"time"

	"{{ .Module }}/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wc config.WorkerConfig) *Config {
	cfg := &Config{Timeout: config.GetDuration(wc.Timeout)}
	if cfg.Timeout <= 0 {
		cfg.Timeout = {{ .Timeout }}
	}
	return cfg
}
`

const handlerTemplate = `// internal/workers/{{ .Dir }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"{{ .Module }}/internal/common/camunda"
	commonerrors "{{ .Module }}/internal/common/errors"
	"{{ .Module }}/internal/common/logger"
	"{{ .Module }}/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "{{ .TaskType }}"
)

var (
{{- range .Sentinels }}
	{{ .Name }} = errors.New("{{ .Code }}")
{{- end }}
)

type Handler struct {
	config *Config
	logger logger.Logger
	errors *commonerrors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		logger: scoped,
		errors: commonerrors.NewErrorHandler(scoped),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, start, commonerrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(camunda.JobContext(client), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(client, job, start, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, "", time.Since(start).Seconds())
}

// TODO: implement {{ .Name }}.
func (h *Handler) execute(_ context.Context, _ *Input) (*Output, error) {
	return &Output{}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(camunda.JobContext(client)); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, start time.Time, err error) {
	stdErr := h.errors.HandleJobError(camunda.JobContext(client), client, job, err)
	metrics.ObserveJob(TaskType, string(stdErr.Code), time.Since(start).Seconds())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
`

const testTemplate = `// internal/workers/{{ .Dir }}/handler_test.go
package {{ .PackageName }}

import (
	"testing"
	"time"

	"{{ .Module }}/internal/common/camunda/camundatest"
	"{{ .Module }}/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{Timeout: {{ .Timeout }}}
}

func TestHandler_Handle(t *testing.T) {
	tests := []struct {
		name          string
		variables     string
		wantCompleted bool
	}{
		{name: "empty input", variables: "{}", wantCompleted: true},
		{name: "unparseable input", variables: "{not json", wantCompleted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), logger.NewTestLogger(t))
			client := camundatest.NewJobClient()

			h.Handle(client, camundatest.NewJob(1, TaskType, tt.variables))

			if tt.wantCompleted {
				require.Len(t, client.Completed(), 1)
				return
			}
			assert.Empty(t, client.Completed())
			require.Len(t, client.Thrown(), 1)
			assert.Equal(t, "INVALID_INPUT", client.Thrown()[0].ErrorCode)
		})
	}
}
`

const readmeTemplate = `# {{ .Name }}

{{ .Description }}

- Task type: ` + "`{{ .TaskType }}`" + `
- Default timeout: {{ .Timeout }}
- Retries: {{ .Retries }}
{{- if .Sentinels }}

## Error codes
{{ range .Sentinels }}
- ` + "`{{ .Code }}`" + `
{{- end }}
{{- end }}

## Registering

Add the handler to ` + "`registerWorkers`" + ` in cmd/worker-manager/workers.go and a
` + "`workers.{{ .TaskType }}`" + ` entry to configs/config.yaml.
`
