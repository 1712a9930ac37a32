package camunda

import (
	"context"
	stderrors "errors"
	"sort"
	"testing"
	"time"

	"investlink-workers/internal/common/config"
	"investlink-workers/internal/common/errors"
	"investlink-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Client retry and error mapping
// ==========================

func newRetryClient(t *testing.T, maxRetries int) *Client {
	return &Client{
		config: &ClientConfig{
			ConnectionTimeout: time.Second,
			RetryConfig:       &RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		},
		logger: logger.NewTestLogger(t),
	}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	client := newRetryClient(t, 3)

	attempts := 0
	err := client.ExecuteWithRetry(context.Background(), "topology", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return stderrors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	client := newRetryClient(t, 2)

	attempts := 0
	err := client.ExecuteWithRetry(context.Background(), "topology", func(context.Context) error {
		attempts++
		return stderrors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeExternalService, stdErr.Code)
	assert.Contains(t, stdErr.Details, "after 3 attempts")
}

func TestExecuteWithRetry_PermanentErrorNotRetried(t *testing.T) {
	client := newRetryClient(t, 5)

	attempts := 0
	err := client.ExecuteWithRetry(context.Background(), "deploy", func(context.Context) error {
		attempts++
		return stderrors.New("permission denied")
	})

	assert.Equal(t, 1, attempts)
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeAuthentication, stdErr.Code)
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	client := newRetryClient(t, 5)
	client.config.RetryConfig.BaseDelay = time.Hour
	client.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.ExecuteWithRetry(ctx, "topology", func(context.Context) error {
		return stderrors.New("unavailable")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		code errors.ErrorCode
	}{
		{"context deadline exceeded", errors.ErrCodeTimeout},
		{"process not found", errors.ErrCodeResourceNotFound},
		{"resource already exists", errors.ErrCodeBusinessRule},
		{"unauthorized", errors.ErrCodeAuthentication},
		{"connection reset by peer", errors.ErrCodeExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			var stdErr *errors.StandardError
			require.ErrorAs(t, mapZeebeError(stderrors.New(tt.msg), "op", 0), &stdErr)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.Equal(t, 1500*time.Millisecond, cfg.ConnectionTimeout)
	assert.True(t, cfg.UsePlaintextConnection)
}

// ==========================
// Workers
// ==========================

type fakeJobWorker struct {
	worker.JobWorker
	closed bool
}

func (f *fakeJobWorker) Close()      { f.closed = true }
func (f *fakeJobWorker) AwaitClose() {}

type fakeBuilder struct {
	worker.JobWorkerBuilderStep1
	worker.JobWorkerBuilderStep2
	worker.JobWorkerBuilderStep3

	opener *fakeOpener
	spec   openedWorker
}

type openedWorker struct {
	jobType       string
	name          string
	maxJobsActive int
	timeout       time.Duration
	handler       worker.JobHandler
	jobWorker     *fakeJobWorker
}

func (b *fakeBuilder) JobType(jobType string) worker.JobWorkerBuilderStep2 {
	b.spec.jobType = jobType
	return b
}

func (b *fakeBuilder) Handler(handler worker.JobHandler) worker.JobWorkerBuilderStep3 {
	b.spec.handler = handler
	return b
}

func (b *fakeBuilder) Name(name string) worker.JobWorkerBuilderStep3 {
	b.spec.name = name
	return b
}

func (b *fakeBuilder) MaxJobsActive(n int) worker.JobWorkerBuilderStep3 {
	b.spec.maxJobsActive = n
	return b
}

func (b *fakeBuilder) Timeout(d time.Duration) worker.JobWorkerBuilderStep3 {
	b.spec.timeout = d
	return b
}

func (b *fakeBuilder) Open() worker.JobWorker {
	b.spec.jobWorker = &fakeJobWorker{}
	b.opener.opened = append(b.opener.opened, b.spec)
	return b.spec.jobWorker
}

type fakeOpener struct {
	opened []openedWorker
}

func (o *fakeOpener) NewJobWorker() worker.JobWorkerBuilderStep1 {
	return &fakeBuilder{opener: o}
}

func TestWorkers_StartAndStop(t *testing.T) {
	opener := &fakeOpener{}
	workers := NewWorkers(opener, "investlink-workers", logger.NewTestLogger(t))

	handled := false
	handler := func(worker.JobClient, entities.Job) { handled = true }

	assert.True(t, workers.Start("get-smart-match", config.WorkerConfig{Enabled: true, MaxJobsActive: 5, Timeout: 30000}, handler))
	assert.False(t, workers.Start("record-ai-match", config.WorkerConfig{Enabled: false}, handler))
	assert.False(t, workers.Start("get-smart-match", config.WorkerConfig{Enabled: true}, handler))

	require.Len(t, opener.opened, 1)
	opened := opener.opened[0]
	assert.Equal(t, "get-smart-match", opened.jobType)
	assert.Equal(t, "investlink-workers", opened.name)
	assert.Equal(t, 5, opened.maxJobsActive)
	assert.Equal(t, 30*time.Second, opened.timeout)

	opened.handler(nil, entities.Job{})
	assert.True(t, handled)

	running := workers.Running()
	sort.Strings(running)
	assert.Equal(t, []string{"get-smart-match"}, running)

	workers.StopAll()
	assert.True(t, opened.jobWorker.closed)
	assert.Empty(t, workers.Running())
}

// ==========================
// Job context
// ==========================

type ctxKey struct{}

type carryingClient struct {
	worker.JobClient
	ctx context.Context
}

func (c carryingClient) JobContext() context.Context { return c.ctx }

func TestJobContext(t *testing.T) {
	carried := context.WithValue(context.Background(), ctxKey{}, "job-7")

	assert.Equal(t, "job-7", JobContext(carryingClient{ctx: carried}).Value(ctxKey{}))
	assert.Equal(t, context.Background(), JobContext(carryingClient{}))
	assert.Equal(t, context.Background(), JobContext(nil))
}
