// internal/common/camunda/context.go
package camunda

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ContextCarrier is implemented by job clients that wrap a job in a context,
// such as the instrumented client that opens the job span.
type ContextCarrier interface {
	JobContext() context.Context
}

// JobContext returns the context the client carries for the current job, or
// context.Background when it carries none. Handlers derive their deadline
// from it so their spans join the job's trace.
func JobContext(client worker.JobClient) context.Context {
	if carrier, ok := client.(ContextCarrier); ok {
		if ctx := carrier.JobContext(); ctx != nil {
			return ctx
		}
	}
	return context.Background()
}
