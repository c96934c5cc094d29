package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// Runner drives one provisioning run to a terminal state. Satisfied by
// the app orchestrator; declared here so this adapter depends only on
// what it calls.
type Runner interface {
	Run(ctx context.Context, tenantID string) error
}

// ProvisionWorker executes provisioning run jobs. One job per tenant,
// attempts strictly serialized within the run loop itself; River only
// provides the background execution context and crash retries.
type ProvisionWorker struct {
	river.WorkerDefaults[ProvisionJobArgs]

	runner Runner
}

// NewProvisionWorker creates a worker backed by the given runner.
func NewProvisionWorker(runner Runner) *ProvisionWorker {
	return &ProvisionWorker{runner: runner}
}

// Work drives the tenant's run loop until it reaches a terminal state.
func (w *ProvisionWorker) Work(ctx context.Context, job *river.Job[ProvisionJobArgs]) error {
	slog.InfoContext(ctx, "running provisioning",
		"tenant_id", job.Args.TenantID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.runner.Run(ctx, job.Args.TenantID)
}

// EventWorker processes domain event jobs from the River queue. For now
// it logs the event; future versions will dispatch to webhooks and
// notification systems.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing event",
		"event", job.Args.Event,
		"tenant_id", job.Args.TenantID,
		"tenant_slug", job.Args.Slug,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
