package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aegislabs/aegis/internal/domain"
)

// internalFailureReason is surfaced when the run loop itself faults,
// as opposed to a step executor reporting failure.
const internalFailureReason = "Provisioning failed due to an internal error."

// OrchestratorConfig holds the tunable knobs of the run loop. Zero
// values are replaced by the listed defaults.
type OrchestratorConfig struct {
	// MaxAttempts bounds attempts per step. Default 3.
	MaxAttempts int
	// AttemptTimeout bounds a single step executor invocation. Default 60s.
	AttemptTimeout time.Duration
	// RetryBackoff is the base delay before re-attempting a failed step.
	// It doubles per attempt and carries ±50% jitter. Default 2s; a
	// negative value disables waiting entirely.
	RetryBackoff time.Duration
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = domain.DefaultMaxAttempts
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 60 * time.Second
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	} else if c.RetryBackoff == 0 {
		c.RetryBackoff = 2 * time.Second
	}
	return c
}

// Orchestrator drives provisioning runs to a terminal state. Start
// creates the status record and schedules background execution; Run is
// the loop itself, invoked by the job worker. Run is re-entrant: it
// reads the current record and resumes from the current step, so a
// crashed worker picks up where it left off instead of duplicating work.
type Orchestrator struct {
	store     domain.StatusStore
	repo      domain.TenantRepository
	executor  domain.StepExecutor
	scheduler domain.ProvisionScheduler
	publisher domain.EventPublisher
	validator domain.TransitionValidator
	machine   domain.Machine
	cfg       OrchestratorConfig
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator with the given adapters.
func NewOrchestrator(
	store domain.StatusStore,
	repo domain.TenantRepository,
	executor domain.StepExecutor,
	scheduler domain.ProvisionScheduler,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     store,
		repo:      repo,
		executor:  executor,
		scheduler: scheduler,
		publisher: publisher,
		validator: validator,
		machine:   domain.NewMachine(cfg.MaxAttempts),
		cfg:       cfg,
		logger:    logger,
	}
}

// Start creates the initial status record for a tenant and enqueues the
// background run, returning the record synchronously. A second Start for
// the same tenant ID is rejected with a ProvisioningConflictError while
// any record exists, in flight or terminal.
func (o *Orchestrator) Start(ctx context.Context, tenant domain.Tenant) (domain.ProvisioningStatus, error) {
	status := domain.NewProvisioningStatus(tenant.ID, time.Now().UTC())

	if err := o.store.Create(ctx, status); err != nil {
		return domain.ProvisioningStatus{}, fmt.Errorf("creating provisioning status: %w", err)
	}

	if err := o.scheduler.Schedule(ctx, tenant.ID); err != nil {
		// The record exists but nothing will drive it; fail it now so
		// pollers never watch a run that cannot progress.
		o.failRun(ctx, tenant.ID, internalFailureReason)
		return domain.ProvisioningStatus{}, fmt.Errorf("scheduling provisioning run: %w", err)
	}

	return status, nil
}

// Status returns the current provisioning record for a tenant. Pure
// read: safe to call at any cadence, with no side effects.
func (o *Orchestrator) Status(ctx context.Context, tenantID string) (domain.ProvisioningStatus, error) {
	return o.store.Get(ctx, tenantID)
}

// Run advances the state machine until the record is terminal,
// persisting every transition. Step executor errors (including per
// attempt timeouts) count against the attempt limit; faults in the loop
// itself mark the run failed immediately rather than retrying forever.
func (o *Orchestrator) Run(ctx context.Context, tenantID string) error {
	tenant, err := o.repo.GetByID(ctx, tenantID)
	if err != nil {
		o.failRun(ctx, tenantID, internalFailureReason)
		return fmt.Errorf("loading tenant %q: %w", tenantID, err)
	}

	for {
		status, err := o.store.Get(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("reading provisioning status: %w", err)
		}
		if status.Terminal() {
			return nil
		}

		result, stepErr := o.attempt(ctx, tenant, status.Step)
		if stepErr != nil {
			o.logger.WarnContext(ctx, "provisioning step failed",
				"tenant_id", tenantID,
				"step", string(status.Step),
				"attempt", status.AttemptNumber,
				"error", stepErr,
			)
		}

		next := o.machine.Next(status, stepErr)
		// Persist step results on the record itself: a crashed worker's
		// replacement resumes from the current step and never re-runs
		// completed ones, so anything they produced must survive here.
		if result.Endpoint != "" {
			next.Endpoint = result.Endpoint
		}

		if err := o.store.CompareAndSet(ctx, status.Version, next); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				// Another writer moved the record. Ours is no longer the
				// authoritative run; back off without clobbering it.
				return fmt.Errorf("persisting transition for tenant %q: %w", tenantID, err)
			}
			o.failRun(ctx, tenantID, internalFailureReason)
			return fmt.Errorf("persisting transition for tenant %q: %w", tenantID, err)
		}

		if next.Terminal() {
			o.finish(ctx, tenant, next)
			return nil
		}

		if stepErr != nil {
			if err := o.backoff(ctx, next.AttemptNumber); err != nil {
				return err
			}
		}
	}
}

// attempt invokes the executor for the current step under the configured
// per-attempt timeout.
func (o *Orchestrator) attempt(ctx context.Context, tenant domain.Tenant, step domain.Step) (domain.StepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	defer cancel()
	return o.executor.Execute(ctx, tenant, step)
}

// finish records the terminal outcome on the tenant entity and publishes
// the matching domain event. The provisioning record is already terminal
// at this point; failures here are logged, not retried.
func (o *Orchestrator) finish(ctx context.Context, tenant domain.Tenant, status domain.ProvisioningStatus) {
	event := domain.EventProvisionComplete
	if status.Status == domain.StatusFailed {
		event = domain.EventProvisionFailed
	}

	newStatus, err := o.validator.Apply(ctx, tenant.Status, event)
	if err != nil {
		o.logger.ErrorContext(ctx, "invalid terminal transition",
			"tenant_id", tenant.ID, "event", string(event), "error", err)
		return
	}

	tenant.Status = newStatus
	if status.Status == domain.StatusActive {
		tenant.ContainerEndpoint = status.Endpoint
	}

	if err := o.repo.Update(ctx, tenant); err != nil {
		o.logger.ErrorContext(ctx, "updating tenant after provisioning",
			"tenant_id", tenant.ID, "error", err)
	}

	if err := o.publisher.Publish(ctx, event, tenant); err != nil {
		o.logger.ErrorContext(ctx, "publishing provisioning event",
			"tenant_id", tenant.ID, "event", string(event), "error", err)
	}

	o.logger.InfoContext(ctx, "provisioning finished",
		"tenant_id", tenant.ID,
		"status", string(status.Status),
		"progress", status.Progress,
	)
}

// failRun force-fails a non-terminal record after an internal fault.
// Best effort: if the record cannot be read or was concurrently moved,
// the fault is logged and the record left alone.
func (o *Orchestrator) failRun(ctx context.Context, tenantID, reason string) {
	// Compensation must outlive the caller: the request that triggered it
	// may already be canceled, and an abandoned non-terminal record would
	// block the tenant forever.
	ctx = context.WithoutCancel(ctx)

	status, err := o.store.Get(ctx, tenantID)
	if err != nil || status.Terminal() {
		return
	}

	status.Status = domain.StatusFailed
	status.Step = domain.StepFailed
	status.Message = "Provisioning failed"
	status.FailedReason = reason

	if err := o.store.CompareAndSet(ctx, status.Version, status); err != nil {
		o.logger.ErrorContext(ctx, "marking run as failed",
			"tenant_id", tenantID, "error", err)
		return
	}

	if tenant, err := o.repo.GetByID(ctx, tenantID); err == nil {
		o.finish(ctx, tenant, status)
	}
}

// backoff sleeps before the next attempt on the same step: exponential
// per attempt with ±50% jitter, so eventual-consistency waits do not
// hammer the backend in lockstep.
func (o *Orchestrator) backoff(ctx context.Context, attempt int) error {
	if o.cfg.RetryBackoff <= 0 {
		return nil
	}

	delay := o.cfg.RetryBackoff
	for i := 2; i < attempt; i++ {
		delay *= 2
	}
	jittered := delay/2 + time.Duration(rand.Float64()*float64(delay))

	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
