package domain

import "context"

// TenantRepository defines the persistence contract for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	GetBySlug(ctx context.Context, slug string) (Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]Tenant, error)
	Update(ctx context.Context, tenant Tenant) error
}

// ListFilter holds optional criteria for listing tenants.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// StatusStore holds the authoritative ProvisioningStatus per tenant ID:
// one writer (the orchestrator run loop), many concurrent readers.
type StatusStore interface {
	// Create inserts the initial record. A record for the same tenant ID
	// must not already exist; a ProvisioningConflictError is returned if
	// one does.
	Create(ctx context.Context, status ProvisioningStatus) error

	// Get returns the current record, or ErrProvisioningNotFound.
	Get(ctx context.Context, tenantID string) (ProvisioningStatus, error)

	// CompareAndSet replaces the record only if its stored version still
	// equals expectedVersion, incrementing the version on success.
	// Returns ErrVersionConflict when the record moved underneath the
	// caller.
	CompareAndSet(ctx context.Context, expectedVersion int64, status ProvisioningStatus) error
}

// StepExecutor performs one provisioning step for a tenant. Execute must
// be safe to re-invoke for the same (tenant, step) pair: the orchestrator
// retries failed steps in place and provides no cross-step rollback.
type StepExecutor interface {
	Execute(ctx context.Context, tenant Tenant, step Step) (StepResult, error)
}

// ProvisionScheduler enqueues the background run for a tenant whose
// initial status record has been created.
type ProvisionScheduler interface {
	Schedule(ctx context.Context, tenantID string) error
}

// EventPublisher defines the contract for emitting domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, tenant Tenant) error
}

// TransitionValidator checks lifecycle events against the Transitions
// table and returns the destination status.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
