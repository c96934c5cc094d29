package domain

import (
	"fmt"
	"time"
)

// Step identifies one stage of the provisioning pipeline. Working steps
// are totally ordered; "completed" and "failed" are terminal markers and
// are never executed or retried.
type Step string

const (
	StepCreatingNamespace Step = "creating_namespace"
	StepConfiguring       Step = "configuring"
	StepHealthCheck       Step = "health_check"
	StepCompleted         Step = "completed"
	StepFailed            Step = "failed"
)

// StepDescriptor holds static metadata for one working step. Progress is
// the client-visible percentage while the step is current; it equals the
// percentage reached when the previous step completed. Values are
// deliberately weighted rather than evenly spaced: namespace setup is
// quick, container configuration dominates wall time.
type StepDescriptor struct {
	Key      Step
	Label    string
	Detail   string
	Progress int
}

// StepDescriptors lists the working steps in execution order.
var StepDescriptors = []StepDescriptor{
	{
		Key:      StepCreatingNamespace,
		Label:    "Creating namespace",
		Detail:   "Allocating an isolated network and storage for the tenant",
		Progress: 10,
	},
	{
		Key:      StepConfiguring,
		Label:    "Configuring environment",
		Detail:   "Starting the tenant container with the requested resource limits",
		Progress: 50,
	},
	{
		Key:      StepHealthCheck,
		Label:    "Running health checks",
		Detail:   "Waiting for the tenant runtime to report healthy",
		Progress: 80,
	},
}

// FirstStep returns the initial working step of the pipeline.
func FirstStep() StepDescriptor {
	return StepDescriptors[0]
}

// DescriptorFor returns the descriptor of a working step. The second
// return value is false for terminal markers and unknown steps.
func DescriptorFor(step Step) (StepDescriptor, bool) {
	for _, d := range StepDescriptors {
		if d.Key == step {
			return d, true
		}
	}
	return StepDescriptor{}, false
}

// NextStep returns the working step after the given one. The second
// return value is false when step is the final working step.
func NextStep(step Step) (StepDescriptor, bool) {
	for i, d := range StepDescriptors {
		if d.Key == step && i+1 < len(StepDescriptors) {
			return StepDescriptors[i+1], true
		}
	}
	return StepDescriptor{}, false
}

// ProvisioningStatus is the authoritative record of one provisioning run,
// keyed by tenant ID. It is written only by the orchestrator and read
// concurrently by pollers. Version supports optimistic compare-and-set;
// the store increments it on every successful write.
type ProvisioningStatus struct {
	TenantID      string
	Status        Status
	Step          Step
	Progress      int
	Message       string
	AttemptNumber int
	StartedAt     time.Time
	FailedReason  string
	// Endpoint is the tenant runtime endpoint reported by a completed
	// step. It lives on the record so a run resumed by a fresh worker
	// still has it when the final step succeeds.
	Endpoint string
	Version  int64
}

// NewProvisioningStatus creates the initial record for a tenant: first
// working step, attempt 1, status "provisioning".
func NewProvisioningStatus(tenantID string, startedAt time.Time) ProvisioningStatus {
	first := FirstStep()
	return ProvisioningStatus{
		TenantID:      tenantID,
		Status:        StatusProvisioning,
		Step:          first.Key,
		Progress:      first.Progress,
		Message:       first.Detail,
		AttemptNumber: 1,
		StartedAt:     startedAt,
		Version:       1,
	}
}

// Terminal reports whether the run has reached "active" or "failed".
// Terminal records never transition again.
func (s ProvisioningStatus) Terminal() bool {
	return s.Status == StatusActive || s.Status == StatusFailed
}

// StepResult carries optional data produced by a successful step
// execution. Endpoint, when non-empty, is the tenant's runtime endpoint
// recorded on the tenant once provisioning completes.
type StepResult struct {
	Endpoint string
}

func retryMessage(d StepDescriptor, attempt, maxAttempts int) string {
	return fmt.Sprintf("%s (attempt %d of %d)", d.Label, attempt, maxAttempts)
}
