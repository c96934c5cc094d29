package domain

import "strings"

// DefaultMaxAttempts bounds how often a single step is attempted before
// the run is declared failed.
const DefaultMaxAttempts = 3

// FallbackFailedReason is surfaced when a run fails without the executor
// supplying any reason text.
const FallbackFailedReason = "Provisioning failed after multiple attempts."

// Machine is the pure provisioning state machine: given the current
// record and the outcome of attempting the current step, it decides the
// next record. It performs no I/O and never mutates its input.
type Machine struct {
	MaxAttempts int
}

// NewMachine returns a machine with the given attempt limit, falling
// back to DefaultMaxAttempts for non-positive values.
func NewMachine(maxAttempts int) Machine {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Machine{MaxAttempts: maxAttempts}
}

// Next applies the transition rules to the outcome of one step attempt.
// A nil stepErr means the executor succeeded. Terminal records are
// returned unchanged: once a run is "active" or "failed" it never moves.
func (m Machine) Next(current ProvisioningStatus, stepErr error) ProvisioningStatus {
	if current.Terminal() {
		return current
	}

	next := current

	if stepErr == nil {
		desc, ok := NextStep(current.Step)
		if !ok {
			// Final working step succeeded: the environment is live.
			next.Step = StepCompleted
			next.Status = StatusActive
			next.Progress = 100
			next.Message = "Tenant environment is active"
			next.AttemptNumber = 1
			return next
		}
		next.Step = desc.Key
		next.Progress = desc.Progress
		next.Message = desc.Detail
		next.AttemptNumber = 1
		return next
	}

	if current.AttemptNumber < m.MaxAttempts {
		// Same step, one more attempt. Progress never moves backwards and
		// the transient reason stays out of the client-visible record.
		next.AttemptNumber = current.AttemptNumber + 1
		if desc, ok := DescriptorFor(current.Step); ok {
			next.Message = retryMessage(desc, next.AttemptNumber, m.MaxAttempts)
		}
		return next
	}

	next.Step = StepFailed
	next.Status = StatusFailed
	next.Message = "Provisioning failed"
	next.FailedReason = failedReason(stepErr)
	return next
}

// failedReason extracts a readable reason from the last executor error,
// never returning an empty string.
func failedReason(err error) string {
	if err == nil {
		return FallbackFailedReason
	}
	reason := strings.TrimSpace(err.Error())
	if reason == "" {
		return FallbackFailedReason
	}
	return reason
}
