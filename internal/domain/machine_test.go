package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aegislabs/aegis/internal/domain"
)

func newRun(t *testing.T) domain.ProvisioningStatus {
	t.Helper()
	return domain.NewProvisioningStatus("tenant-1", time.Now().UTC())
}

// Every step succeeds on the first try: the run ends active at 100%.
func TestMachine_AllStepsSucceed(t *testing.T) {
	m := domain.NewMachine(3)
	st := newRun(t)

	for i := 0; i < len(domain.StepDescriptors); i++ {
		if st.Terminal() {
			t.Fatalf("run terminal after %d steps, want %d", i, len(domain.StepDescriptors))
		}
		prev := st.Progress
		st = m.Next(st, nil)
		if st.Progress < prev {
			t.Errorf("progress decreased from %d to %d", prev, st.Progress)
		}
	}

	if st.Status != domain.StatusActive {
		t.Errorf("Status = %q, want %q", st.Status, domain.StatusActive)
	}
	if st.Step != domain.StepCompleted {
		t.Errorf("Step = %q, want %q", st.Step, domain.StepCompleted)
	}
	if st.Progress != 100 {
		t.Errorf("Progress = %d, want 100", st.Progress)
	}
	if st.FailedReason != "" {
		t.Errorf("FailedReason = %q, want empty", st.FailedReason)
	}
}

func TestMachine_SuccessAdvancesAndResetsAttempts(t *testing.T) {
	m := domain.NewMachine(3)
	st := newRun(t)

	// Two failures on the first step, then success.
	st = m.Next(st, errors.New("boom"))
	if st.AttemptNumber != 2 {
		t.Errorf("AttemptNumber = %d, want 2", st.AttemptNumber)
	}
	st = m.Next(st, errors.New("boom"))
	if st.AttemptNumber != 3 {
		t.Errorf("AttemptNumber = %d, want 3", st.AttemptNumber)
	}
	if st.Status != domain.StatusProvisioning {
		t.Fatalf("Status = %q, want still provisioning", st.Status)
	}

	st = m.Next(st, nil)
	if st.Step != domain.StepConfiguring {
		t.Errorf("Step = %q, want %q", st.Step, domain.StepConfiguring)
	}
	if st.AttemptNumber != 1 {
		t.Errorf("AttemptNumber = %d, want reset to 1", st.AttemptNumber)
	}
	if st.FailedReason != "" {
		t.Errorf("FailedReason = %q, want empty after recovery", st.FailedReason)
	}
}

func TestMachine_RetryKeepsStepAndProgress(t *testing.T) {
	m := domain.NewMachine(3)
	st := newRun(t)
	st = m.Next(st, nil) // now on configuring at 50%

	retried := m.Next(st, errors.New("transient"))

	if retried.Step != st.Step {
		t.Errorf("Step = %q, want unchanged %q", retried.Step, st.Step)
	}
	if retried.Progress != st.Progress {
		t.Errorf("Progress = %d, want unchanged %d", retried.Progress, st.Progress)
	}
	if retried.Status != domain.StatusProvisioning {
		t.Errorf("Status = %q, want %q", retried.Status, domain.StatusProvisioning)
	}
	if retried.Message == st.Message {
		t.Error("Message should reflect the retry")
	}
	// Transient reasons stay out of the client-visible record.
	if retried.FailedReason != "" {
		t.Errorf("FailedReason = %q, want empty on retry", retried.FailedReason)
	}
}

// Three failures on the first step force a terminal failure with the
// last error text and unchanged progress.
func TestMachine_ExhaustedAttemptsFail(t *testing.T) {
	m := domain.NewMachine(3)
	st := newRun(t)
	startProgress := st.Progress

	st = m.Next(st, errors.New("dns not ready"))
	st = m.Next(st, errors.New("dns not ready"))
	st = m.Next(st, errors.New("namespace quota exceeded"))

	if st.Status != domain.StatusFailed {
		t.Fatalf("Status = %q, want %q", st.Status, domain.StatusFailed)
	}
	if st.Step != domain.StepFailed {
		t.Errorf("Step = %q, want %q", st.Step, domain.StepFailed)
	}
	if st.FailedReason != "namespace quota exceeded" {
		t.Errorf("FailedReason = %q, want last error text", st.FailedReason)
	}
	if st.Progress != startProgress {
		t.Errorf("Progress = %d, want unchanged %d", st.Progress, startProgress)
	}
}

func TestMachine_EmptyReasonFallsBack(t *testing.T) {
	m := domain.NewMachine(3)
	st := newRun(t)

	for i := 0; i < 3; i++ {
		st = m.Next(st, errors.New("   "))
	}

	if st.Status != domain.StatusFailed {
		t.Fatalf("Status = %q, want %q", st.Status, domain.StatusFailed)
	}
	if st.FailedReason != domain.FallbackFailedReason {
		t.Errorf("FailedReason = %q, want fallback %q", st.FailedReason, domain.FallbackFailedReason)
	}
}

// Terminal records never transition again, regardless of outcome.
func TestMachine_TerminalIsFrozen(t *testing.T) {
	m := domain.NewMachine(3)

	active := domain.ProvisioningStatus{
		TenantID: "tenant-1",
		Status:   domain.StatusActive,
		Step:     domain.StepCompleted,
		Progress: 100,
	}
	failed := domain.ProvisioningStatus{
		TenantID:     "tenant-2",
		Status:       domain.StatusFailed,
		Step:         domain.StepFailed,
		Progress:     10,
		FailedReason: "gone",
	}

	for _, outcome := range []error{nil, errors.New("late failure")} {
		if got := m.Next(active, outcome); got != active {
			t.Errorf("active record changed: %+v", got)
		}
		if got := m.Next(failed, outcome); got != failed {
			t.Errorf("failed record changed: %+v", got)
		}
	}
}

func TestMachine_AttemptNumberNeverExceedsLimit(t *testing.T) {
	m := domain.NewMachine(3)
	st := newRun(t)

	for i := 0; i < 10; i++ {
		st = m.Next(st, errors.New("still broken"))
		if st.AttemptNumber > 3 {
			t.Fatalf("AttemptNumber = %d, exceeds limit", st.AttemptNumber)
		}
	}
	if st.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want %q after exhaustion", st.Status, domain.StatusFailed)
	}
}

func TestNewMachine_DefaultAttempts(t *testing.T) {
	m := domain.NewMachine(0)
	if m.MaxAttempts != domain.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", m.MaxAttempts, domain.DefaultMaxAttempts)
	}
}
