package domain_test

import (
	"testing"
	"time"

	"github.com/aegislabs/aegis/internal/domain"
)

func TestStepDescriptors_Ordering(t *testing.T) {
	if len(domain.StepDescriptors) == 0 {
		t.Fatal("no step descriptors defined")
	}

	prev := -1
	for _, d := range domain.StepDescriptors {
		if d.Progress <= prev {
			t.Errorf("step %q progress %d is not strictly increasing (prev %d)", d.Key, d.Progress, prev)
		}
		if d.Progress < 0 || d.Progress > 100 {
			t.Errorf("step %q progress %d out of range", d.Key, d.Progress)
		}
		if d.Label == "" || d.Detail == "" {
			t.Errorf("step %q is missing label or detail", d.Key)
		}
		prev = d.Progress
	}
}

func TestNextStep(t *testing.T) {
	desc, ok := domain.NextStep(domain.StepCreatingNamespace)
	if !ok || desc.Key != domain.StepConfiguring {
		t.Errorf("NextStep(creating_namespace) = %q, %v; want configuring, true", desc.Key, ok)
	}

	desc, ok = domain.NextStep(domain.StepConfiguring)
	if !ok || desc.Key != domain.StepHealthCheck {
		t.Errorf("NextStep(configuring) = %q, %v; want health_check, true", desc.Key, ok)
	}

	if _, ok := domain.NextStep(domain.StepHealthCheck); ok {
		t.Error("NextStep(health_check) should report no next step")
	}

	if _, ok := domain.NextStep(domain.StepCompleted); ok {
		t.Error("NextStep(completed) should report no next step")
	}
}

func TestDescriptorFor_TerminalMarkers(t *testing.T) {
	for _, step := range []domain.Step{domain.StepCompleted, domain.StepFailed} {
		if _, ok := domain.DescriptorFor(step); ok {
			t.Errorf("DescriptorFor(%q) should not resolve a terminal marker", step)
		}
	}
}

func TestNewProvisioningStatus(t *testing.T) {
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := domain.NewProvisioningStatus("tenant-1", startedAt)

	if st.TenantID != "tenant-1" {
		t.Errorf("TenantID = %q, want %q", st.TenantID, "tenant-1")
	}
	if st.Status != domain.StatusProvisioning {
		t.Errorf("Status = %q, want %q", st.Status, domain.StatusProvisioning)
	}
	if st.Step != domain.StepCreatingNamespace {
		t.Errorf("Step = %q, want %q", st.Step, domain.StepCreatingNamespace)
	}
	if st.Progress != domain.FirstStep().Progress {
		t.Errorf("Progress = %d, want %d", st.Progress, domain.FirstStep().Progress)
	}
	if st.AttemptNumber != 1 {
		t.Errorf("AttemptNumber = %d, want 1", st.AttemptNumber)
	}
	if !st.StartedAt.Equal(startedAt) {
		t.Errorf("StartedAt = %v, want %v", st.StartedAt, startedAt)
	}
	if st.Terminal() {
		t.Error("new status should not be terminal")
	}
	if st.Version != 1 {
		t.Errorf("Version = %d, want 1", st.Version)
	}
}

func TestProvisioningStatus_Terminal(t *testing.T) {
	cases := []struct {
		status domain.Status
		want   bool
	}{
		{domain.StatusProvisioning, false},
		{domain.StatusActive, true},
		{domain.StatusFailed, true},
	}

	for _, tc := range cases {
		st := domain.ProvisioningStatus{Status: tc.status}
		if got := st.Terminal(); got != tc.want {
			t.Errorf("Terminal() with status %q = %v, want %v", tc.status, got, tc.want)
		}
	}
}
