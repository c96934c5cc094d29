package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrProvisioningNotFound = errors.New("provisioning status not found")
	ErrVersionConflict      = errors.New("provisioning status version conflict")
)

// SlugConflictError is returned when a tenant slug is already in use.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

// ProvisioningConflictError is returned when Start is called for a tenant
// ID that already has a provisioning record. Runs are started exactly
// once per tenant; duplicates are rejected, never merged.
type ProvisioningConflictError struct {
	TenantID string
}

func (e *ProvisioningConflictError) Error() string {
	return fmt.Sprintf("provisioning already started for tenant %q", e.TenantID)
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}
