package domain

import "time"

// Status represents the coarse lifecycle state of a tenant. The same
// values describe the externally visible state of a provisioning run
// (a run is never "suspended").
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusSuspended    Status = "suspended"
	StatusFailed       Status = "failed"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventProvisionComplete Event = "provision_complete"
	EventProvisionFailed   Event = "provision_failed"
	EventSuspend           Event = "suspend"
	EventReactivate        Event = "reactivate"
)

// Transition defines a valid state change: an event moves a tenant from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the tenant lifecycle.
// This is domain knowledge consumed by the FSM adapter. "failed" is
// terminal: no event leads out of it.
var Transitions = []Transition{
	{Event: EventProvisionComplete, Src: StatusProvisioning, Dst: StatusActive},
	{Event: EventProvisionFailed, Src: StatusProvisioning, Dst: StatusFailed},
	{Event: EventSuspend, Src: StatusActive, Dst: StatusSuspended},
	{Event: EventReactivate, Src: StatusSuspended, Dst: StatusActive},
}

// ResourceLimits bounds the compute resources of a tenant environment.
type ResourceLimits struct {
	CPUCores int
	MemoryMB int
	DiskGB   int
}

// Tenant is the core domain entity representing a company using the platform.
// ContainerEndpoint is empty until provisioning completes.
type Tenant struct {
	ID                string
	CompanyName       string
	Slug              string
	AdminEmail        string
	Plan              string
	Status            Status
	Limits            ResourceLimits
	ContainerEndpoint string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewTenant creates a tenant in the initial "provisioning" state.
func NewTenant(id, companyName, slug, adminEmail, plan string, limits ResourceLimits) Tenant {
	now := time.Now().UTC()
	return Tenant{
		ID:          id,
		CompanyName: companyName,
		Slug:        slug,
		AdminEmail:  adminEmail,
		Plan:        plan,
		Status:      StatusProvisioning,
		Limits:      limits,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
