package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aegislabs/aegis/internal/app"
	"github.com/aegislabs/aegis/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// ResourceLimits is the API representation of tenant resource bounds.
type ResourceLimits struct {
	CPUCores int `json:"cpuCores" minimum:"1" maximum:"64" doc:"CPU cores"`
	MemoryMB int `json:"memoryMb" minimum:"128" doc:"Memory in MiB"`
	DiskGB   int `json:"diskGb" minimum:"1" doc:"Disk in GiB"`
}

// ProvisioningInfo is the API view of an in-flight or failed
// provisioning run. Pollers read this until status leaves
// "provisioning".
type ProvisioningInfo struct {
	Step          string `json:"step" doc:"Current provisioning step"`
	Progress      int    `json:"progress" doc:"Progress percentage (0-100, never decreasing)"`
	Message       string `json:"message" doc:"Human-readable current-step description"`
	AttemptNumber int    `json:"attemptNumber" doc:"1-based attempts on the current step"`
	StartedAt     string `json:"startedAt" doc:"Run start timestamp (ISO 8601)"`
	FailedReason  string `json:"failedReason,omitempty" doc:"Terminal failure reason, present only when failed"`
}

// TenantResponse is the API representation of a tenant. The provisioning
// sub-object is present while the run is in flight or failed, and
// omitted once the tenant is active.
type TenantResponse struct {
	ID                string            `json:"id" doc:"Unique identifier"`
	CompanyName       string            `json:"companyName" doc:"Company display name"`
	Slug              string            `json:"slug" doc:"URL-friendly identifier"`
	AdminEmail        string            `json:"adminEmail" doc:"Tenant admin contact"`
	Plan              string            `json:"plan" doc:"Subscription plan"`
	Status            string            `json:"status" doc:"Lifecycle state" enum:"provisioning,active,suspended,failed"`
	ResourceLimits    ResourceLimits    `json:"resourceLimits" doc:"Compute resource bounds"`
	ContainerEndpoint string            `json:"containerEndpoint,omitempty" doc:"Runtime endpoint, set once active"`
	Provisioning      *ProvisioningInfo `json:"provisioning,omitempty" doc:"Provisioning progress, omitted once active"`
	CreatedAt         string            `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt         string            `json:"updatedAt" doc:"Last update timestamp (ISO 8601)"`
}

func toProvisioningInfo(st domain.ProvisioningStatus) *ProvisioningInfo {
	return &ProvisioningInfo{
		Step:          string(st.Step),
		Progress:      st.Progress,
		Message:       st.Message,
		AttemptNumber: st.AttemptNumber,
		StartedAt:     st.StartedAt.Format(timeFormat),
		FailedReason:  st.FailedReason,
	}
}

func toTenantResponse(t domain.Tenant, st *domain.ProvisioningStatus) TenantResponse {
	resp := TenantResponse{
		ID:          t.ID,
		CompanyName: t.CompanyName,
		Slug:        t.Slug,
		AdminEmail:  t.AdminEmail,
		Plan:        t.Plan,
		Status:      string(t.Status),
		ResourceLimits: ResourceLimits{
			CPUCores: t.Limits.CPUCores,
			MemoryMB: t.Limits.MemoryMB,
			DiskGB:   t.Limits.DiskGB,
		},
		ContainerEndpoint: t.ContainerEndpoint,
		CreatedAt:         t.CreatedAt.Format(timeFormat),
		UpdatedAt:         t.UpdatedAt.Format(timeFormat),
	}
	if st != nil && t.Status != domain.StatusActive && t.Status != domain.StatusSuspended {
		resp.Provisioning = toProvisioningInfo(*st)
	}
	return resp
}

// --- Create Tenant ---

type CreateTenantInput struct {
	Body struct {
		CompanyName    string         `json:"companyName" minLength:"1" maxLength:"255" doc:"Company display name"`
		AdminEmail     string         `json:"adminEmail" format:"email" doc:"Tenant admin contact"`
		Plan           string         `json:"plan,omitempty" default:"free" doc:"Subscription plan"`
		ResourceLimits ResourceLimits `json:"resourceLimits" doc:"Compute resource bounds"`
	}
}

type CreateTenantOutput struct {
	Body TenantResponse
}

// --- Get Tenant ---

type GetTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body TenantResponse
}

// --- Provisioning Status ---

type GetProvisioningInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetProvisioningOutput struct {
	Body ProvisioningInfo
}

// --- List Tenants ---

type ListTenantsInput struct {
	Status string `query:"status" required:"false" doc:"Filter by status"`
	Limit  int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

// --- Transition ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Event string `json:"event" doc:"Lifecycle event to trigger" enum:"suspend,reactivate"`
	}
}

type TransitionOutput struct {
	Body TenantResponse
}

// Register adds all tenant API routes to the Huma API.
func Register(api huma.API, svc *app.TenantService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants",
		Summary:     "Create a tenant and start provisioning",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		limits := domain.ResourceLimits{
			CPUCores: input.Body.ResourceLimits.CPUCores,
			MemoryMB: input.Body.ResourceLimits.MemoryMB,
			DiskGB:   input.Body.ResourceLimits.DiskGB,
		}
		tenant, status, err := svc.Create(ctx, input.Body.CompanyName, input.Body.AdminEmail, input.Body.Plan, limits)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateTenantOutput{Body: toTenantResponse(tenant, &status)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		status := lookupStatus(ctx, svc, tenant)
		return &GetTenantOutput{Body: toTenantResponse(tenant, status)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-provisioning-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}/provisioning",
		Summary:     "Get provisioning progress",
		Description: "Pure read for polling clients; safe at any cadence.",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetProvisioningInput) (*GetProvisioningOutput, error) {
		status, err := svc.Status(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetProvisioningOutput{Body: *toProvisioningInfo(status)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}

		tenants, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = toTenantResponse(t, nil)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/events",
		Summary:     "Trigger a lifecycle event",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		tenant, err := svc.Transition(ctx, input.ID, domain.Event(input.Body.Event))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TransitionOutput{Body: toTenantResponse(tenant, nil)}, nil
	})
}

// lookupStatus fetches the provisioning record for the embedded view.
// Best effort: tenants that predate provisioning records simply omit the
// sub-object.
func lookupStatus(ctx context.Context, svc *app.TenantService, tenant domain.Tenant) *domain.ProvisioningStatus {
	if tenant.Status == domain.StatusActive || tenant.Status == domain.StatusSuspended {
		return nil
	}
	status, err := svc.Status(ctx, tenant.ID)
	if err != nil {
		return nil
	}
	return &status
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrTenantNotFound) {
		return huma.Error404NotFound("tenant not found")
	}
	if errors.Is(err, domain.ErrProvisioningNotFound) {
		return huma.Error404NotFound("provisioning status not found")
	}

	var slugErr *domain.SlugConflictError
	if errors.As(err, &slugErr) {
		return huma.Error409Conflict(slugErr.Error())
	}

	var provErr *domain.ProvisioningConflictError
	if errors.As(err, &provErr) {
		return huma.Error409Conflict(provErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
