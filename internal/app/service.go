package app

import (
	"context"
	"fmt"

	"github.com/aegislabs/aegis/internal/domain"
)

// TenantService orchestrates tenant lifecycle operations and fronts the
// provisioning orchestrator for the request layer.
type TenantService struct {
	repo      domain.TenantRepository
	orch      *Orchestrator
	publisher domain.EventPublisher
	validator domain.TransitionValidator
}

// NewTenantService creates a service with the given adapters.
func NewTenantService(repo domain.TenantRepository, orch *Orchestrator, publisher domain.EventPublisher, validator domain.TransitionValidator) *TenantService {
	return &TenantService{
		repo:      repo,
		orch:      orch,
		publisher: publisher,
		validator: validator,
	}
}

// Create persists a new tenant and starts its provisioning run,
// returning both the tenant and the initial provisioning record.
func (s *TenantService) Create(ctx context.Context, companyName, adminEmail, plan string, limits domain.ResourceLimits) (domain.Tenant, domain.ProvisioningStatus, error) {
	slug := Slugify(companyName)

	// Check slug uniqueness before creating.
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return domain.Tenant{}, domain.ProvisioningStatus{}, &domain.SlugConflictError{Slug: slug}
	}

	id, err := generateID()
	if err != nil {
		return domain.Tenant{}, domain.ProvisioningStatus{}, fmt.Errorf("generating tenant id: %w", err)
	}

	tenant := domain.NewTenant(id, companyName, slug, adminEmail, plan, limits)

	if err := s.repo.Create(ctx, tenant); err != nil {
		return domain.Tenant{}, domain.ProvisioningStatus{}, fmt.Errorf("creating tenant: %w", err)
	}

	status, err := s.orch.Start(ctx, tenant)
	if err != nil {
		return domain.Tenant{}, domain.ProvisioningStatus{}, fmt.Errorf("starting provisioning: %w", err)
	}

	return tenant, status, nil
}

// GetByID returns a tenant by its unique identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// Status returns the provisioning record for a tenant. Pure read; safe
// for pollers at any cadence.
func (s *TenantService) Status(ctx context.Context, id string) (domain.ProvisioningStatus, error) {
	return s.orch.Status(ctx, id)
}

// List returns tenants matching the given filter.
func (s *TenantService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	return s.repo.List(ctx, filter)
}

// Transition applies a lifecycle event to a tenant, changing its state.
// Provisioning outcomes are applied by the orchestrator, not through
// here; this serves administrative events such as suspend/reactivate.
func (s *TenantService) Transition(ctx context.Context, id string, event domain.Event) (domain.Tenant, error) {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	newStatus, err := s.validator.Apply(ctx, tenant.Status, event)
	if err != nil {
		return domain.Tenant{}, err
	}

	tenant.Status = newStatus

	if err := s.repo.Update(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("updating tenant: %w", err)
	}

	if err := s.publisher.Publish(ctx, event, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("publishing event %q: %w", event, err)
	}

	return tenant, nil
}
