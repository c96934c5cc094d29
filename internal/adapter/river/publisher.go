package river

import (
	"context"
	"fmt"

	"github.com/aegislabs/aegis/internal/domain"
)

// Compile-time checks for the ports this adapter provides.
var (
	_ domain.EventPublisher     = (*Publisher)(nil)
	_ domain.ProvisionScheduler = (*Scheduler)(nil)
)

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a domain event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, tenant domain.Tenant) error {
	_, err := p.client.Insert(ctx, EventJobArgs{
		Event:    string(event),
		TenantID: tenant.ID,
		Slug:     tenant.Slug,
		Status:   string(tenant.Status),
		Plan:     tenant.Plan,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}

// Scheduler implements domain.ProvisionScheduler by enqueuing a
// provisioning run job.
type Scheduler struct {
	client *Client
}

// NewScheduler creates a scheduler backed by the given River client.
func NewScheduler(client *Client) *Scheduler {
	return &Scheduler{client: client}
}

// Schedule enqueues the background run for a tenant.
func (s *Scheduler) Schedule(ctx context.Context, tenantID string) error {
	_, err := s.client.Insert(ctx, ProvisionJobArgs{TenantID: tenantID}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing provisioning job: %w", err)
	}
	return nil
}
