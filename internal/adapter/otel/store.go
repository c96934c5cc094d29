package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aegislabs/aegis/internal/domain"
)

// TracingStatusStore wraps a domain.StatusStore with OpenTelemetry
// tracing. Provisioning transitions show up as spans keyed by tenant,
// step, and attempt, which is how run stalls get diagnosed.
type TracingStatusStore struct {
	next   domain.StatusStore
	tracer trace.Tracer
}

// Compile-time check: TracingStatusStore implements domain.StatusStore.
var _ domain.StatusStore = (*TracingStatusStore)(nil)

// NewTracingStatusStore creates a tracing decorator around the given store.
func NewTracingStatusStore(next domain.StatusStore) *TracingStatusStore {
	return &TracingStatusStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingStatusStore) Create(ctx context.Context, status domain.ProvisioningStatus) error {
	ctx, span := s.tracer.Start(ctx, "StatusStore.Create",
		trace.WithAttributes(
			attribute.String("tenant.id", status.TenantID),
			attribute.String("provisioning.step", string(status.Step)),
		),
	)
	defer span.End()

	err := s.next.Create(ctx, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStatusStore) Get(ctx context.Context, tenantID string) (domain.ProvisioningStatus, error) {
	ctx, span := s.tracer.Start(ctx, "StatusStore.Get",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	status, err := s.next.Get(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return status, err
}

func (s *TracingStatusStore) CompareAndSet(ctx context.Context, expectedVersion int64, status domain.ProvisioningStatus) error {
	ctx, span := s.tracer.Start(ctx, "StatusStore.CompareAndSet",
		trace.WithAttributes(
			attribute.String("tenant.id", status.TenantID),
			attribute.String("provisioning.status", string(status.Status)),
			attribute.String("provisioning.step", string(status.Step)),
			attribute.Int("provisioning.attempt", status.AttemptNumber),
			attribute.Int64("provisioning.expected_version", expectedVersion),
		),
	)
	defer span.End()

	err := s.next.CompareAndSet(ctx, expectedVersion, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
