package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/aegislabs/aegis/internal/app"
	"github.com/aegislabs/aegis/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	tenants map[string]domain.Tenant
	slugs   map[string]domain.Tenant
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		tenants: make(map[string]domain.Tenant),
		slugs:   make(map[string]domain.Tenant),
	}
}

func (m *mockRepo) Create(_ context.Context, t domain.Tenant) error {
	m.tenants[t.ID] = t
	m.slugs[t.Slug] = t
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockRepo) GetBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	t, ok := m.slugs[slug]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockRepo) List(_ context.Context, _ domain.ListFilter) ([]domain.Tenant, error) {
	out := make([]domain.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, t domain.Tenant) error {
	if _, ok := m.tenants[t.ID]; !ok {
		return domain.ErrTenantNotFound
	}
	m.tenants[t.ID] = t
	m.slugs[t.Slug] = t
	return nil
}

// mockStore is an in-memory StatusStore with real optimistic versioning.
// It records every written status so tests can assert on the full
// transition history.
type mockStore struct {
	records map[string]domain.ProvisioningStatus
	history []domain.ProvisioningStatus
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]domain.ProvisioningStatus)}
}

func (m *mockStore) Create(_ context.Context, status domain.ProvisioningStatus) error {
	if _, ok := m.records[status.TenantID]; ok {
		return &domain.ProvisioningConflictError{TenantID: status.TenantID}
	}
	m.records[status.TenantID] = status
	m.history = append(m.history, status)
	return nil
}

func (m *mockStore) Get(_ context.Context, tenantID string) (domain.ProvisioningStatus, error) {
	st, ok := m.records[tenantID]
	if !ok {
		return domain.ProvisioningStatus{}, domain.ErrProvisioningNotFound
	}
	return st, nil
}

func (m *mockStore) CompareAndSet(_ context.Context, expectedVersion int64, status domain.ProvisioningStatus) error {
	cur, ok := m.records[status.TenantID]
	if !ok {
		return domain.ErrProvisioningNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	status.Version = expectedVersion + 1
	m.records[status.TenantID] = status
	m.history = append(m.history, status)
	return nil
}

// mockExecutor returns scripted outcomes per step, in order. Steps with
// no script always succeed.
type mockExecutor struct {
	outcomes map[domain.Step][]error
	results  map[domain.Step]domain.StepResult
	calls    []domain.Step
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{
		outcomes: make(map[domain.Step][]error),
		results:  make(map[domain.Step]domain.StepResult),
	}
}

func (m *mockExecutor) Execute(_ context.Context, _ domain.Tenant, step domain.Step) (domain.StepResult, error) {
	m.calls = append(m.calls, step)
	if queue := m.outcomes[step]; len(queue) > 0 {
		err := queue[0]
		m.outcomes[step] = queue[1:]
		if err != nil {
			return domain.StepResult{}, err
		}
	}
	return m.results[step], nil
}

// ctxStore wraps mockStore with context awareness: operations fail once
// the context is done, the way a real database driver behaves.
type ctxStore struct {
	*mockStore
}

func (s *ctxStore) Get(ctx context.Context, tenantID string) (domain.ProvisioningStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProvisioningStatus{}, err
	}
	return s.mockStore.Get(ctx, tenantID)
}

func (s *ctxStore) CompareAndSet(ctx context.Context, expectedVersion int64, status domain.ProvisioningStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mockStore.CompareAndSet(ctx, expectedVersion, status)
}

type mockScheduler struct {
	scheduled []string
	err       error
}

func (m *mockScheduler) Schedule(_ context.Context, tenantID string) error {
	if m.err != nil {
		return m.err
	}
	m.scheduled = append(m.scheduled, tenantID)
	return nil
}

// cancelingScheduler kills the caller's context before reporting failure,
// simulating a client that disconnects mid-request.
type cancelingScheduler struct {
	cancel context.CancelFunc
}

func (s *cancelingScheduler) Schedule(ctx context.Context, _ string) error {
	s.cancel()
	return ctx.Err()
}

type mockPublisher struct {
	events []publishedEvent
}

type publishedEvent struct {
	event  domain.Event
	tenant domain.Tenant
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event, t domain.Tenant) error {
	m.events = append(m.events, publishedEvent{event: e, tenant: t})
	return nil
}

// tableValidator validates transitions straight off domain.Transitions,
// standing in for the FSM adapter.
type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	for _, tr := range domain.Transitions {
		if tr.Event == event && tr.Src == current {
			return tr.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

// --- Harness ---

type fixture struct {
	repo      *mockRepo
	store     *mockStore
	executor  *mockExecutor
	scheduler *mockScheduler
	publisher *mockPublisher
	orch      *app.Orchestrator
	svc       *app.TenantService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      newMockRepo(),
		store:     newMockStore(),
		executor:  newMockExecutor(),
		scheduler: &mockScheduler{},
		publisher: &mockPublisher{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.orch = app.NewOrchestrator(f.store, f.repo, f.executor, f.scheduler, f.publisher, tableValidator{},
		app.OrchestratorConfig{RetryBackoff: -1}, logger)
	f.svc = app.NewTenantService(f.repo, f.orch, f.publisher, tableValidator{})

	return f
}

func (f *fixture) seedTenant(t *testing.T, id string) domain.Tenant {
	t.Helper()
	tenant := domain.NewTenant(id, "Acme Corp", "acme-corp-"+id, "admin@acme.test", "enterprise",
		domain.ResourceLimits{CPUCores: 2, MemoryMB: 1024, DiskGB: 10})
	if err := f.repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("seeding tenant: %v", err)
	}
	return tenant
}
