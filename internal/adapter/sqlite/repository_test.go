package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aegislabs/aegis/internal/adapter/sqlite"
	"github.com/aegislabs/aegis/internal/domain"
)

func newTestRepo(t *testing.T) *sqlite.TenantRepository {
	t.Helper()

	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testTenant(id, slug string) domain.Tenant {
	return domain.NewTenant(id, "Acme Corp", slug, "admin@acme.test", "enterprise",
		domain.ResourceLimits{CPUCores: 2, MemoryMB: 1024, DiskGB: 10})
}

func TestCreateAndGetByID(t *testing.T) {
	repo := newTestRepo(t)
	tenant := testTenant("t1", "acme")

	if err := repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.CompanyName != tenant.CompanyName {
		t.Errorf("CompanyName = %q, want %q", got.CompanyName, tenant.CompanyName)
	}
	if got.Limits != tenant.Limits {
		t.Errorf("Limits = %+v, want %+v", got.Limits, tenant.Limits)
	}
	if got.Status != domain.StatusProvisioning {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusProvisioning)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("error = %v, want ErrTenantNotFound", err)
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Create(context.Background(), testTenant("t1", "acme")); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	err := repo.Create(context.Background(), testTenant("t2", "acme"))
	var conflict *domain.SlugConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want SlugConflictError", err)
	}
}

func TestGetBySlug(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Create(context.Background(), testTenant("t1", "acme")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetBySlug(context.Background(), "acme")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("ID = %q, want %q", got.ID, "t1")
	}
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo(t)
	tenant := testTenant("t1", "acme")

	if err := repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tenant.Status = domain.StatusActive
	tenant.ContainerEndpoint = "http://aegis-t1:8080"
	if err := repo.Update(context.Background(), tenant); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.StatusActive {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusActive)
	}
	if got.ContainerEndpoint != "http://aegis-t1:8080" {
		t.Errorf("ContainerEndpoint = %q, want stored endpoint", got.ContainerEndpoint)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Update(context.Background(), testTenant("missing", "ghost"))
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("error = %v, want ErrTenantNotFound", err)
	}
}

func TestList_FilterByStatus(t *testing.T) {
	repo := newTestRepo(t)

	active := testTenant("t1", "acme")
	active.Status = domain.StatusActive
	if err := repo.Create(context.Background(), active); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(context.Background(), testTenant("t2", "beta")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	status := domain.StatusActive
	got, err := repo.List(context.Background(), domain.ListFilter{Status: &status})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("List = %+v, want only t1", got)
	}
}
