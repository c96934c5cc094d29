package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aegislabs/aegis/internal/domain"
)

// StatusStore implements domain.StatusStore using SQLite. Optimistic
// versioning makes lost updates impossible: every write goes through a
// single UPDATE guarded by the expected version, and SQLite serializes
// writers on the shared connection.
type StatusStore struct {
	db *sql.DB
}

// Compile-time check: StatusStore implements domain.StatusStore.
var _ domain.StatusStore = (*StatusStore)(nil)

// NewStatusStore wraps a migrated database connection. Use the same
// connection as the tenant repository so both share one writer.
func NewStatusStore(db *sql.DB) *StatusStore {
	return &StatusStore{db: db}
}

func (s *StatusStore) Create(ctx context.Context, status domain.ProvisioningStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provisioning_status
		 (tenant_id, status, step, progress, message, attempt_number, started_at, failed_reason, container_endpoint, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		status.TenantID, string(status.Status), string(status.Step),
		status.Progress, status.Message, status.AttemptNumber,
		status.StartedAt.Format(timeFormat), status.FailedReason,
		status.Endpoint, status.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ProvisioningConflictError{TenantID: status.TenantID}
		}
		return fmt.Errorf("inserting provisioning status: %w", err)
	}
	return nil
}

func (s *StatusStore) Get(ctx context.Context, tenantID string) (domain.ProvisioningStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, status, step, progress, message, attempt_number, started_at, failed_reason, container_endpoint, version
		 FROM provisioning_status WHERE tenant_id = ?`, tenantID,
	)

	var st domain.ProvisioningStatus
	var status, step, startedAt string

	err := row.Scan(&st.TenantID, &status, &step, &st.Progress, &st.Message,
		&st.AttemptNumber, &startedAt, &st.FailedReason, &st.Endpoint, &st.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ProvisioningStatus{}, domain.ErrProvisioningNotFound
		}
		return domain.ProvisioningStatus{}, fmt.Errorf("scanning provisioning status: %w", err)
	}

	st.Status = domain.Status(status)
	st.Step = domain.Step(step)
	st.StartedAt, _ = time.Parse(timeFormat, startedAt)

	return st, nil
}

func (s *StatusStore) CompareAndSet(ctx context.Context, expectedVersion int64, status domain.ProvisioningStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE provisioning_status
		 SET status = ?, step = ?, progress = ?, message = ?, attempt_number = ?, failed_reason = ?, container_endpoint = ?, version = version + 1
		 WHERE tenant_id = ? AND version = ?`,
		string(status.Status), string(status.Step), status.Progress,
		status.Message, status.AttemptNumber, status.FailedReason,
		status.Endpoint, status.TenantID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating provisioning status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		// Disambiguate: missing record vs. concurrent writer.
		if _, getErr := s.Get(ctx, status.TenantID); getErr != nil {
			return getErr
		}
		return domain.ErrVersionConflict
	}

	return nil
}
