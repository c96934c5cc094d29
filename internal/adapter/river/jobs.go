package river

import (
	"database/sql"

	"github.com/riverqueue/river"
)

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// ProvisionJobArgs identifies one provisioning run to execute in the
// background. The worker re-reads everything else from the stores, so a
// retried job resumes from the current step instead of starting over.
type ProvisionJobArgs struct {
	TenantID string `json:"tenant_id"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (ProvisionJobArgs) Kind() string { return "tenant.provision" }

// InsertOpts deduplicates provisioning jobs per tenant and caps River's
// own retries. The run loop handles step retries itself; River retries
// only cover worker crashes.
func (ProvisionJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

// EventJobArgs carries the data needed to process a domain event
// asynchronously. River serializes this as JSON into its job queue
// table. It includes a snapshot of the tenant at the time the event was
// published, so the worker never needs to query the database.
type EventJobArgs struct {
	Event    string `json:"event"`
	TenantID string `json:"tenant_id"`
	Slug     string `json:"slug"`
	Status   string `json:"status"`
	Plan     string `json:"plan"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "event.published" }
