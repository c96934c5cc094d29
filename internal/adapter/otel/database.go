package otel

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// dbAttributes tags every SQL span and pool metric with the console
// store, so tenant and provisioning queries are distinguishable from
// the River job tables sharing the same file.
var dbAttributes = []attribute.KeyValue{
	semconv.DBSystemSqlite,
	attribute.String("aegis.store", "console"),
}

// OpenDB opens the console SQLite database with OpenTelemetry
// instrumentation: spans per SQL operation plus connection pool metrics.
func OpenDB(dataSourceName string) (*sql.DB, error) {
	db, err := otelsql.Open("sqlite", dataSourceName,
		otelsql.WithAttributes(dbAttributes...),
	)
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}

	// The console store shares its SQLite file with River's job tables.
	// A single writer connection sidesteps SQLITE_BUSY between the API
	// handlers and the provisioning workers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(dbAttributes...),
	); err != nil {
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}

	return db, nil
}
