// Package store provides the relational persistence layer: a PostgreSQL
// store for production and a SQLite store for local runs, sharing one schema
// (jobs, skills, job_skills, failed_urls) and the skill normalization and
// title categorization rules applied on the way in.
package store

import (
	"fmt"

	"stackscout/internal/model"
)

// Open opens the configured backing store. driver is "postgres" or "sqlite";
// dsn is a postgresql:// URL or a sqlite file path respectively.
func Open(driver, dsn string) (model.Store, error) {
	switch driver {
	case "postgres":
		return OpenPostgres(dsn)
	case "sqlite":
		return OpenSQLite(dsn)
	}
	return nil, fmt.Errorf("unknown database driver %q", driver)
}
