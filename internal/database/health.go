package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sumitkumar2005/xeno-crm/internal/observability"
)

// SchemaTables are the tables every xeno-crm binary reads or writes.
var SchemaTables = []string{"customers", "orders", "campaigns", "communication_logs"}

// NewHealthChecker reports PostgreSQL ready once the pool can run a query and
// every table in SchemaTables exists. A reachable but unmigrated database is
// reported down with the missing tables named.
func NewHealthChecker(pool *pgxpool.Pool) observability.Checker {
	return observability.NewCheck("postgres", func(ctx context.Context) error {
		if pool == nil {
			return errors.New("database pool is nil")
		}
		return checkSchema(ctx, pool)
	})
}

func checkSchema(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx,
		`SELECT t FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL ORDER BY t`,
		SchemaTables,
	)
	if err != nil {
		return fmt.Errorf("postgres query failed: %w", err)
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("postgres query failed: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema not migrated, missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}
