package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/plan"
)

// Counters persists the (owner, kind, month) monthly counter table behind an
// UPSERT, so concurrent increments across the shared pool (§5) never race.
// Satisfies plan.Counters.
type Counters struct{ Pool *dbx.Pool }

func (c *Counters) Increment(ctx context.Context, ownerID idgen.ID, kind plan.CounterKind, month string) (int, error) {
	row := c.Pool.DB.QueryRowContext(ctx, `
		INSERT INTO plan_monthly_counters (owner_id, kind, month, value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (owner_id, kind, month) DO UPDATE SET value = plan_monthly_counters.value + 1
		RETURNING value`, ownerID, kind, month)
	var value int
	if err := row.Scan(&value); err != nil {
		return 0, fmt.Errorf("postgres: increment plan counter: %w", err)
	}
	return value, nil
}

func (c *Counters) Current(ctx context.Context, ownerID idgen.ID, kind plan.CounterKind, month string) (int, error) {
	row := c.Pool.DB.QueryRowContext(ctx, `
		SELECT value FROM plan_monthly_counters WHERE owner_id = $1 AND kind = $2 AND month = $3`,
		ownerID, kind, month)
	var value int
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: current plan counter: %w", err)
	}
	return value, nil
}

// ResourceCounter counts existing rows of a plan-ceilinged resource kind for
// an owner. Satisfies plan.ResourceCounter.
type ResourceCounter struct{ Pool *dbx.Pool }

func (r *ResourceCounter) Count(ctx context.Context, ownerID idgen.ID, resource plan.Resource) (int, error) {
	var query string
	switch resource {
	case plan.ResourceStation:
		query = `SELECT count(*) FROM stations WHERE owner_id = $1`
	case plan.ResourcePump:
		query = `SELECT count(*) FROM pumps p JOIN stations s ON s.id = p.station_id WHERE s.owner_id = $1`
	case plan.ResourceNozzle:
		query = `
			SELECT count(*) FROM nozzles n
			JOIN pumps p ON p.id = n.pump_id
			JOIN stations s ON s.id = p.station_id
			WHERE s.owner_id = $1`
	case plan.ResourceEmployee:
		query = `
			SELECT count(*) FROM users u
			JOIN stations s ON s.id = u.station_id
			WHERE s.owner_id = $1 AND u.role IN ('manager', 'employee')`
	case plan.ResourceCreditor:
		query = `
			SELECT count(*) FROM creditors c
			JOIN stations s ON s.id = c.station_id
			WHERE s.owner_id = $1`
	default:
		return 0, fmt.Errorf("postgres: unknown plan resource %q", resource)
	}

	row := r.Pool.DB.QueryRowContext(ctx, query, ownerID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count resource %q: %w", resource, err)
	}
	return count, nil
}
