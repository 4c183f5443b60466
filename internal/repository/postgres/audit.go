package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

// AuditSink persists AuditLog rows. Satisfies audit.Sink.
//
// audit.Logger.Record is always called with the same ctx as the enclosing
// uow.WithTransaction callback, but audit.Sink.Insert takes no dbx.Tx — so
// this writes on its own connection rather than joining the caller's
// transaction. A failed audit write is logged by audit.Logger and rolls back
// the write it describes only where the calling service returns Record's
// error from its transaction callback; an audit row already written stays
// even if that transaction later rolls back.
type AuditSink struct{ Pool *dbx.Pool }

func (a *AuditSink) Insert(ctx context.Context, row models.AuditLog) error {
	oldValues, err := json.Marshal(row.OldValues)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit old_values: %w", err)
	}
	newValues, err := json.Marshal(row.NewValues)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit new_values: %w", err)
	}

	_, err = a.Pool.DB.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, user_id, cached_email, cached_role, station_id, action, entity_type, entity_id,
			old_values, new_values, description, ip, user_agent, severity, category, success,
			error_message, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now())`,
		row.ID, row.UserID, row.CachedEmail, row.CachedRole, row.StationID, row.Action, row.EntityType,
		row.EntityID, oldValues, newValues, row.Description, row.IP, row.UserAgent, row.Severity,
		row.Category, row.Success, row.ErrorMessage)
	if err != nil {
		return fmt.Errorf("postgres: insert audit log: %w", err)
	}
	return nil
}
