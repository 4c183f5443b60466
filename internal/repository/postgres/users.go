package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

// Users backs the login handler's credential lookup. No domain service owns
// user administration yet (DESIGN.md notes this), so this adapter is
// consumed directly from httpapi rather than through a service package.
type Users struct{ Pool *dbx.Pool }

const userColumns = `id, email, credential_hash, display_name, role, station_id, plan_id, created_by, active, created_at`

func (u *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := u.Pool.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND active`, email)
	return scanUser(row)
}

func (u *Users) Get(ctx context.Context, id idgen.ID) (*models.User, error) {
	row := u.Pool.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.CredentialHash, &u.DisplayName, &u.Role, &u.StationID, &u.PlanID,
		&u.CreatedBy, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	return &u, nil
}
