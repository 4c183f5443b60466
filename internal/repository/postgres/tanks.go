package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

// Tanks persists Tank and TankRefill rows. Satisfies tank.Repository,
// dashboard.TankRepo.
type Tanks struct{ Pool *dbx.Pool }

const tankColumns = `
	id, station_id, fuel_type, display_name, friendly_name, capacity, current_level,
	low_level_warning, low_level_percent, critical_level_warning, critical_level_percent,
	level_after_last_refill, last_refill_date, last_refill_amount, last_dip_reading,
	last_dip_date, tracking_mode, allow_negative, created_at, updated_at`

func (t *Tanks) Get(ctx context.Context, id idgen.ID) (*models.Tank, error) {
	row := t.Pool.DB.QueryRowContext(ctx, `SELECT `+tankColumns+` FROM tanks WHERE id = $1`, id)
	return scanTank(row)
}

func (t *Tanks) GetByStationFuel(ctx context.Context, stationID idgen.ID, fuelType models.FuelType) (*models.Tank, error) {
	row := t.Pool.DB.QueryRowContext(ctx, `
		SELECT `+tankColumns+` FROM tanks WHERE station_id = $1 AND fuel_type = $2 LIMIT 1`, stationID, fuelType)
	return scanTank(row)
}

func (t *Tanks) ListByStation(ctx context.Context, stationID idgen.ID) ([]models.Tank, error) {
	rows, err := t.Pool.DB.QueryContext(ctx, `SELECT `+tankColumns+` FROM tanks WHERE station_id = $1 ORDER BY fuel_type`, stationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tanks by station: %w", err)
	}
	defer rows.Close()

	var out []models.Tank
	for rows.Next() {
		tk, err := scanTankRows(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan tank: %w", err)
		}
		out = append(out, *tk)
	}
	return out, rows.Err()
}

func (t *Tanks) UpdateLevel(ctx context.Context, tx dbx.Tx, tankID idgen.ID, newLevel volume.Litres) error {
	_, err := tx.ExecContext(ctx, `UPDATE tanks SET current_level = $1, updated_at = now() WHERE id = $2`, newLevel, tankID)
	if err != nil {
		return fmt.Errorf("postgres: update tank level: %w", err)
	}
	return nil
}

func (t *Tanks) SetRefillState(ctx context.Context, tx dbx.Tx, tankID idgen.ID, levelAfterRefill volume.Litres, refillDate time.Time, refillAmount volume.Litres) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE tanks SET current_level = $1, level_after_last_refill = $1, last_refill_date = $2,
		                 last_refill_amount = $3, updated_at = now()
		WHERE id = $4`, levelAfterRefill, refillDate, refillAmount, tankID)
	if err != nil {
		return fmt.Errorf("postgres: set tank refill state: %w", err)
	}
	return nil
}

func (t *Tanks) SetDip(ctx context.Context, tx dbx.Tx, tankID idgen.ID, dip volume.Litres, dipDate time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE tanks SET last_dip_reading = $1, last_dip_date = $2, updated_at = now() WHERE id = $3`,
		dip, dipDate, tankID)
	if err != nil {
		return fmt.Errorf("postgres: set tank dip: %w", err)
	}
	return nil
}

func (t *Tanks) InsertRefill(ctx context.Context, tx dbx.Tx, r *models.TankRefill) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tank_refills (
			id, tank_id, station_id, litres, refill_date, refill_time, cost_per_litre, total_cost,
			supplier, invoice, vehicle, driver, tank_level_before, tank_level_after, entry_type,
			backdated, verified, verified_by, verified_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now())`,
		r.ID, r.TankID, r.StationID, r.Litres, r.RefillDate, r.RefillTime, r.CostPerLitre, r.TotalCost,
		r.Supplier, r.Invoice, r.Vehicle, r.Driver, r.TankLevelBefore, r.TankLevelAfter, r.EntryType,
		r.Backdated, r.Verified, r.VerifiedBy, r.VerifiedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert tank refill: %w", err)
	}
	return nil
}

func (t *Tanks) GetRefill(ctx context.Context, id idgen.ID) (*models.TankRefill, error) {
	row := t.Pool.DB.QueryRowContext(ctx, `
		SELECT id, tank_id, station_id, litres, refill_date, refill_time, cost_per_litre, total_cost,
		       supplier, invoice, vehicle, driver, tank_level_before, tank_level_after, entry_type,
		       backdated, verified, verified_by, verified_at, created_at
		FROM tank_refills WHERE id = $1`, id)
	rf := &models.TankRefill{}
	err := row.Scan(&rf.ID, &rf.TankID, &rf.StationID, &rf.Litres, &rf.RefillDate, &rf.RefillTime,
		&rf.CostPerLitre, &rf.TotalCost, &rf.Supplier, &rf.Invoice, &rf.Vehicle, &rf.Driver,
		&rf.TankLevelBefore, &rf.TankLevelAfter, &rf.EntryType, &rf.Backdated, &rf.Verified,
		&rf.VerifiedBy, &rf.VerifiedAt, &rf.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get tank refill: %w", err)
	}
	return rf, nil
}

func (t *Tanks) DeleteRefill(ctx context.Context, tx dbx.Tx, id idgen.ID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tank_refills WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete tank refill: %w", err)
	}
	return nil
}

func scanTank(row *sql.Row) (*models.Tank, error) {
	tk, err := scanTankRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get tank: %w", err)
	}
	return tk, nil
}

func scanTankRows(r rowScanner) (*models.Tank, error) {
	tk := &models.Tank{}
	err := r.Scan(&tk.ID, &tk.StationID, &tk.FuelType, &tk.DisplayName, &tk.FriendlyName, &tk.Capacity,
		&tk.CurrentLevel, &tk.LowLevelWarning, &tk.LowLevelPercent, &tk.CriticalLevelWarning,
		&tk.CriticalLevelPercent, &tk.LevelAfterLastRefill, &tk.LastRefillDate, &tk.LastRefillAmount,
		&tk.LastDipReading, &tk.LastDipDate, &tk.TrackingMode, &tk.AllowNegative, &tk.CreatedAt, &tk.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tk, nil
}
