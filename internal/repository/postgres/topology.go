// Package postgres adapts every domain package's narrow Repository
// interfaces onto the shared *dbx.Pool, using plain database/sql with
// lib/pq placeholders — the dbx.Tx interface lets every method run either
// standalone (ctx, p.DB) or inside a UnitOfWork's transaction.
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

// Stations resolves Station rows. Satisfies reading.StationRepo,
// dashboard.StationRepo.
type Stations struct{ Pool *dbx.Pool }

func (s *Stations) Get(ctx context.Context, id idgen.ID) (*models.Station, error) {
	row := s.Pool.DB.QueryRowContext(ctx, `
		SELECT id, name, code, contact, owner_id, brand, shift_required_for_reading,
		       alert_on_missed_reading_days, created_at
		FROM stations WHERE id = $1`, id)
	st := &models.Station{}
	err := row.Scan(&st.ID, &st.Name, &st.Code, &st.Contact, &st.OwnerID, &st.Brand,
		&st.ShiftRequiredForReading, &st.AlertOnMissedReadingDays, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get station: %w", err)
	}
	return st, nil
}

func (s *Stations) ListByOwner(ctx context.Context, ownerID idgen.ID) ([]models.Station, error) {
	rows, err := s.Pool.DB.QueryContext(ctx, `
		SELECT id, name, code, contact, owner_id, brand, shift_required_for_reading,
		       alert_on_missed_reading_days, created_at
		FROM stations WHERE owner_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stations by owner: %w", err)
	}
	defer rows.Close()

	var out []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Code, &st.Contact, &st.OwnerID, &st.Brand,
			&st.ShiftRequiredForReading, &st.AlertOnMissedReadingDays, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan station: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Pumps resolves and auto-creates Pump rows. Satisfies reading.PumpRepo,
// ocr.PumpRepo.
type Pumps struct{ Pool *dbx.Pool }

func (p *Pumps) Get(ctx context.Context, id idgen.ID) (*models.Pump, error) {
	row := p.Pool.DB.QueryRowContext(ctx, `
		SELECT id, station_id, display_name, pump_number, status, created_at
		FROM pumps WHERE id = $1`, id)
	pm := &models.Pump{}
	err := row.Scan(&pm.ID, &pm.StationID, &pm.DisplayName, &pm.PumpNumber, &pm.Status, &pm.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get pump: %w", err)
	}
	return pm, nil
}

func (p *Pumps) GetBySerial(ctx context.Context, stationID idgen.ID, serial string) (*models.Pump, error) {
	row := p.Pool.DB.QueryRowContext(ctx, `
		SELECT id, station_id, display_name, pump_number, status, created_at
		FROM pumps WHERE station_id = $1 AND display_name = $2`, stationID, serial)
	pm := &models.Pump{}
	err := row.Scan(&pm.ID, &pm.StationID, &pm.DisplayName, &pm.PumpNumber, &pm.Status, &pm.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get pump by serial: %w", err)
	}
	return pm, nil
}

func (p *Pumps) Create(ctx context.Context, stationID idgen.ID, serial string) (*models.Pump, error) {
	pm := &models.Pump{ID: idgen.New(), StationID: stationID, DisplayName: serial, Status: models.PumpActive}
	_, err := p.Pool.DB.ExecContext(ctx, `
		INSERT INTO pumps (id, station_id, display_name, pump_number, status, created_at)
		VALUES ($1, $2, $3, 0, $4, now())`, pm.ID, pm.StationID, pm.DisplayName, pm.Status)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pump: %w", err)
	}
	return pm, nil
}

// Nozzles resolves and auto-creates Nozzle rows, and maintains the
// denormalized last-reading cache. Satisfies reading.NozzleRepo, ocr.NozzleRepo,
// dashboard.NozzleRepo.
type Nozzles struct{ Pool *dbx.Pool }

func (n *Nozzles) Get(ctx context.Context, id idgen.ID) (*models.Nozzle, error) {
	row := n.Pool.DB.QueryRowContext(ctx, `
		SELECT id, pump_id, nozzle_number, fuel_type, status, initial_reading,
		       last_reading, last_reading_date, created_at
		FROM nozzles WHERE id = $1`, id)
	return scanNozzle(row)
}

func (n *Nozzles) GetByNumber(ctx context.Context, pumpID idgen.ID, number int) (*models.Nozzle, error) {
	row := n.Pool.DB.QueryRowContext(ctx, `
		SELECT id, pump_id, nozzle_number, fuel_type, status, initial_reading,
		       last_reading, last_reading_date, created_at
		FROM nozzles WHERE pump_id = $1 AND nozzle_number = $2`, pumpID, number)
	return scanNozzle(row)
}

func (n *Nozzles) ListByStation(ctx context.Context, stationID idgen.ID) ([]models.Nozzle, error) {
	rows, err := n.Pool.DB.QueryContext(ctx, `
		SELECT nz.id, nz.pump_id, nz.nozzle_number, nz.fuel_type, nz.status, nz.initial_reading,
		       nz.last_reading, nz.last_reading_date, nz.created_at
		FROM nozzles nz
		JOIN pumps p ON p.id = nz.pump_id
		WHERE p.station_id = $1
		ORDER BY p.pump_number, nz.nozzle_number`, stationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list nozzles by station: %w", err)
	}
	defer rows.Close()

	var out []models.Nozzle
	for rows.Next() {
		nz, err := scanNozzleRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *nz)
	}
	return out, rows.Err()
}

func (n *Nozzles) Create(ctx context.Context, pumpID idgen.ID, number int, fuelType models.FuelType) (*models.Nozzle, error) {
	nz := &models.Nozzle{ID: idgen.New(), PumpID: pumpID, NozzleNumber: number, FuelType: fuelType, Status: models.NozzleActive}
	_, err := n.Pool.DB.ExecContext(ctx, `
		INSERT INTO nozzles (id, pump_id, nozzle_number, fuel_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`, nz.ID, nz.PumpID, nz.NozzleNumber, nz.FuelType, nz.Status)
	if err != nil {
		return nil, fmt.Errorf("postgres: create nozzle: %w", err)
	}
	return nz, nil
}

func (n *Nozzles) UpdateCache(ctx context.Context, tx dbx.Tx, nozzleID idgen.ID, lastReading volume.Litres, lastReadingDate time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE nozzles SET last_reading = $1, last_reading_date = $2 WHERE id = $3`,
		lastReading, lastReadingDate, nozzleID)
	if err != nil {
		return fmt.Errorf("postgres: update nozzle cache: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNozzle(row *sql.Row) (*models.Nozzle, error) {
	nz, err := scanNozzleRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get nozzle: %w", err)
	}
	return nz, nil
}

func scanNozzleRows(r rowScanner) (*models.Nozzle, error) {
	nz := &models.Nozzle{}
	err := r.Scan(&nz.ID, &nz.PumpID, &nz.NozzleNumber, &nz.FuelType, &nz.Status, &nz.InitialReading,
		&nz.LastReading, &nz.LastReadingDate, &nz.CreatedAt)
	if err != nil {
		return nil, err
	}
	return nz, nil
}

// FuelPrices resolves the price effective on a given date. Satisfies
// reading.FuelPriceRepo.
type FuelPrices struct{ Pool *dbx.Pool }

func (f *FuelPrices) EffectivePrice(ctx context.Context, stationID idgen.ID, fuelType models.FuelType, onDate time.Time) (*models.FuelPrice, error) {
	row := f.Pool.DB.QueryRowContext(ctx, `
		SELECT id, station_id, fuel_type, selling_price, cost_price, effective_from, created_at
		FROM fuel_prices
		WHERE station_id = $1 AND fuel_type = $2 AND effective_from <= $3
		ORDER BY effective_from DESC
		LIMIT 1`, stationID, fuelType, onDate)
	fp := &models.FuelPrice{}
	err := row.Scan(&fp.ID, &fp.StationID, &fp.FuelType, &fp.SellingPrice, &fp.CostPrice, &fp.EffectiveFrom, &fp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: effective price: %w", err)
	}
	return fp, nil
}

// Plans resolves the plan governing a station's owner. Satisfies
// reading.PlanProvider, expense.PlanProvider.
type Plans struct{ Pool *dbx.Pool }

func (p *Plans) PlanForStation(ctx context.Context, stationID idgen.ID) (models.Plan, error) {
	row := p.Pool.DB.QueryRowContext(ctx, `
		SELECT pl.id, pl.name, pl.max_stations, pl.max_pumps_per_station, pl.max_nozzles_per_pump,
		       pl.max_employees, pl.max_creditors, pl.backdated_days, pl.monthly_export_quota,
		       pl.monthly_report_quota, pl.monthly_manual_entry_quota, pl.retention_sales_days,
		       pl.retention_profit_days, pl.retention_analytics_days, pl.retention_audit_days,
		       pl.retention_transactions_days, pl.can_export, pl.can_track_expenses,
		       pl.can_track_credits, pl.can_view_profit_loss, pl.created_at
		FROM plans pl
		JOIN users u ON u.plan_id = pl.id
		JOIN stations s ON s.owner_id = u.id
		WHERE s.id = $1`, stationID)
	var pl models.Plan
	err := row.Scan(&pl.ID, &pl.Name, &pl.MaxStations, &pl.MaxPumpsPerStation, &pl.MaxNozzlesPerPump,
		&pl.MaxEmployees, &pl.MaxCreditors, &pl.BackdatedDays, &pl.MonthlyExportQuota,
		&pl.MonthlyReportQuota, &pl.MonthlyManualEntryQuota, &pl.RetentionSalesDays,
		&pl.RetentionProfitDays, &pl.RetentionAnalyticsDays, &pl.RetentionAuditDays,
		&pl.RetentionTransactionsDays, &pl.CanExport, &pl.CanTrackExpenses,
		&pl.CanTrackCredits, &pl.CanViewProfitLoss, &pl.CreatedAt)
	if err != nil {
		return models.Plan{}, fmt.Errorf("postgres: plan for station: %w", err)
	}
	return pl, nil
}
