package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/shift"
)

// Shifts persists Shift rows, resolves the station manager a shift_collection
// handover routes to, and aggregates a shift's readings for end_shift.
// Satisfies shift.Repository, handover.ShiftRepo, shift.ReadingAggregator.
type Shifts struct{ Pool *dbx.Pool }

const shiftColumns = `
	id, station_id, employee_id, date, start_time, end_time, shift_type, opening_cash,
	cash_collected, online_collected, expected_cash, cash_difference, readings_count,
	total_litres_sold, total_sales_amount, status, ended_by, end_notes, created_at`

func (s *Shifts) Get(ctx context.Context, id idgen.ID) (*models.Shift, error) {
	row := s.Pool.DB.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id)
	return scanShift(row)
}

func (s *Shifts) ActiveForEmployee(ctx context.Context, employeeID idgen.ID) (*models.Shift, error) {
	row := s.Pool.DB.QueryRowContext(ctx, `
		SELECT `+shiftColumns+` FROM shifts WHERE employee_id = $1 AND status = $2 LIMIT 1`,
		employeeID, models.ShiftActive)
	return scanShift(row)
}

func (s *Shifts) Insert(ctx context.Context, tx dbx.Tx, sh *models.Shift) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO shifts (
			id, station_id, employee_id, date, start_time, shift_type, opening_cash, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())`,
		sh.ID, sh.StationID, sh.EmployeeID, sh.Date, sh.StartTime, sh.ShiftType, sh.OpeningCash, sh.Status)
	if err != nil {
		return fmt.Errorf("postgres: insert shift: %w", err)
	}
	return nil
}

func (s *Shifts) Update(ctx context.Context, tx dbx.Tx, sh *models.Shift) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE shifts
		SET end_time = $1, cash_collected = $2, online_collected = $3, expected_cash = $4,
		    cash_difference = $5, readings_count = $6, total_litres_sold = $7, total_sales_amount = $8,
		    status = $9, ended_by = $10, end_notes = $11
		WHERE id = $12`,
		sh.EndTime, sh.CashCollected, sh.OnlineCollected, sh.ExpectedCash, sh.CashDifference,
		sh.ReadingsCount, sh.TotalLitresSold, sh.TotalSalesAmount, sh.Status, sh.EndedBy, sh.EndNotes, sh.ID)
	if err != nil {
		return fmt.Errorf("postgres: update shift: %w", err)
	}
	return nil
}

// StationManager resolves the active manager assigned to a station, the
// target of a seeded shift_collection handover (§4.3).
func (s *Shifts) StationManager(ctx context.Context, stationID idgen.ID) (*idgen.ID, error) {
	row := s.Pool.DB.QueryRowContext(ctx, `
		SELECT id FROM users WHERE station_id = $1 AND role = $2 AND active LIMIT 1`,
		stationID, models.RoleManager)
	var managerID idgen.ID
	err := row.Scan(&managerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: station manager: %w", err)
	}
	return &managerID, nil
}

// AggregateForShift folds every non-sample reading the employee entered at
// the station within [start, end) into its transaction's cash-channel
// share, total sale value, and litres sold (§4.6).
func (s *Shifts) AggregateForShift(ctx context.Context, stationID, employeeID idgen.ID, start, end time.Time) ([]shift.ReadingAggregate, error) {
	rows, err := s.Pool.DB.QueryContext(ctx, `
		SELECT nr.litres_sold, nr.total_amount,
		       COALESCE(dt.payment_cash * nr.total_amount / NULLIF(dt.total_sale_value, 0), nr.total_amount) AS cash_share
		FROM nozzle_readings nr
		LEFT JOIN daily_transactions dt ON dt.id = nr.transaction_id
		WHERE nr.station_id = $1 AND nr.entered_by = $2 AND nr.is_sample = false
		  AND nr.is_initial_reading = false
		  AND nr.created_at >= $3 AND nr.created_at < $4`,
		stationID, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: aggregate shift readings: %w", err)
	}
	defer rows.Close()

	var out []shift.ReadingAggregate
	for rows.Next() {
		var a shift.ReadingAggregate
		if err := rows.Scan(&a.LitresSold, &a.TotalAmount, &a.CashAmount); err != nil {
			return nil, fmt.Errorf("postgres: scan shift aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanShift(row *sql.Row) (*models.Shift, error) {
	sh := &models.Shift{}
	err := row.Scan(&sh.ID, &sh.StationID, &sh.EmployeeID, &sh.Date, &sh.StartTime, &sh.EndTime,
		&sh.ShiftType, &sh.OpeningCash, &sh.CashCollected, &sh.OnlineCollected, &sh.ExpectedCash,
		&sh.CashDifference, &sh.ReadingsCount, &sh.TotalLitresSold, &sh.TotalSalesAmount, &sh.Status,
		&sh.EndedBy, &sh.EndNotes, &sh.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get shift: %w", err)
	}
	return sh, nil
}
