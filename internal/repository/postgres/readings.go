package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

// Readings persists NozzleReading rows. Satisfies reading.Repository and
// transaction.ReadingRepo.
type Readings struct{ Pool *dbx.Pool }

func (r *Readings) FindPrevious(ctx context.Context, nozzleID idgen.ID, asOf time.Time) (*models.NozzleReading, error) {
	row := r.Pool.DB.QueryRowContext(ctx, `
		SELECT `+readingColumns+`
		FROM nozzle_readings
		WHERE nozzle_id = $1 AND reading_date <= $2
		ORDER BY reading_date DESC, created_at DESC
		LIMIT 1`, nozzleID, asOf)
	return scanReading(row)
}

func (r *Readings) FindDuplicate(ctx context.Context, nozzleID idgen.ID, readingDate time.Time, value volume.Litres) (*models.NozzleReading, error) {
	row := r.Pool.DB.QueryRowContext(ctx, `
		SELECT `+readingColumns+`
		FROM nozzle_readings
		WHERE nozzle_id = $1 AND reading_date = $2 AND reading_value = $3
		LIMIT 1`, nozzleID, readingDate, value)
	return scanReading(row)
}

func (r *Readings) Get(ctx context.Context, id idgen.ID) (*models.NozzleReading, error) {
	row := r.Pool.DB.QueryRowContext(ctx, `SELECT `+readingColumns+` FROM nozzle_readings WHERE id = $1`, id)
	return scanReading(row)
}

func (r *Readings) Insert(ctx context.Context, tx dbx.Tx, rd *models.NozzleReading) error {
	warnings := make(pq.StringArray, len(rd.Warnings))
	for i, w := range rd.Warnings {
		warnings[i] = string(w)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO nozzle_readings (
			id, nozzle_id, station_id, pump_id, fuel_type, entered_by, reading_date, reading_value,
			previous_reading, previous_reading_value, litres_sold, price_per_litre, total_amount,
			is_initial_reading, is_sample, source, approval_status, warnings, shift_id, flow_status,
			notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now())`,
		rd.ID, rd.NozzleID, rd.StationID, rd.PumpID, rd.FuelType, rd.EnteredBy, rd.ReadingDate, rd.ReadingValue,
		rd.PreviousReading, rd.PreviousReadingValue, rd.LitresSold, rd.PricePerLitre, rd.TotalAmount,
		rd.IsInitialReading, rd.IsSample, rd.Source, rd.ApprovalStatus, warnings, rd.ShiftID, rd.FlowStatus,
		rd.Notes)
	if err != nil {
		return fmt.Errorf("postgres: insert reading: %w", err)
	}
	return nil
}

func (r *Readings) UpdateFlowStatus(ctx context.Context, tx dbx.Tx, readingID idgen.ID, status models.FlowStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE nozzle_readings SET flow_status = $1 WHERE id = $2`, status, readingID)
	if err != nil {
		return fmt.Errorf("postgres: update reading flow status: %w", err)
	}
	return nil
}

func (r *Readings) Reject(ctx context.Context, tx dbx.Tx, readingID idgen.ID, reason string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE nozzle_readings SET approval_status = $1, rejection_reason = $2 WHERE id = $3`,
		models.ApprovalRejected, reason, readingID)
	if err != nil {
		return fmt.Errorf("postgres: reject reading: %w", err)
	}
	return nil
}

func (r *Readings) AttachToTransaction(ctx context.Context, tx dbx.Tx, readingID, transactionID idgen.ID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE nozzle_readings SET transaction_id = $1, flow_status = $2 WHERE id = $3`,
		transactionID, models.FlowSettled, readingID)
	if err != nil {
		return fmt.Errorf("postgres: attach reading to transaction: %w", err)
	}
	return nil
}

func (r *Readings) DetachFromTransaction(ctx context.Context, tx dbx.Tx, readingID idgen.ID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE nozzle_readings SET transaction_id = NULL, flow_status = $1 WHERE id = $2`,
		models.FlowUnsettled, readingID)
	if err != nil {
		return fmt.Errorf("postgres: detach reading from transaction: %w", err)
	}
	return nil
}

const readingColumns = `
	id, nozzle_id, station_id, pump_id, fuel_type, entered_by, reading_date, reading_value,
	previous_reading, previous_reading_value, litres_sold, price_per_litre, total_amount,
	is_initial_reading, is_sample, source, approval_status, approved_by, approved_at,
	rejection_reason, warnings, shift_id, settlement_id, transaction_id, flow_status,
	notes, created_at`

func scanReading(row *sql.Row) (*models.NozzleReading, error) {
	rd := &models.NozzleReading{}
	var warnings pq.StringArray
	err := row.Scan(&rd.ID, &rd.NozzleID, &rd.StationID, &rd.PumpID, &rd.FuelType, &rd.EnteredBy,
		&rd.ReadingDate, &rd.ReadingValue, &rd.PreviousReading, &rd.PreviousReadingValue, &rd.LitresSold,
		&rd.PricePerLitre, &rd.TotalAmount, &rd.IsInitialReading, &rd.IsSample, &rd.Source,
		&rd.ApprovalStatus, &rd.ApprovedBy, &rd.ApprovedAt, &rd.RejectionReason, &warnings,
		&rd.ShiftID, &rd.SettlementID, &rd.TransactionID, &rd.FlowStatus, &rd.Notes, &rd.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan reading: %w", err)
	}
	for _, w := range warnings {
		rd.Warnings = append(rd.Warnings, models.ReadingWarning(w))
	}
	return rd, nil
}
