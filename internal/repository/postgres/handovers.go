package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

// Handovers persists CashHandover rows. Satisfies handover.Repository.
type Handovers struct{ Pool *dbx.Pool }

const handoverColumns = `
	id, station_id, type, date, from_user_id, to_user_id, expected_amount, actual_amount,
	difference, variance_pct, previous_handover_id, status, shift_id, bank_name, deposit_reference,
	receipt_url, dispute_note, resolution_notes, resolved_by, resolved_at, confirmed_by, confirmed_at,
	notes, created_at`

func (h *Handovers) Get(ctx context.Context, id idgen.ID) (*models.CashHandover, error) {
	row := h.Pool.DB.QueryRowContext(ctx, `SELECT `+handoverColumns+` FROM cash_handovers WHERE id = $1`, id)
	return scanHandover(row)
}

func (h *Handovers) Insert(ctx context.Context, tx dbx.Tx, ch *models.CashHandover) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cash_handovers (
			id, station_id, type, date, from_user_id, to_user_id, expected_amount, actual_amount,
			difference, variance_pct, previous_handover_id, status, shift_id, bank_name,
			deposit_reference, receipt_url, notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now())`,
		ch.ID, ch.StationID, ch.Type, ch.Date, ch.FromUserID, ch.ToUserID, ch.ExpectedAmount,
		ch.ActualAmount, ch.Difference, ch.VariancePct, ch.PreviousHandoverID, ch.Status, ch.ShiftID,
		ch.BankName, ch.DepositReference, ch.ReceiptURL, ch.Notes)
	if err != nil {
		return fmt.Errorf("postgres: insert handover: %w", err)
	}
	return nil
}

func (h *Handovers) Update(ctx context.Context, tx dbx.Tx, ch *models.CashHandover) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cash_handovers
		SET actual_amount = $1, difference = $2, variance_pct = $3, status = $4, bank_name = $5,
		    deposit_reference = $6, receipt_url = $7, dispute_note = $8, resolution_notes = $9,
		    resolved_by = $10, resolved_at = $11, confirmed_by = $12, confirmed_at = $13, notes = $14
		WHERE id = $15`,
		ch.ActualAmount, ch.Difference, ch.VariancePct, ch.Status, ch.BankName, ch.DepositReference,
		ch.ReceiptURL, ch.DisputeNote, ch.ResolutionNotes, ch.ResolvedBy, ch.ResolvedAt, ch.ConfirmedBy,
		ch.ConfirmedAt, ch.Notes, ch.ID)
	if err != nil {
		return fmt.Errorf("postgres: update handover: %w", err)
	}
	return nil
}

func (h *Handovers) LatestConfirmedOfType(ctx context.Context, stationID idgen.ID, t models.HandoverType, fromUser *idgen.ID) (*models.CashHandover, error) {
	query := `
		SELECT ` + handoverColumns + `
		FROM cash_handovers
		WHERE station_id = $1 AND type = $2 AND status IN ($3, $4)`
	args := []interface{}{stationID, t, models.HandoverConfirmed, models.HandoverResolved}
	if fromUser != nil {
		query += ` AND from_user_id = $5`
		args = append(args, *fromUser)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	row := h.Pool.DB.QueryRowContext(ctx, query, args...)
	return scanHandover(row)
}

func (h *Handovers) PendingForUser(ctx context.Context, userID idgen.ID) ([]models.CashHandover, error) {
	rows, err := h.Pool.DB.QueryContext(ctx, `
		SELECT `+handoverColumns+`
		FROM cash_handovers
		WHERE status IN ($1, $2) AND (from_user_id = $3 OR to_user_id = $3)
		ORDER BY created_at`, models.HandoverPending, models.HandoverDisputed, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending handovers for user: %w", err)
	}
	defer rows.Close()
	return scanHandoverRowsAll(rows)
}

func (h *Handovers) ListByStationDateRange(ctx context.Context, stationID idgen.ID, from, to time.Time) ([]models.CashHandover, error) {
	rows, err := h.Pool.DB.QueryContext(ctx, `
		SELECT `+handoverColumns+`
		FROM cash_handovers
		WHERE station_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, created_at`, stationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list handovers by station date range: %w", err)
	}
	defer rows.Close()
	return scanHandoverRowsAll(rows)
}

func scanHandover(row *sql.Row) (*models.CashHandover, error) {
	ch, err := scanHandoverRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get handover: %w", err)
	}
	return ch, nil
}

func scanHandoverRow(r rowScanner) (*models.CashHandover, error) {
	ch := &models.CashHandover{}
	err := r.Scan(&ch.ID, &ch.StationID, &ch.Type, &ch.Date, &ch.FromUserID, &ch.ToUserID,
		&ch.ExpectedAmount, &ch.ActualAmount, &ch.Difference, &ch.VariancePct, &ch.PreviousHandoverID,
		&ch.Status, &ch.ShiftID, &ch.BankName, &ch.DepositReference, &ch.ReceiptURL, &ch.DisputeNote,
		&ch.ResolutionNotes, &ch.ResolvedBy, &ch.ResolvedAt, &ch.ConfirmedBy, &ch.ConfirmedAt,
		&ch.Notes, &ch.CreatedAt)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func scanHandoverRowsAll(rows *sql.Rows) ([]models.CashHandover, error) {
	var out []models.CashHandover
	for rows.Next() {
		ch, err := scanHandoverRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan handover: %w", err)
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}
