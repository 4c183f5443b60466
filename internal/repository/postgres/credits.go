package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

// Creditors persists Creditor, CreditTransaction and CreditSettlementLink
// rows. Satisfies credit.Repository, transaction.CreditorRepo.
type Creditors struct{ Pool *dbx.Pool }

const creditorColumns = `
	id, station_id, display_name, business_name, contact, credit_limit, credit_period_days,
	current_balance, aging_0_30, aging_31_60, aging_61_90, aging_over_90, last_transaction_date,
	last_payment_date, flagged, flag_reason, active, created_at, updated_at`

func (c *Creditors) GetCreditor(ctx context.Context, id idgen.ID) (*models.Creditor, error) {
	row := c.Pool.DB.QueryRowContext(ctx, `SELECT `+creditorColumns+` FROM creditors WHERE id = $1`, id)
	cr := &models.Creditor{}
	err := row.Scan(&cr.ID, &cr.StationID, &cr.DisplayName, &cr.BusinessName, &cr.Contact, &cr.CreditLimit,
		&cr.CreditPeriodDays, &cr.CurrentBalance, &cr.Aging0To30, &cr.Aging31To60, &cr.Aging61To90,
		&cr.AgingOver90, &cr.LastTransactionDate, &cr.LastPaymentDate, &cr.Flagged, &cr.FlagReason,
		&cr.Active, &cr.CreatedAt, &cr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get creditor: %w", err)
	}
	return cr, nil
}

func (c *Creditors) Get(ctx context.Context, id idgen.ID) (*models.Creditor, error) {
	return c.GetCreditor(ctx, id)
}

func (c *Creditors) UpdateCreditor(ctx context.Context, tx dbx.Tx, cr *models.Creditor) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE creditors SET current_balance = $1, aging_0_30 = $2, aging_31_60 = $3, aging_61_90 = $4,
		                      aging_over_90 = $5, last_transaction_date = $6, last_payment_date = $7,
		                      flagged = $8, flag_reason = $9, updated_at = now()
		WHERE id = $10`,
		cr.CurrentBalance, cr.Aging0To30, cr.Aging31To60, cr.Aging61To90, cr.AgingOver90,
		cr.LastTransactionDate, cr.LastPaymentDate, cr.Flagged, cr.FlagReason, cr.ID)
	if err != nil {
		return fmt.Errorf("postgres: update creditor: %w", err)
	}
	return nil
}

func (c *Creditors) InsertTransaction(ctx context.Context, tx dbx.Tx, t *models.CreditTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, station_id, creditor_id, type, amount, fuel_type, litres, price_per_litre,
			linked_reading_id, invoice_number, vehicle_number, transaction_date, entered_by, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())`,
		t.ID, t.StationID, t.CreditorID, t.Type, t.Amount, t.FuelType, t.Litres, t.PricePerLitre,
		t.LinkedReadingID, t.InvoiceNumber, t.VehicleNumber, t.TransactionDate, t.EnteredBy)
	if err != nil {
		return fmt.Errorf("postgres: insert credit transaction: %w", err)
	}
	return nil
}

func (c *Creditors) ListTransactions(ctx context.Context, creditorID idgen.ID) ([]models.CreditTransaction, error) {
	rows, err := c.Pool.DB.QueryContext(ctx, `
		SELECT id, station_id, creditor_id, type, amount, fuel_type, litres, price_per_litre,
		       linked_reading_id, invoice_number, vehicle_number, transaction_date, entered_by, created_at
		FROM credit_transactions WHERE creditor_id = $1 ORDER BY transaction_date, created_at`, creditorID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list credit transactions: %w", err)
	}
	defer rows.Close()

	var out []models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.StationID, &t.CreditorID, &t.Type, &t.Amount, &t.FuelType, &t.Litres,
			&t.PricePerLitre, &t.LinkedReadingID, &t.InvoiceNumber, &t.VehicleNumber, &t.TransactionDate,
			&t.EnteredBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan credit transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *Creditors) InsertSettlementLink(ctx context.Context, tx dbx.Tx, l *models.CreditSettlementLink) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_settlement_links (id, settlement_transaction_id, original_credit_transaction_id, allocated_amount, created_at)
		VALUES ($1,$2,$3,$4,now())`,
		l.ID, l.SettlementTransactionID, l.OriginalCreditTransactionID, l.AllocatedAmount)
	if err != nil {
		return fmt.Errorf("postgres: insert credit settlement link: %w", err)
	}
	return nil
}

func (c *Creditors) ListLinksForCredit(ctx context.Context, creditTransactionID idgen.ID) ([]models.CreditSettlementLink, error) {
	rows, err := c.Pool.DB.QueryContext(ctx, `
		SELECT id, settlement_transaction_id, original_credit_transaction_id, allocated_amount, created_at
		FROM credit_settlement_links WHERE original_credit_transaction_id = $1 ORDER BY created_at`, creditTransactionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlement links: %w", err)
	}
	defer rows.Close()

	var out []models.CreditSettlementLink
	for rows.Next() {
		var l models.CreditSettlementLink
		if err := rows.Scan(&l.ID, &l.SettlementTransactionID, &l.OriginalCreditTransactionID, &l.AllocatedAmount, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
