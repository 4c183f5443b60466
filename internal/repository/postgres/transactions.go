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
)

// Transactions persists DailyTransaction rows. Satisfies transaction.Repository,
// dashboard.TransactionRepo.
type Transactions struct{ Pool *dbx.Pool }

const transactionColumns = `
	id, station_id, date, total_litres, total_sale_value, payment_cash, payment_online,
	payment_credit, reading_ids, status, settlement_id, notes, created_by, created_at, updated_at`

func (t *Transactions) Get(ctx context.Context, id idgen.ID) (*models.DailyTransaction, error) {
	row := t.Pool.DB.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM daily_transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (t *Transactions) Insert(ctx context.Context, tx dbx.Tx, dt *models.DailyTransaction) error {
	readingIDs := idArray(dt.ReadingIDs)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO daily_transactions (
			id, station_id, date, total_litres, total_sale_value, payment_cash, payment_online,
			payment_credit, reading_ids, status, notes, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())`,
		dt.ID, dt.StationID, dt.Date, dt.TotalLitres, dt.TotalSaleValue, dt.PaymentBreakdown.Cash,
		dt.PaymentBreakdown.Online, dt.PaymentBreakdown.Credit, readingIDs, dt.Status, dt.Notes, dt.CreatedBy)
	if err != nil {
		return fmt.Errorf("postgres: insert transaction: %w", err)
	}
	return t.insertCreditAllocations(ctx, tx, dt)
}

func (t *Transactions) insertCreditAllocations(ctx context.Context, tx dbx.Tx, dt *models.DailyTransaction) error {
	for _, a := range dt.CreditAllocations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_transaction_credit_allocations (transaction_id, creditor_id, amount)
			VALUES ($1,$2,$3)`, dt.ID, a.CreditorID, a.Amount)
		if err != nil {
			return fmt.Errorf("postgres: insert credit allocation: %w", err)
		}
	}
	return nil
}

func (t *Transactions) Update(ctx context.Context, tx dbx.Tx, dt *models.DailyTransaction) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE daily_transactions
		SET payment_cash = $1, payment_online = $2, payment_credit = $3, status = $4, notes = $5, updated_at = now()
		WHERE id = $6`,
		dt.PaymentBreakdown.Cash, dt.PaymentBreakdown.Online, dt.PaymentBreakdown.Credit, dt.Status, dt.Notes, dt.ID)
	if err != nil {
		return fmt.Errorf("postgres: update transaction: %w", err)
	}
	return nil
}

func (t *Transactions) Summarize(ctx context.Context, stationID idgen.ID, from, to time.Time) ([]models.DailyTransaction, error) {
	rows, err := t.Pool.DB.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM daily_transactions
		WHERE station_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`, stationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: summarize transactions: %w", err)
	}
	defer rows.Close()

	var out []models.DailyTransaction
	for rows.Next() {
		dt, err := scanTransactionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		out = append(out, *dt)
	}
	return out, rows.Err()
}

func scanTransaction(row *sql.Row) (*models.DailyTransaction, error) {
	dt, err := scanTransactionRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get transaction: %w", err)
	}
	return dt, nil
}

func scanTransactionRows(r rowScanner) (*models.DailyTransaction, error) {
	dt := &models.DailyTransaction{}
	var readingIDs pq.StringArray
	err := r.Scan(&dt.ID, &dt.StationID, &dt.Date, &dt.TotalLitres, &dt.TotalSaleValue,
		&dt.PaymentBreakdown.Cash, &dt.PaymentBreakdown.Online, &dt.PaymentBreakdown.Credit,
		&readingIDs, &dt.Status, &dt.SettlementID, &dt.Notes, &dt.CreatedBy, &dt.CreatedAt, &dt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, s := range readingIDs {
		id, perr := idgen.Parse(s)
		if perr != nil {
			return nil, fmt.Errorf("postgres: parse reading id: %w", perr)
		}
		dt.ReadingIDs = append(dt.ReadingIDs, id)
	}
	return dt, nil
}

func idArray(ids []idgen.ID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
