package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

// Expenses persists Expense rows. Satisfies expense.Repository.
type Expenses struct{ Pool *dbx.Pool }

const expenseColumns = `
	id, station_id, category, description, amount, date, expense_month, receipt_number,
	payment_method, entered_by, created_at`

func (e *Expenses) Insert(ctx context.Context, tx dbx.Tx, ex *models.Expense) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (
			id, station_id, category, description, amount, date, expense_month, receipt_number,
			payment_method, entered_by, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())`,
		ex.ID, ex.StationID, ex.Category, ex.Description, ex.Amount, ex.Date, ex.ExpenseMonth,
		ex.ReceiptNumber, ex.PaymentMethod, ex.EnteredBy)
	if err != nil {
		return fmt.Errorf("postgres: insert expense: %w", err)
	}
	return nil
}

func (e *Expenses) ListByStationMonth(ctx context.Context, stationID idgen.ID, month string) ([]models.Expense, error) {
	rows, err := e.Pool.DB.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses WHERE station_id = $1 AND expense_month = $2 ORDER BY date`,
		stationID, month)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expenses by month: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func (e *Expenses) ListByStationRange(ctx context.Context, stationID idgen.ID, from, to time.Time) ([]models.Expense, error) {
	rows, err := e.Pool.DB.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses WHERE station_id = $1 AND date >= $2 AND date <= $3 ORDER BY date`,
		stationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expenses by range: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func scanExpenses(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]models.Expense, error) {
	var out []models.Expense
	for rows.Next() {
		var ex models.Expense
		if err := rows.Scan(&ex.ID, &ex.StationID, &ex.Category, &ex.Description, &ex.Amount, &ex.Date,
			&ex.ExpenseMonth, &ex.ReceiptNumber, &ex.PaymentMethod, &ex.EnteredBy, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan expense: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}
