// Package transaction implements the DailyTransaction aggregation from
// §4.2: grouping a station-day's readings under a payment declaration,
// enforcing the cash/online/credit breakdown invariant (I4), and creating
// the per-allocation credit extensions.
package transaction

import (
	"context"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/audit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/credit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/locks"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/money"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

// balanceTolerance is I4's "within ±0.01" allowance for the cash+online+
// credit ≈ totalSaleValue check.
const balanceTolerance = 0.01

// ReadingRepo is the narrow view of nozzle readings this package needs.
type ReadingRepo interface {
	Get(ctx context.Context, id idgen.ID) (*models.NozzleReading, error)
	AttachToTransaction(ctx context.Context, tx dbx.Tx, readingID, transactionID idgen.ID) error
	DetachFromTransaction(ctx context.Context, tx dbx.Tx, readingID idgen.ID) error
}

// CreditorRepo resolves the station/flag fields RecordCredit's caller needs
// to validate before delegating to credit.Service.
type CreditorRepo interface {
	Get(ctx context.Context, id idgen.ID) (*models.Creditor, error)
}

// Repository persists DailyTransaction rows.
type Repository interface {
	Get(ctx context.Context, id idgen.ID) (*models.DailyTransaction, error)
	Insert(ctx context.Context, tx dbx.Tx, t *models.DailyTransaction) error
	Update(ctx context.Context, tx dbx.Tx, t *models.DailyTransaction) error
	Summarize(ctx context.Context, stationID idgen.ID, from, to time.Time) ([]models.DailyTransaction, error)
}

// Service is the daily-transaction aggregation engine.
type Service struct {
	uow       dbx.UnitOfWork
	repo      Repository
	readings  ReadingRepo
	creditors CreditorRepo
	credits   *credit.Service
	locks     *locks.Registry
	audit     *audit.Logger
	clock     clock.Clock
}

func NewService(uow dbx.UnitOfWork, repo Repository, readings ReadingRepo, creditors CreditorRepo,
	credits *credit.Service, lockRegistry *locks.Registry, auditLogger *audit.Logger, clk clock.Clock) *Service {
	return &Service{
		uow: uow, repo: repo, readings: readings, creditors: creditors,
		credits: credits, locks: lockRegistry, audit: auditLogger, clock: clk,
	}
}

// CreditAllocationInput is one line of the caller-supplied credit split.
type CreditAllocationInput struct {
	CreditorID idgen.ID
	Amount     money.Amount
}

// CreateInput is create_transaction's input (§4.2).
type CreateInput struct {
	StationID         idgen.ID
	Date              time.Time
	ReadingIDs        []idgen.ID
	PaymentBreakdown  models.PaymentBreakdown
	CreditAllocations []CreditAllocationInput
	Notes             *string
	CreatedBy         idgen.ID
}

// Create validates I4, allocates per-creditor credit, and persists a
// submitted DailyTransaction. Concurrent calls for the same (station, date)
// are serialized by the station-date mutex (§4.2 "ordering guarantee").
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.DailyTransaction, error) {
	if len(in.ReadingIDs) == 0 {
		return nil, apierr.Validationf("VALIDATION", "create_transaction requires at least one reading")
	}

	key := in.StationID.String() + "|" + in.Date.Format("2006-01-02")
	unlock, err := s.locks.StationDate.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	readings := make([]models.NozzleReading, 0, len(in.ReadingIDs))
	for _, rid := range in.ReadingIDs {
		r, err := s.readings.Get(ctx, rid)
		if err != nil {
			return nil, err
		}
		if r.StationID != in.StationID {
			return nil, apierr.Validationf("VALIDATION", "reading %s does not belong to station %s", rid, in.StationID)
		}
		if !sameDate(r.ReadingDate, in.Date) {
			return nil, apierr.Validationf("VALIDATION", "reading %s date does not match transaction date", rid)
		}
		if r.IsSample {
			return nil, apierr.Validationf("VALIDATION", "reading %s is a sample reading and cannot be aggregated", rid)
		}
		if r.TransactionID != nil {
			return nil, apierr.Conflictf("CONFLICT", "reading %s is already attached to a transaction", rid)
		}
		if r.FlowStatus == models.FlowSettled || r.FlowStatus == models.FlowCarriedForward {
			return nil, apierr.Conflictf("CONFLICT", "reading %s is already part of a settled transaction", rid)
		}
		readings = append(readings, *r)
	}

	totalLitres := volume.Zero
	totalSaleValue := money.New(0)
	for _, r := range readings {
		totalLitres = totalLitres.Add(r.LitresSold)
		totalSaleValue = totalSaleValue.Add(r.TotalAmount)
	}

	if err := validateBreakdown(in.PaymentBreakdown, totalSaleValue); err != nil {
		return nil, err
	}
	if err := validateCreditAllocations(in.CreditAllocations, in.PaymentBreakdown.Credit); err != nil {
		return nil, err
	}

	txnID := idgen.New()
	var allocations []models.CreditAllocation

	err = s.uow.WithTransaction(ctx, func(tx dbx.Tx) error {
		for _, alloc := range in.CreditAllocations {
			c, err := s.creditors.Get(ctx, alloc.CreditorID)
			if err != nil {
				return err
			}
			if c.StationID != in.StationID {
				return apierr.Validationf("VALIDATION", "creditor %s does not belong to station %s", alloc.CreditorID, in.StationID)
			}
			if _, err := s.credits.RecordCredit(ctx, tx, alloc.CreditorID, credit.CreditInput{
				StationID:       in.StationID,
				Amount:          alloc.Amount,
				TransactionDate: in.Date,
				EnteredBy:       in.CreatedBy,
			}); err != nil {
				return err
			}
			allocations = append(allocations, models.CreditAllocation{CreditorID: alloc.CreditorID, Amount: alloc.Amount})
		}

		t := &models.DailyTransaction{
			ID:                txnID,
			StationID:         in.StationID,
			Date:              in.Date,
			TotalLitres:       totalLitres,
			TotalSaleValue:    totalSaleValue,
			PaymentBreakdown:  in.PaymentBreakdown,
			CreditAllocations: allocations,
			ReadingIDs:        in.ReadingIDs,
			Status:            models.TransactionSubmitted,
			Notes:             in.Notes,
			CreatedBy:         in.CreatedBy,
			CreatedAt:         s.now(),
			UpdatedAt:         s.now(),
		}
		if err := s.repo.Insert(ctx, tx, t); err != nil {
			return err
		}
		for _, rid := range in.ReadingIDs {
			if err := s.readings.AttachToTransaction(ctx, tx, rid, txnID); err != nil {
				return err
			}
		}
		if s.audit != nil {
			if err := s.audit.Record(ctx, audit.Entry{
				UserID:      &in.CreatedBy,
				StationID:   &in.StationID,
				Action:      "transaction.create",
				EntityType:  "DailyTransaction",
				EntityID:    txnID,
				Description: "daily transaction submitted",
				Category:    models.CategoryFinance,
				Severity:    models.SeverityInfo,
				Success:     true,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, txnID)
}

// UpdateInput is update_transaction's input; allowed only while the
// transaction is draft or submitted (§4.2).
type UpdateInput struct {
	PaymentBreakdown *models.PaymentBreakdown
	Notes            *string
	UpdatedBy        idgen.ID
}

func (s *Service) Update(ctx context.Context, txnID idgen.ID, in UpdateInput) (*models.DailyTransaction, error) {
	t, err := s.repo.Get(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TransactionDraft && t.Status != models.TransactionSubmitted {
		return nil, apierr.Conflictf("CONFLICT", "transaction %s cannot be edited in status %s", txnID, t.Status)
	}
	if in.PaymentBreakdown != nil {
		if err := validateBreakdown(*in.PaymentBreakdown, t.TotalSaleValue); err != nil {
			return nil, err
		}
		t.PaymentBreakdown = *in.PaymentBreakdown
	}
	if in.Notes != nil {
		t.Notes = in.Notes
	}
	t.UpdatedAt = s.now()

	err = s.uow.WithTransaction(ctx, func(tx dbx.Tx) error {
		if err := s.repo.Update(ctx, tx, t); err != nil {
			return err
		}
		if s.audit != nil {
			return s.audit.Record(ctx, audit.Entry{
				UserID:      &in.UpdatedBy,
				StationID:   &t.StationID,
				Action:      "transaction.update",
				EntityType:  "DailyTransaction",
				EntityID:    t.ID,
				Description: "daily transaction updated",
				Category:    models.CategoryFinance,
				Severity:    models.SeverityInfo,
				Success:     true,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Cancel releases the transaction's readings and marks it cancelled;
// allowed only while draft or submitted (§4.2).
func (s *Service) Cancel(ctx context.Context, txnID idgen.ID, cancelledBy idgen.ID) error {
	t, err := s.repo.Get(ctx, txnID)
	if err != nil {
		return err
	}
	if t.Status != models.TransactionDraft && t.Status != models.TransactionSubmitted {
		return apierr.Conflictf("CONFLICT", "transaction %s cannot be cancelled in status %s", txnID, t.Status)
	}
	t.Status = models.TransactionCancelled
	t.UpdatedAt = s.now()

	return s.uow.WithTransaction(ctx, func(tx dbx.Tx) error {
		for _, rid := range t.ReadingIDs {
			if err := s.readings.DetachFromTransaction(ctx, tx, rid); err != nil {
				return err
			}
		}
		if err := s.repo.Update(ctx, tx, t); err != nil {
			return err
		}
		if s.audit != nil {
			return s.audit.Record(ctx, audit.Entry{
				UserID:      &cancelledBy,
				StationID:   &t.StationID,
				Action:      "transaction.cancel",
				EntityType:  "DailyTransaction",
				EntityID:    t.ID,
				Description: "daily transaction cancelled",
				Category:    models.CategoryFinance,
				Severity:    models.SeverityWarning,
				Success:     true,
			})
		}
		return nil
	})
}

// Summary is summarize's return shape (§4.2).
type Summary struct {
	TotalSaleValue money.Amount
	ByChannel      models.PaymentBreakdown
	Count          int
}

func (s *Service) Summarize(ctx context.Context, stationID idgen.ID, from, to time.Time) (*Summary, error) {
	rows, err := s.repo.Summarize(ctx, stationID, from, to)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}
	for _, t := range rows {
		if t.Status == models.TransactionCancelled {
			continue
		}
		sum.TotalSaleValue = sum.TotalSaleValue.Add(t.TotalSaleValue)
		sum.ByChannel.Cash = sum.ByChannel.Cash.Add(t.PaymentBreakdown.Cash)
		sum.ByChannel.Online = sum.ByChannel.Online.Add(t.PaymentBreakdown.Online)
		sum.ByChannel.Credit = sum.ByChannel.Credit.Add(t.PaymentBreakdown.Credit)
		sum.Count++
	}
	return sum, nil
}

// validateBreakdown enforces I4: cash+online+credit sums to totalSaleValue
// within ±0.01.
func validateBreakdown(b models.PaymentBreakdown, totalSaleValue money.Amount) error {
	diff := money.AbsDiff(b.Total(), totalSaleValue)
	if diff.Float64() > balanceTolerance {
		return apierr.Validationf("VALIDATION", "payment breakdown %s does not balance to total sale value %s", b.Total(), totalSaleValue)
	}
	return nil
}

// validateCreditAllocations enforces I4's second clause: credit
// allocations sum to paymentBreakdown.credit.
func validateCreditAllocations(allocations []CreditAllocationInput, declaredCredit money.Amount) error {
	sum := money.New(0)
	for _, a := range allocations {
		sum = sum.Add(a.Amount)
	}
	if money.AbsDiff(sum, declaredCredit).Float64() > balanceTolerance {
		return apierr.Validationf("VALIDATION", "credit allocations %s do not sum to declared credit %s", sum, declaredCredit)
	}
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
