// Package credit implements the deferred-payment ledger from §4.4: balance
// maintenance (I5), FIFO partial settlement allocation, aging buckets, and
// the credit-limit guard.
package credit

import (
	"context"
	"sort"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/audit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/locks"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/money"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

// Repository persists Creditor, CreditTransaction and CreditSettlementLink rows.
type Repository interface {
	GetCreditor(ctx context.Context, id idgen.ID) (*models.Creditor, error)
	UpdateCreditor(ctx context.Context, tx dbx.Tx, c *models.Creditor) error

	InsertTransaction(ctx context.Context, tx dbx.Tx, t *models.CreditTransaction) error
	ListTransactions(ctx context.Context, creditorID idgen.ID) ([]models.CreditTransaction, error)

	InsertSettlementLink(ctx context.Context, tx dbx.Tx, l *models.CreditSettlementLink) error
	ListLinksForCredit(ctx context.Context, creditTransactionID idgen.ID) ([]models.CreditSettlementLink, error)
}

// Service is the credit ledger engine.
type Service struct {
	repo  Repository
	locks *locks.Registry
	audit *audit.Logger
	clock clock.Clock
}

func NewService(repo Repository, lockRegistry *locks.Registry, auditLogger *audit.Logger, clk clock.Clock) *Service {
	return &Service{repo: repo, locks: lockRegistry, audit: auditLogger, clock: clk}
}

// CreditInput describes a new credit (deferred-payment sale) extension.
type CreditInput struct {
	StationID       idgen.ID
	Amount          money.Amount
	FuelType        *models.FuelType
	Litres          *volume.Litres
	PricePerLitre   *money.Amount
	InvoiceNumber   string
	VehicleNumber   string
	TransactionDate time.Time
	EnteredBy       idgen.ID
	LinkedReadingID *idgen.ID
}

// RecordCredit extends credit to a creditor, enforcing the credit-limit
// guard (§4.4: "refused when currentBalance + amount > creditLimit ... OR
// creditor.isFlagged").
func (s *Service) RecordCredit(ctx context.Context, tx dbx.Tx, creditorID idgen.ID, in CreditInput) (*models.CreditTransaction, error) {
	unlock, err := s.locks.Creditor.Lock(ctx, creditorID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.repo.GetCreditor(ctx, creditorID)
	if err != nil {
		return nil, err
	}
	if c.Flagged {
		return nil, apierr.Conflictf("CREDIT_LIMIT_EXCEEDED", "creditor %s is flagged", c.DisplayName)
	}
	newBalance := c.CurrentBalance.Add(in.Amount)
	if c.CreditLimit.IsPositive() && newBalance.GreaterThan(c.CreditLimit) {
		return nil, apierr.Conflictf("CREDIT_LIMIT_EXCEEDED", "credit of %s would exceed limit %s for creditor %s", in.Amount, c.CreditLimit, c.DisplayName)
	}

	txn := &models.CreditTransaction{
		ID:              idgen.New(),
		StationID:       in.StationID,
		CreditorID:      creditorID,
		Type:            models.CreditTxCredit,
		Amount:          in.Amount,
		FuelType:        in.FuelType,
		Litres:          in.Litres,
		PricePerLitre:   in.PricePerLitre,
		InvoiceNumber:   in.InvoiceNumber,
		VehicleNumber:   in.VehicleNumber,
		TransactionDate: in.TransactionDate,
		LinkedReadingID: in.LinkedReadingID,
		EnteredBy:       in.EnteredBy,
		CreatedAt:       s.now(),
	}
	if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	c.CurrentBalance = newBalance
	c.LastTransactionDate = &in.TransactionDate
	if err := s.recomputeAging(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCreditor(ctx, tx, c); err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			StationID:   &in.StationID,
			Action:      "credit.transaction.create",
			EntityType:  "CreditTransaction",
			EntityID:    txn.ID,
			Description: "credit extended",
			Category:    models.CategoryFinance,
			Severity:    models.SeverityInfo,
			Success:     true,
		})
	}
	return txn, nil
}

// LinkAllocation is a caller-supplied (creditTransactionID, amount) pair for
// a settlement; when absent, RecordSettlement auto-allocates FIFO.
type LinkAllocation struct {
	CreditTransactionID idgen.ID
	Amount              money.Amount
}

// SettlementInput describes a payment against a creditor's balance.
type SettlementInput struct {
	StationID       idgen.ID
	Amount          money.Amount
	TransactionDate time.Time
	EnteredBy       idgen.ID
	InvoiceNumber   string
	Links           []LinkAllocation // optional explicit allocation
}

// RecordSettlement applies a payment, allocating it across outstanding
// credit invoices FIFO (oldest transactionDate, then createdAt) unless the
// caller supplies explicit links (§4.4).
func (s *Service) RecordSettlement(ctx context.Context, tx dbx.Tx, creditorID idgen.ID, in SettlementInput) (*models.CreditTransaction, error) {
	unlock, err := s.locks.Creditor.Lock(ctx, creditorID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.repo.GetCreditor(ctx, creditorID)
	if err != nil {
		return nil, err
	}

	txn := &models.CreditTransaction{
		ID:              idgen.New(),
		StationID:       in.StationID,
		CreditorID:      creditorID,
		Type:            models.CreditTxSettlement,
		Amount:          in.Amount,
		InvoiceNumber:   in.InvoiceNumber,
		TransactionDate: in.TransactionDate,
		EnteredBy:       in.EnteredBy,
		CreatedAt:       s.now(),
	}
	if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := s.allocate(ctx, tx, creditorID, txn, in.Links); err != nil {
		return nil, err
	}

	c.CurrentBalance = c.CurrentBalance.Sub(in.Amount)
	c.LastPaymentDate = &in.TransactionDate
	if err := s.recomputeAging(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCreditor(ctx, tx, c); err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			StationID:   &in.StationID,
			Action:      "credit.transaction.settle",
			EntityType:  "CreditTransaction",
			EntityID:    txn.ID,
			Description: "settlement recorded",
			Category:    models.CategoryFinance,
			Severity:    models.SeverityInfo,
			Success:     true,
		})
	}
	return txn, nil
}

// allocate links a settlement to outstanding credits, FIFO by default.
func (s *Service) allocate(ctx context.Context, tx dbx.Tx, creditorID idgen.ID, settlement *models.CreditTransaction, explicit []LinkAllocation) error {
	if len(explicit) > 0 {
		for _, l := range explicit {
			link := &models.CreditSettlementLink{
				ID:                          idgen.New(),
				SettlementTransactionID:     settlement.ID,
				OriginalCreditTransactionID: l.CreditTransactionID,
				AllocatedAmount:             l.Amount,
				CreatedAt:                   s.now(),
			}
			if err := s.repo.InsertSettlementLink(ctx, tx, link); err != nil {
				return err
			}
		}
		return nil
	}

	outstanding, err := s.outstandingCredits(ctx, creditorID)
	if err != nil {
		return err
	}
	remaining := settlement.Amount
	for _, oc := range outstanding {
		if remaining.IsZero() || !remaining.IsPositive() {
			break
		}
		unpaid := oc.remaining
		if unpaid.IsZero() || !unpaid.IsPositive() {
			continue
		}
		allocation := unpaid
		if remaining.LessThan(unpaid) {
			allocation = remaining
		}
		link := &models.CreditSettlementLink{
			ID:                          idgen.New(),
			SettlementTransactionID:     settlement.ID,
			OriginalCreditTransactionID: oc.txn.ID,
			AllocatedAmount:             allocation,
			CreatedAt:                   s.now(),
		}
		if err := s.repo.InsertSettlementLink(ctx, tx, link); err != nil {
			return err
		}
		remaining = remaining.Sub(allocation)
	}
	// Any residual beyond outstanding credit remains unallocated settlement
	// credit on the creditor (§4.4); nothing further to link.
	return nil
}

type outstandingCredit struct {
	txn       models.CreditTransaction
	remaining money.Amount
}

// outstandingCredits returns credit-type transactions with unallocated
// balance > 0, ordered oldest-first by transactionDate then createdAt.
func (s *Service) outstandingCredits(ctx context.Context, creditorID idgen.ID) ([]outstandingCredit, error) {
	all, err := s.repo.ListTransactions(ctx, creditorID)
	if err != nil {
		return nil, err
	}
	var credits []models.CreditTransaction
	for _, t := range all {
		if t.Type == models.CreditTxCredit {
			credits = append(credits, t)
		}
	}
	sort.Slice(credits, func(i, j int) bool {
		if !credits[i].TransactionDate.Equal(credits[j].TransactionDate) {
			return credits[i].TransactionDate.Before(credits[j].TransactionDate)
		}
		return credits[i].CreatedAt.Before(credits[j].CreatedAt)
	})

	out := make([]outstandingCredit, 0, len(credits))
	for _, c := range credits {
		links, err := s.repo.ListLinksForCredit(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		allocated := money.Zero
		for _, l := range links {
			allocated = allocated.Add(l.AllocatedAmount)
		}
		remaining := c.Amount.Sub(allocated)
		if remaining.IsPositive() {
			out = append(out, outstandingCredit{txn: c, remaining: remaining})
		}
	}
	return out, nil
}

// recomputeAging implements §4.4's bucket algorithm: exact per-invoice
// remaining amounts when settlement links exist, else a proportional
// scaling of raw bucket sums by currentBalance/Σcredit amounts.
func (s *Service) recomputeAging(ctx context.Context, tx dbx.Tx, c *models.Creditor) error {
	outstanding, err := s.outstandingCredits(ctx, c.ID)
	if err != nil {
		return err
	}

	today := s.today()
	buckets := map[models.AgingBucket]money.Amount{
		models.Aging0To30:    money.Zero,
		models.Aging31To60:   money.Zero,
		models.Aging61To90:   money.Zero,
		models.AgingOver90:   money.Zero,
	}
	rawBuckets := map[models.AgingBucket]money.Amount{
		models.Aging0To30:  money.Zero,
		models.Aging31To60: money.Zero,
		models.Aging61To90: money.Zero,
		models.AgingOver90: money.Zero,
	}

	hasAnyLink := false
	rawTotal := money.Zero
	for _, oc := range outstanding {
		bucket := bucketFor(today, oc.txn.TransactionDate)
		rawBuckets[bucket] = rawBuckets[bucket].Add(oc.txn.Amount)
		rawTotal = rawTotal.Add(oc.txn.Amount)

		links, lerr := s.repo.ListLinksForCredit(ctx, oc.txn.ID)
		if lerr != nil {
			return lerr
		}
		if len(links) > 0 {
			hasAnyLink = true
		}
		buckets[bucket] = buckets[bucket].Add(oc.remaining)
	}

	if hasAnyLink {
		c.Aging0To30 = buckets[models.Aging0To30]
		c.Aging31To60 = buckets[models.Aging31To60]
		c.Aging61To90 = buckets[models.Aging61To90]
		c.AgingOver90 = buckets[models.AgingOver90]
		return nil
	}

	if rawTotal.IsZero() {
		c.Aging0To30 = money.Zero
		c.Aging31To60 = money.Zero
		c.Aging61To90 = money.Zero
		c.AgingOver90 = money.Zero
		return nil
	}
	scale := c.CurrentBalance.Float64() / rawTotal.Float64()
	c.Aging0To30 = money.New(rawBuckets[models.Aging0To30].Float64() * scale)
	c.Aging31To60 = money.New(rawBuckets[models.Aging31To60].Float64() * scale)
	c.Aging61To90 = money.New(rawBuckets[models.Aging61To90].Float64() * scale)
	c.AgingOver90 = money.New(rawBuckets[models.AgingOver90].Float64() * scale)
	return nil
}

func bucketFor(today, transactionDate time.Time) models.AgingBucket {
	days := int(today.Sub(transactionDate).Hours() / 24)
	switch {
	case days <= 30:
		return models.Aging0To30
	case days <= 60:
		return models.Aging31To60
	case days <= 90:
		return models.Aging61To90
	default:
		return models.AgingOver90
	}
}

// IsOverdue implements the overdue rule: currentBalance > 0 AND
// today - lastTransactionDate > creditPeriodDays (§4.4).
func IsOverdue(c models.Creditor, today time.Time) bool {
	if !c.CurrentBalance.IsPositive() || c.LastTransactionDate == nil {
		return false
	}
	days := int(today.Sub(*c.LastTransactionDate).Hours() / 24)
	return days > c.CreditPeriodDays
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func (s *Service) today() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Today()
}
