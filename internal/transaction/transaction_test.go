package transaction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

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

type fakeUnitOfWork struct{}

func (fakeUnitOfWork) WithTransaction(_ context.Context, fn func(tx dbx.Tx) error) error {
	return fn(nil)
}

type fakeReadings struct {
	mu   sync.Mutex
	byID map[idgen.ID]*models.NozzleReading
}

func (r *fakeReadings) Get(_ context.Context, id idgen.ID) (*models.NozzleReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reading, ok := r.byID[id]
	if !ok {
		return nil, apierr.NotFoundf("READING_NOT_FOUND", "reading %s not found", id)
	}
	cp := *reading
	return &cp, nil
}

func (r *fakeReadings) AttachToTransaction(_ context.Context, _ dbx.Tx, readingID, transactionID idgen.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reading := r.byID[readingID]
	reading.TransactionID = &transactionID
	return nil
}

func (r *fakeReadings) DetachFromTransaction(_ context.Context, _ dbx.Tx, readingID idgen.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reading := r.byID[readingID]
	reading.TransactionID = nil
	return nil
}

type fakeCreditors struct {
	mu   sync.Mutex
	byID map[idgen.ID]*models.Creditor
}

func (r *fakeCreditors) Get(_ context.Context, id idgen.ID) (*models.Creditor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, apierr.NotFoundf("CREDITOR_NOT_FOUND", "creditor %s not found", id)
	}
	cp := *c
	return &cp, nil
}

type fakeTxnRepo struct {
	mu   sync.Mutex
	byID map[idgen.ID]*models.DailyTransaction
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{byID: map[idgen.ID]*models.DailyTransaction{}}
}

func (r *fakeTxnRepo) Get(_ context.Context, id idgen.ID) (*models.DailyTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, apierr.NotFoundf("TRANSACTION_NOT_FOUND", "transaction %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTxnRepo) Insert(_ context.Context, _ dbx.Tx, t *models.DailyTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *fakeTxnRepo) Update(_ context.Context, _ dbx.Tx, t *models.DailyTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *fakeTxnRepo) Summarize(_ context.Context, stationID idgen.ID, from, to time.Time) ([]models.DailyTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DailyTransaction
	for _, t := range r.byID {
		if t.StationID == stationID && !t.Date.Before(from) && !t.Date.After(to) {
			out = append(out, *t)
		}
	}
	return out, nil
}

// fakeCreditRepo backs a real credit.Service so credit-allocation checks
// exercise the production credit-limit guard, not a stub.
type fakeCreditRepo struct {
	mu          sync.Mutex
	creditors   map[idgen.ID]*models.Creditor
	transactions []models.CreditTransaction
}

func (r *fakeCreditRepo) GetCreditor(_ context.Context, id idgen.ID) (*models.Creditor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creditors[id]
	if !ok {
		return nil, apierr.NotFoundf("CREDITOR_NOT_FOUND", "creditor %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCreditRepo) UpdateCreditor(_ context.Context, _ dbx.Tx, c *models.Creditor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.creditors[c.ID] = &cp
	return nil
}

func (r *fakeCreditRepo) InsertTransaction(_ context.Context, _ dbx.Tx, t *models.CreditTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions = append(r.transactions, *t)
	return nil
}

func (r *fakeCreditRepo) ListTransactions(_ context.Context, creditorID idgen.ID) ([]models.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CreditTransaction
	for _, t := range r.transactions {
		if t.CreditorID == creditorID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeCreditRepo) InsertSettlementLink(_ context.Context, _ dbx.Tx, _ *models.CreditSettlementLink) error {
	return nil
}

func (r *fakeCreditRepo) ListLinksForCredit(_ context.Context, _ idgen.ID) ([]models.CreditSettlementLink, error) {
	return nil, nil
}

type noopSink struct{}

func (noopSink) Insert(_ context.Context, _ models.AuditLog) error { return nil }

type env struct {
	svc        *Service
	readings   *fakeReadings
	creditors  *fakeCreditors
	creditRepo *fakeCreditRepo
	stationID  idgen.ID
	today      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	today := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: today}
	lg := audit.NewLogger(noopSink{}, clk, zerolog.Nop())
	reg := locks.NewRegistry()

	creditRepo := &fakeCreditRepo{creditors: map[idgen.ID]*models.Creditor{}}
	creditSvc := credit.NewService(creditRepo, reg, lg, clk)

	readings := &fakeReadings{byID: map[idgen.ID]*models.NozzleReading{}}
	creditors := &fakeCreditors{byID: map[idgen.ID]*models.Creditor{}}

	return &env{
		svc:        NewService(fakeUnitOfWork{}, newFakeTxnRepo(), readings, creditors, creditSvc, reg, lg, clk),
		readings:   readings,
		creditors:  creditors,
		creditRepo: creditRepo,
		stationID:  idgen.New(),
		today:      today,
	}
}

func (e *env) addReading(litresSold volume.Litres, totalAmount money.Amount, sample bool) idgen.ID {
	id := idgen.New()
	e.readings.byID[id] = &models.NozzleReading{
		ID:           id,
		StationID:    e.stationID,
		ReadingDate:  e.today,
		LitresSold:   litresSold,
		TotalAmount:  totalAmount,
		IsSample:     sample,
		FlowStatus:   models.FlowUnsettled,
	}
	return id
}

func (e *env) addCreditor(limit money.Amount, balance money.Amount) idgen.ID {
	id := idgen.New()
	c := &models.Creditor{ID: id, StationID: e.stationID, CreditLimit: limit, CurrentBalance: balance, Active: true}
	e.creditors.byID[id] = c
	e.creditRepo.creditors[id] = c
	return id
}

func TestCreateBalancedCashOnlyTransaction(t *testing.T) {
	env := newEnv(t)
	rid := env.addReading(volume.New(50.500), money.New(5050.00), false)

	txn, err := env.svc.Create(context.Background(), CreateInput{
		StationID:        env.stationID,
		Date:             env.today,
		ReadingIDs:       []idgen.ID{rid},
		PaymentBreakdown: models.PaymentBreakdown{Cash: money.New(5050.00)},
		CreatedBy:        idgen.New(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if txn.Status != models.TransactionSubmitted {
		t.Fatalf("expected submitted, got %s", txn.Status)
	}
	if txn.TotalSaleValue.Float64() != 5050.00 {
		t.Fatalf("expected totalSaleValue 5050.00, got %s", txn.TotalSaleValue)
	}
}

func TestCreateRejectsUnbalancedBreakdown(t *testing.T) {
	env := newEnv(t)
	rid := env.addReading(volume.New(50.500), money.New(5050.00), false)

	_, err := env.svc.Create(context.Background(), CreateInput{
		StationID:        env.stationID,
		Date:             env.today,
		ReadingIDs:       []idgen.ID{rid},
		PaymentBreakdown: models.PaymentBreakdown{Cash: money.New(4000.00)},
		CreatedBy:        idgen.New(),
	})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.Validation {
		t.Fatalf("expected validation error for unbalanced breakdown, got %v", err)
	}
}

func TestCreateRejectsSampleReading(t *testing.T) {
	env := newEnv(t)
	rid := env.addReading(volume.New(10.000), money.New(1000.00), true)

	_, err := env.svc.Create(context.Background(), CreateInput{
		StationID:        env.stationID,
		Date:             env.today,
		ReadingIDs:       []idgen.ID{rid},
		PaymentBreakdown: models.PaymentBreakdown{Cash: money.New(1000.00)},
		CreatedBy:        idgen.New(),
	})
	if err == nil {
		t.Fatalf("expected error aggregating a sample reading")
	}
}

func TestCreateWithCreditAllocationEnforcesLimit(t *testing.T) {
	env := newEnv(t)
	rid := env.addReading(volume.New(50.000), money.New(5000.00), false)
	creditorID := env.addCreditor(money.New(1000.00), money.New(900.00))

	_, err := env.svc.Create(context.Background(), CreateInput{
		StationID:        env.stationID,
		Date:             env.today,
		ReadingIDs:       []idgen.ID{rid},
		PaymentBreakdown: models.PaymentBreakdown{Credit: money.New(5000.00)},
		CreditAllocations: []CreditAllocationInput{
			{CreditorID: creditorID, Amount: money.New(5000.00)},
		},
		CreatedBy: idgen.New(),
	})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.Conflict {
		t.Fatalf("expected credit-limit conflict, got %v", err)
	}
}

func TestCreateWithValidCreditAllocationSucceeds(t *testing.T) {
	env := newEnv(t)
	rid := env.addReading(volume.New(50.000), money.New(5000.00), false)
	creditorID := env.addCreditor(money.New(10000.00), money.New(0.00))

	txn, err := env.svc.Create(context.Background(), CreateInput{
		StationID:        env.stationID,
		Date:             env.today,
		ReadingIDs:       []idgen.ID{rid},
		PaymentBreakdown: models.PaymentBreakdown{Credit: money.New(5000.00)},
		CreditAllocations: []CreditAllocationInput{
			{CreditorID: creditorID, Amount: money.New(5000.00)},
		},
		CreatedBy: idgen.New(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(txn.CreditAllocations) != 1 || txn.CreditAllocations[0].Amount.Float64() != 5000.00 {
		t.Fatalf("expected one credit allocation of 5000.00, got %+v", txn.CreditAllocations)
	}
	updated, err := env.creditRepo.GetCreditor(context.Background(), creditorID)
	if err != nil {
		t.Fatalf("GetCreditor: %v", err)
	}
	if updated.CurrentBalance.Float64() != 5000.00 {
		t.Fatalf("expected creditor balance 5000.00 after allocation, got %s", updated.CurrentBalance)
	}
}

func TestCancelOnlyFromDraftOrSubmitted(t *testing.T) {
	env := newEnv(t)
	rid := env.addReading(volume.New(20.000), money.New(2000.00), false)

	txn, err := env.svc.Create(context.Background(), CreateInput{
		StationID:        env.stationID,
		Date:             env.today,
		ReadingIDs:       []idgen.ID{rid},
		PaymentBreakdown: models.PaymentBreakdown{Cash: money.New(2000.00)},
		CreatedBy:        idgen.New(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := env.svc.Cancel(context.Background(), txn.ID, idgen.New()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := env.svc.Cancel(context.Background(), txn.ID, idgen.New()); err == nil {
		t.Fatalf("expected error cancelling an already-cancelled transaction")
	}
}
