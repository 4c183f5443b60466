package shift

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/audit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/handover"
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

type fakeShiftRepo struct {
	mu   sync.Mutex
	byID map[idgen.ID]*models.Shift
}

func newFakeShiftRepo() *fakeShiftRepo {
	return &fakeShiftRepo{byID: map[idgen.ID]*models.Shift{}}
}

func (r *fakeShiftRepo) Get(_ context.Context, id idgen.ID) (*models.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, apierr.NotFoundf("SHIFT_NOT_FOUND", "shift %s not found", id)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeShiftRepo) ActiveForEmployee(_ context.Context, employeeID idgen.ID) (*models.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.EmployeeID == employeeID && s.Status == models.ShiftActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeShiftRepo) Insert(_ context.Context, _ dbx.Tx, s *models.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

func (r *fakeShiftRepo) Update(_ context.Context, _ dbx.Tx, s *models.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

type fakeAggregator struct {
	aggregates []ReadingAggregate
}

func (f fakeAggregator) AggregateForShift(_ context.Context, _, _ idgen.ID, _, _ time.Time) ([]ReadingAggregate, error) {
	return f.aggregates, nil
}

type fakeHandoverRepo struct {
	mu   sync.Mutex
	byID map[idgen.ID]*models.CashHandover
}

func newFakeHandoverRepo() *fakeHandoverRepo {
	return &fakeHandoverRepo{byID: map[idgen.ID]*models.CashHandover{}}
}

func (r *fakeHandoverRepo) Get(_ context.Context, id idgen.ID) (*models.CashHandover, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[id]
	if !ok {
		return nil, apierr.NotFoundf("HANDOVER_NOT_FOUND", "handover %s not found", id)
	}
	cp := *h
	return &cp, nil
}

func (r *fakeHandoverRepo) Insert(_ context.Context, _ dbx.Tx, h *models.CashHandover) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *h
	r.byID[h.ID] = &cp
	return nil
}

func (r *fakeHandoverRepo) Update(_ context.Context, _ dbx.Tx, h *models.CashHandover) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *h
	r.byID[h.ID] = &cp
	return nil
}

func (r *fakeHandoverRepo) LatestConfirmedOfType(_ context.Context, _ idgen.ID, _ models.HandoverType, _ *idgen.ID) (*models.CashHandover, error) {
	return nil, nil
}

func (r *fakeHandoverRepo) PendingForUser(_ context.Context, _ idgen.ID) ([]models.CashHandover, error) {
	return nil, nil
}

func (r *fakeHandoverRepo) ListByStationDateRange(_ context.Context, _ idgen.ID, _, _ time.Time) ([]models.CashHandover, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CashHandover
	for _, h := range r.byID {
		out = append(out, *h)
	}
	return out, nil
}

type fakeShifts struct{ manager idgen.ID }

func (f fakeShifts) StationManager(_ context.Context, _ idgen.ID) (*idgen.ID, error) {
	m := f.manager
	return &m, nil
}

type noopSink struct{}

func (noopSink) Insert(_ context.Context, _ models.AuditLog) error { return nil }

func newEnv(t *testing.T, aggregates []ReadingAggregate) (*Service, *fakeShiftRepo, *fakeHandoverRepo, idgen.ID) {
	t.Helper()
	today := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: today}
	lg := audit.NewLogger(noopSink{}, clk, zerolog.Nop())
	manager := idgen.New()

	shiftRepo := newFakeShiftRepo()
	handoverRepo := newFakeHandoverRepo()
	handoverSvc := handover.NewService(handoverRepo, fakeShifts{manager: manager}, locks.NewRegistry(), lg, clk)
	svc := NewService(fakeUnitOfWork{}, shiftRepo, fakeAggregator{aggregates: aggregates}, handoverSvc, lg, clk)
	return svc, shiftRepo, handoverRepo, manager
}

func TestStartRefusesSecondActiveShift(t *testing.T) {
	svc, _, _, _ := newEnv(t, nil)
	employee := idgen.New()
	station := idgen.New()

	if _, err := svc.Start(context.Background(), StartInput{EmployeeID: employee, StationID: station}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := svc.Start(context.Background(), StartInput{EmployeeID: employee, StationID: station})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.Conflict {
		t.Fatalf("expected SHIFT_ACTIVE conflict, got %v", err)
	}
}

func TestEndAggregatesAndSeedsHandover(t *testing.T) {
	aggregates := []ReadingAggregate{
		{CashAmount: money.New(3000.00), TotalAmount: money.New(5000.00), LitresSold: volume.New(50.0)},
		{CashAmount: money.New(1500.00), TotalAmount: money.New(2500.00), LitresSold: volume.New(25.0)},
	}
	svc, shiftRepo, handoverRepo, _ := newEnv(t, aggregates)
	employee := idgen.New()
	station := idgen.New()

	started, err := svc.Start(context.Background(), StartInput{EmployeeID: employee, StationID: station})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	cash := money.New(4500.00)
	ended, err := svc.End(context.Background(), started.ID, EndInput{CashCollected: &cash})
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.Status != models.ShiftEnded {
		t.Fatalf("expected ended, got %s", ended.Status)
	}
	if ended.ExpectedCash.Float64() != 4500.00 {
		t.Fatalf("expected expectedCash 4500.00, got %s", ended.ExpectedCash)
	}
	if ended.CashDifference.Float64() != 0.00 {
		t.Fatalf("expected zero cash difference, got %s", ended.CashDifference)
	}
	if ended.TotalSalesAmount.Float64() != 7500.00 {
		t.Fatalf("expected totalSalesAmount 7500.00, got %s", ended.TotalSalesAmount)
	}
	if ended.ReadingsCount != 2 {
		t.Fatalf("expected readingsCount 2, got %d", ended.ReadingsCount)
	}

	stored, err := shiftRepo.Get(context.Background(), started.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != models.ShiftEnded {
		t.Fatalf("expected persisted shift to be ended")
	}

	deposits, err := handoverRepo.ListByStationDateRange(context.Background(), station, time.Time{}, time.Now().UTC().AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("ListByStationDateRange: %v", err)
	}
	if len(deposits) != 1 || deposits[0].Type != models.HandoverShiftCollection {
		t.Fatalf("expected one shift_collection handover seeded, got %+v", deposits)
	}
}

func TestCancelDoesNotRecomputeAggregates(t *testing.T) {
	svc, shiftRepo, _, _ := newEnv(t, []ReadingAggregate{{CashAmount: money.New(100), TotalAmount: money.New(100), LitresSold: volume.New(1)}})
	employee := idgen.New()
	station := idgen.New()

	started, err := svc.Start(context.Background(), StartInput{EmployeeID: employee, StationID: station})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Cancel(context.Background(), started.ID, employee); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	stored, err := shiftRepo.Get(context.Background(), started.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != models.ShiftCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}
	if !stored.ExpectedCash.IsZero() {
		t.Fatalf("expected aggregates untouched by cancel, got expectedCash=%s", stored.ExpectedCash)
	}
}
