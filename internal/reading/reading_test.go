package reading_test

import (
	"context"
	"testing"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/audit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authz"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/locks"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/money"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/reading"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
	"github.com/rs/zerolog"
)

// --- fakes ------------------------------------------------------------

// fakeUnitOfWork runs fn directly with a nil Tx; every fake repository
// below ignores its Tx argument, so no real database is needed.
type fakeUnitOfWork struct{}

func (fakeUnitOfWork) WithTransaction(ctx context.Context, fn func(tx dbx.Tx) error) error {
	return fn(nil)
}

type fakeNozzles struct {
	byID map[idgen.ID]*models.Nozzle
}

func (f *fakeNozzles) Get(ctx context.Context, id idgen.ID) (*models.Nozzle, error) {
	n, ok := f.byID[id]
	if !ok {
		return nil, apierr.ErrNozzleNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNozzles) UpdateCache(ctx context.Context, tx dbx.Tx, nozzleID idgen.ID, lastReading volume.Litres, lastReadingDate time.Time) error {
	n := f.byID[nozzleID]
	n.LastReading = &lastReading
	n.LastReadingDate = &lastReadingDate
	return nil
}

type fakePumps struct{ byID map[idgen.ID]*models.Pump }

func (f *fakePumps) Get(ctx context.Context, id idgen.ID) (*models.Pump, error) {
	p := f.byID[id]
	cp := *p
	return &cp, nil
}

type fakeStations struct{ byID map[idgen.ID]*models.Station }

func (f *fakeStations) Get(ctx context.Context, id idgen.ID) (*models.Station, error) {
	st := f.byID[id]
	cp := *st
	return &cp, nil
}

type fakePrices struct{ price money.Amount }

func (f *fakePrices) EffectivePrice(ctx context.Context, stationID idgen.ID, fuelType models.FuelType, onDate time.Time) (*models.FuelPrice, error) {
	if f.price.IsZero() {
		return nil, nil
	}
	return &models.FuelPrice{StationID: stationID, FuelType: fuelType, SellingPrice: f.price, EffectiveFrom: onDate}, nil
}

type fakeReadingRepo struct {
	rows map[idgen.ID][]models.NozzleReading // keyed by nozzle
	byID map[idgen.ID]*models.NozzleReading
}

func newFakeReadingRepo() *fakeReadingRepo {
	return &fakeReadingRepo{rows: map[idgen.ID][]models.NozzleReading{}, byID: map[idgen.ID]*models.NozzleReading{}}
}

func (f *fakeReadingRepo) FindPrevious(ctx context.Context, nozzleID idgen.ID, asOf time.Time) (*models.NozzleReading, error) {
	var best *models.NozzleReading
	for i := range f.rows[nozzleID] {
		r := f.rows[nozzleID][i]
		if r.ReadingDate.After(asOf) {
			continue
		}
		if best == nil || r.ReadingDate.After(best.ReadingDate) ||
			(r.ReadingDate.Equal(best.ReadingDate) && r.CreatedAt.After(best.CreatedAt)) {
			cp := r
			best = &cp
		}
	}
	return best, nil
}

func (f *fakeReadingRepo) FindDuplicate(ctx context.Context, nozzleID idgen.ID, readingDate time.Time, value volume.Litres) (*models.NozzleReading, error) {
	for _, r := range f.rows[nozzleID] {
		if r.ReadingDate.Equal(readingDate) && r.ReadingValue.Cmp(value) == 0 {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeReadingRepo) Insert(ctx context.Context, tx dbx.Tx, r *models.NozzleReading) error {
	f.rows[r.NozzleID] = append(f.rows[r.NozzleID], *r)
	f.byID[r.ID] = r
	return nil
}

func (f *fakeReadingRepo) UpdateFlowStatus(ctx context.Context, tx dbx.Tx, readingID idgen.ID, status models.FlowStatus) error {
	f.byID[readingID].FlowStatus = status
	return nil
}

func (f *fakeReadingRepo) Reject(ctx context.Context, tx dbx.Tx, readingID idgen.ID, reason string) error {
	r := f.byID[readingID]
	r.ApprovalStatus = models.ApprovalRejected
	r.RejectionReason = &reason
	return nil
}

func (f *fakeReadingRepo) Get(ctx context.Context, id idgen.ID) (*models.NozzleReading, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, apierr.NotFoundf("NOT_FOUND", "reading not found")
	}
	cp := *r
	return &cp, nil
}

type fakeTanks struct{}

func (fakeTanks) GetByStationFuel(ctx context.Context, stationID idgen.ID, fuelType models.FuelType) (*models.Tank, error) {
	return nil, nil
}
func (fakeTanks) ApplySale(ctx context.Context, tx dbx.Tx, tankID idgen.ID, litres volume.Litres) error {
	return nil
}
func (fakeTanks) ReverseSale(ctx context.Context, tx dbx.Tx, tankID idgen.ID, litres volume.Litres) error {
	return nil
}

type fakePlans struct{ plan models.Plan }

func (f *fakePlans) PlanForStation(ctx context.Context, stationID idgen.ID) (models.Plan, error) {
	return f.plan, nil
}

type noopSink struct{}

func (noopSink) Insert(ctx context.Context, row models.AuditLog) error { return nil }

// --- harness ------------------------------------------------------------

// env wires one station/pump/nozzle topology per test, matching the shape
// the real repositories would resolve via foreign keys.
type env struct {
	svc      *reading.Service
	nozzles  *fakeNozzles
	readings *fakeReadingRepo
	caller   authz.Caller
	nozzleID idgen.ID
}

func newEnv(t *testing.T, sellingPrice float64) *env {
	t.Helper()
	ownerID := idgen.New()
	stationID := idgen.New()
	pumpID := idgen.New()
	nozzleID := idgen.New()

	pumps := &fakePumps{byID: map[idgen.ID]*models.Pump{pumpID: {ID: pumpID, StationID: stationID}}}
	stations := &fakeStations{byID: map[idgen.ID]*models.Station{stationID: {ID: stationID, OwnerID: ownerID}}}
	nozzles := &fakeNozzles{byID: map[idgen.ID]*models.Nozzle{
		nozzleID: {ID: nozzleID, PumpID: pumpID, FuelType: models.FuelPetrol},
	}}
	readings := newFakeReadingRepo()

	clk := clock.Fixed{At: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)}
	auditLogger := audit.NewLogger(noopSink{}, clk, zerolog.Nop())

	svc := reading.NewService(
		fakeUnitOfWork{},
		readings, nozzles, pumps, stations,
		&fakePrices{price: money.New(sellingPrice)},
		fakeTanks{},
		&fakePlans{plan: models.Plan{BackdatedDays: 30}},
		locks.NewRegistry(), auditLogger, clk,
	)

	return &env{
		svc: svc, nozzles: nozzles, readings: readings,
		caller:   authz.Caller{UserID: idgen.New(), Role: models.RoleManager, StationID: &stationID, OwnerID: &ownerID},
		nozzleID: nozzleID,
	}
}

// --- tests ----------------------------------------------------------------

// TestSingleSale reproduces §8 scenario S1.
func TestSingleSale(t *testing.T) {
	e := newEnv(t, 100.00)
	ctx := context.Background()

	r1, err := e.svc.Create(ctx, reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(1000.000),
	})
	if err != nil {
		t.Fatalf("R1 failed: %v", err)
	}

	r2, err := e.svc.Create(ctx, reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(1050.500),
	})
	if err != nil {
		t.Fatalf("R2 failed: %v", err)
	}

	if got := r2.LitresSold.Float64(); got != 50.5 {
		t.Fatalf("expected litresSold 50.500, got %v", got)
	}
	if got := r2.PricePerLitre.Float64(); got != 100.00 {
		t.Fatalf("expected pricePerLitre 100.00, got %v", got)
	}
	if got := r2.TotalAmount.Float64(); got != 5050.00 {
		t.Fatalf("expected totalAmount 5050.00, got %v", got)
	}
	if r2.PreviousReading == nil || *r2.PreviousReading != r1.ID {
		t.Fatalf("expected previousReading to reference R1")
	}
}

// TestFirstReadingOfNozzle reproduces §8 scenario S2.
func TestFirstReadingOfNozzle(t *testing.T) {
	e := newEnv(t, 100.00)
	r, err := e.svc.Create(context.Background(), reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(500.000),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if r.PreviousReading != nil {
		t.Fatalf("expected nil previousReading for a nozzle with no history")
	}
	if !r.LitresSold.IsZero() || !r.TotalAmount.IsZero() {
		t.Fatalf("expected zero litresSold/totalAmount on the first reading, got %v/%v", r.LitresSold, r.TotalAmount)
	}
}

// TestMeterReset reproduces §8 scenario S3 and invariant I2.
func TestMeterReset(t *testing.T) {
	e := newEnv(t, 100.00)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(100.000),
	})
	if err != nil {
		t.Fatalf("first reading failed: %v", err)
	}

	r2, err := e.svc.Create(ctx, reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(50.000),
	})
	if err != nil {
		t.Fatalf("reset reading failed: %v", err)
	}
	if !r2.LitresSold.IsZero() {
		t.Fatalf("expected litresSold 0 on a meter reset, got %v", r2.LitresSold)
	}
	found := false
	for _, w := range r2.Warnings {
		if w == models.WarningMeterReset {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a meter_reset warning to be attached")
	}

	r3, err := e.svc.Create(ctx, reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(70.000),
	})
	if err != nil {
		t.Fatalf("third reading failed: %v", err)
	}
	if got := r3.LitresSold.Float64(); got != 20 {
		t.Fatalf("expected later readings to use the reset value as baseline (20), got %v", got)
	}
}

// TestIdempotency covers property 9 in §8: identical inputs
// return the same reading without a second row.
func TestIdempotency(t *testing.T) {
	e := newEnv(t, 100.00)
	in := reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(200.000),
	}
	ctx := context.Background()
	r1, err := e.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	r2, err := e.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if r1.ID != r2.ID {
		t.Fatalf("expected the same reading id on a duplicate submission")
	}
	if len(e.readings.rows[e.nozzleID]) != 1 {
		t.Fatalf("expected exactly one persisted row, got %d", len(e.readings.rows[e.nozzleID]))
	}
}

// TestIsInitialReadingForcedFalse covers I9: an attempt to set
// isInitialReading=true on a sales reading is rewritten to false.
func TestIsInitialReadingForcedFalse(t *testing.T) {
	e := newEnv(t, 100.00)
	r, err := e.svc.Create(context.Background(), reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(10.000),
		IsInitialReading: true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if r.IsInitialReading {
		t.Fatalf("expected isInitialReading to be forced false")
	}
}

// TestNoPriceRefused covers the NO_PRICE error path.
func TestNoPriceRefused(t *testing.T) {
	e := newEnv(t, 0) // fakePrices treats a zero price as "no price configured"
	_, err := e.svc.Create(context.Background(), reading.CreateInput{
		Caller: e.caller, NozzleID: e.nozzleID,
		ReadingDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), ReadingValue: volume.New(10.000),
	})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.NoPrice {
		t.Fatalf("expected NO_PRICE, got %v", err)
	}
}
