package expense

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
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/money"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows []models.Expense
}

func (r *fakeRepo) Insert(_ context.Context, _ dbx.Tx, e *models.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *e)
	return nil
}

func (r *fakeRepo) ListByStationMonth(_ context.Context, stationID idgen.ID, month string) ([]models.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Expense
	for _, e := range r.rows {
		if e.StationID == stationID && e.ExpenseMonth == month {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByStationRange(_ context.Context, stationID idgen.ID, from, to time.Time) ([]models.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Expense
	for _, e := range r.rows {
		if e.StationID == stationID && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePlans struct {
	trackExpenses bool
}

func (f fakePlans) PlanForStation(_ context.Context, _ idgen.ID) (models.Plan, error) {
	return models.Plan{Name: "basic", CanTrackExpenses: f.trackExpenses}, nil
}

type noopSink struct{}

func (noopSink) Insert(_ context.Context, _ models.AuditLog) error { return nil }

func newService(t *testing.T, trackExpenses bool) (*Service, *fakeRepo) {
	t.Helper()
	today := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: today}
	lg := audit.NewLogger(noopSink{}, clk, zerolog.Nop())
	repo := &fakeRepo{}
	return NewService(repo, fakePlans{trackExpenses: trackExpenses}, lg, clk), repo
}

func TestRecordRefusedWhenPlanLacksFeature(t *testing.T) {
	svc, _ := newService(t, false)
	station := idgen.New()

	_, err := svc.Record(context.Background(), nil, RecordInput{
		StationID: station,
		Category:  "maintenance",
		Amount:    money.New(500.00),
		Date:      time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		EnteredBy: idgen.New(),
	})
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.Forbidden {
		t.Fatalf("expected forbidden when plan lacks canTrackExpenses, got %v", err)
	}
}

func TestRecordAndMonthlyTotal(t *testing.T) {
	svc, _ := newService(t, true)
	station := idgen.New()
	day := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)

	for _, amt := range []float64{500.00, 250.50} {
		if _, err := svc.Record(context.Background(), nil, RecordInput{
			StationID: station,
			Category:  "maintenance",
			Amount:    money.New(amt),
			Date:      day,
			EnteredBy: idgen.New(),
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	total, byCategory, err := svc.MonthlyTotal(context.Background(), station, "2024-06")
	if err != nil {
		t.Fatalf("MonthlyTotal: %v", err)
	}
	if total.Float64() != 750.50 {
		t.Fatalf("expected total 750.50, got %s", total)
	}
	if byCategory["maintenance"].Float64() != 750.50 {
		t.Fatalf("expected maintenance total 750.50, got %s", byCategory["maintenance"])
	}
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newService(t, true)
	_, err := svc.Record(context.Background(), nil, RecordInput{
		StationID: idgen.New(),
		Category:  "fuel",
		Amount:    money.New(0),
		Date:      time.Now(),
		EnteredBy: idgen.New(),
	})
	if err == nil {
		t.Fatalf("expected validation error for zero-amount expense")
	}
}
