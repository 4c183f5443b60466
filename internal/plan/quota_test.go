package plan_test

import (
	"context"
	"testing"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/plan"
)

type fakeCounters struct {
	values map[string]int
}

func newFakeCounters() *fakeCounters { return &fakeCounters{values: map[string]int{}} }

func key(ownerID idgen.ID, kind plan.CounterKind, month string) string {
	return ownerID.String() + "|" + string(kind) + "|" + month
}

func (f *fakeCounters) Increment(ctx context.Context, ownerID idgen.ID, kind plan.CounterKind, month string) (int, error) {
	k := key(ownerID, kind, month)
	f.values[k]++
	return f.values[k], nil
}

func (f *fakeCounters) Current(ctx context.Context, ownerID idgen.ID, kind plan.CounterKind, month string) (int, error) {
	return f.values[key(ownerID, kind, month)], nil
}

type fakeResources struct {
	counts map[plan.Resource]int
}

func (f *fakeResources) Count(ctx context.Context, ownerID idgen.ID, r plan.Resource) (int, error) {
	return f.counts[r], nil
}

func TestResourceCeilingRefusesAtLimit(t *testing.T) {
	eng := plan.NewEngine(newFakeCounters(), &fakeResources{counts: map[plan.Resource]int{plan.ResourceStation: 2}}, 30)
	p := models.Plan{Name: "starter", MaxStations: 2}

	err := eng.CheckResourceCeiling(context.Background(), idgen.New(), p, plan.ResourceStation)
	if err == nil {
		t.Fatalf("expected quota exceeded error")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Code != "QUOTA_EXCEEDED" {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}
}

func TestResourceCeilingUnlimitedWhenZero(t *testing.T) {
	eng := plan.NewEngine(newFakeCounters(), &fakeResources{counts: map[plan.Resource]int{plan.ResourceCreditor: 10000}}, 30)
	p := models.Plan{Name: "enterprise", MaxCreditors: 0}

	if err := eng.CheckResourceCeiling(context.Background(), idgen.New(), p, plan.ResourceCreditor); err != nil {
		t.Fatalf("expected unlimited ceiling to pass, got %v", err)
	}
}

func TestMonthlyCounterRefusesOverLimit(t *testing.T) {
	counters := newFakeCounters()
	eng := plan.NewEngine(counters, &fakeResources{}, 30)
	p := models.Plan{Name: "starter", MonthlyExportQuota: 2}
	owner := idgen.New()
	month := "2024-06"

	if err := eng.CheckAndIncrementMonthlyCounter(context.Background(), owner, p, plan.CounterExport, month); err != nil {
		t.Fatalf("1st export should succeed: %v", err)
	}
	if err := eng.CheckAndIncrementMonthlyCounter(context.Background(), owner, p, plan.CounterExport, month); err != nil {
		t.Fatalf("2nd export should succeed: %v", err)
	}
	if err := eng.CheckAndIncrementMonthlyCounter(context.Background(), owner, p, plan.CounterExport, month); err == nil {
		t.Fatalf("3rd export should be refused")
	}
}

func TestRetentionCutoffUnlimitedForSuperAdmin(t *testing.T) {
	_, unlimited := plan.RetentionCutoff(time.Now(), -1)
	if !unlimited {
		t.Fatalf("expected -1 retention days to mean unlimited")
	}
}

func TestGraceWindowAppliesPreviousPlanLimits(t *testing.T) {
	eng := plan.NewEngine(newFakeCounters(), &fakeResources{}, 30)
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	downgradedAt := now.AddDate(0, 0, -10)
	current := models.Plan{Name: "starter", MaxStations: 1}
	previous := models.Plan{Name: "pro", MaxStations: 5}

	effective := eng.EffectivePlan(current, &previous, &downgradedAt, now)
	if effective.MaxStations != 5 {
		t.Fatalf("expected previous plan's limits to apply within grace window, got %d", effective.MaxStations)
	}

	longAgo := now.AddDate(0, 0, -40)
	effective = eng.EffectivePlan(current, &previous, &longAgo, now)
	if effective.MaxStations != 1 {
		t.Fatalf("expected current plan's limits to apply after grace window, got %d", effective.MaxStations)
	}
}
