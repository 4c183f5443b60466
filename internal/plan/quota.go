// Package plan implements the subscription quota engine from §4.8: resource
// ceilings, monthly counters, retention windows, and feature flags.
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

// Resource is a ceiling-checked entity kind (§4.8).
type Resource string

const (
	ResourceStation  Resource = "station"
	ResourcePump     Resource = "pump"
	ResourceNozzle   Resource = "nozzle"
	ResourceEmployee Resource = "employee"
	ResourceCreditor Resource = "creditor"
)

// CounterKind is a monthly-quota-tracked action (§4.8).
type CounterKind string

const (
	CounterExport      CounterKind = "export"
	CounterReport      CounterKind = "report"
	CounterManualEntry CounterKind = "manual_entry"
)

// Counters persists the monthly (owner, kind, YYYY-MM) counter table; the
// plan is not part of the key.
// The postgres implementation increments with a single UPSERT so concurrent
// requests across the shared connection pool (§5) never lose an increment.
type Counters interface {
	// Increment atomically adds 1 to the counter for (ownerID, kind, month)
	// and returns the new value.
	Increment(ctx context.Context, ownerID idgen.ID, kind CounterKind, month string) (int, error)
	// Current returns the counter's value without mutating it.
	Current(ctx context.Context, ownerID idgen.ID, kind CounterKind, month string) (int, error)
}

// ResourceCounter counts existing rows of a resource kind scoped to an
// owner, e.g. "how many stations does this owner have".
type ResourceCounter interface {
	Count(ctx context.Context, ownerID idgen.ID, resource Resource) (int, error)
}

// Engine enforces plan limits at write time and elides stale rows at read
// time (§4.8).
type Engine struct {
	counters Counters
	resources ResourceCounter
	graceDays int // §4.8 downgrade grace window
}

func NewEngine(counters Counters, resources ResourceCounter, graceDays int) *Engine {
	if graceDays <= 0 {
		graceDays = 30
	}
	return &Engine{counters: counters, resources: resources, graceDays: graceDays}
}

func limitFor(p models.Plan, r Resource) int {
	switch r {
	case ResourceStation:
		return p.MaxStations
	case ResourcePump:
		return p.MaxPumpsPerStation
	case ResourceNozzle:
		return p.MaxNozzlesPerPump
	case ResourceEmployee:
		return p.MaxEmployees
	case ResourceCreditor:
		return p.MaxCreditors
	default:
		return 0
	}
}

func monthlyLimitFor(p models.Plan, k CounterKind) int {
	switch k {
	case CounterExport:
		return p.MonthlyExportQuota
	case CounterReport:
		return p.MonthlyReportQuota
	case CounterManualEntry:
		return p.MonthlyManualEntryQuota
	default:
		return 0
	}
}

// CheckResourceCeiling refuses creation of a new resource when the owner is
// already at the plan's ceiling (§4.8: "refuse ... when current >= limit").
// A limit of 0 or less means unlimited.
func (e *Engine) CheckResourceCeiling(ctx context.Context, ownerID idgen.ID, p models.Plan, r Resource) error {
	limit := limitFor(p, r)
	if limit <= 0 {
		return nil
	}
	current, err := e.resources.Count(ctx, ownerID, r)
	if err != nil {
		return err
	}
	if current >= limit {
		return apierr.New(apierr.QuotaExceeded, "QUOTA_EXCEEDED", fmt.Sprintf("plan %q allows at most %d %s(s), already at %d", p.Name, limit, r, current))
	}
	return nil
}

// CheckAndIncrementMonthlyCounter refuses the action if the increment would
// exceed the plan's monthly maximum, else increments post-success per §4.8.
// Call this AFTER the guarded write succeeds. Counters takes no transaction
// handle, so the increment is committed on its own, outside the caller's
// transaction.
func (e *Engine) CheckAndIncrementMonthlyCounter(ctx context.Context, ownerID idgen.ID, p models.Plan, kind CounterKind, month string) error {
	limit := monthlyLimitFor(p, kind)
	if limit > 0 {
		current, err := e.counters.Current(ctx, ownerID, kind, month)
		if err != nil {
			return err
		}
		if current+1 > limit {
			return apierr.New(apierr.QuotaExceeded, "QUOTA_EXCEEDED", fmt.Sprintf("plan %q allows %d %s/month, already at %d", p.Name, limit, kind, current))
		}
	}
	if _, err := e.counters.Increment(ctx, ownerID, kind, month); err != nil {
		return err
	}
	return nil
}

// MonthKey formats a time.Time into the YYYY-MM key the counter table uses.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), t.Month())
}

// RetentionCutoff returns the earliest date a read path should return for
// the given retention window, or the zero time if unlimited (-1 == super_admin).
func RetentionCutoff(today time.Time, retentionDays int) (cutoff time.Time, unlimited bool) {
	if retentionDays < 0 {
		return time.Time{}, true
	}
	return today.AddDate(0, 0, -retentionDays), false
}

// Feature flag checks (§4.8).
func CanExport(p models.Plan) bool         { return p.CanExport }
func CanTrackExpenses(p models.Plan) bool  { return p.CanTrackExpenses }
func CanViewProfitLoss(p models.Plan) bool { return p.CanViewProfitLoss }
func CanTrackCredits(p models.Plan) bool   { return p.CanTrackCredits }

// GraceWindow returns the downgrade grace period, graceDays as a Duration (§4.8, SPEC_FULL.md §D.5).
func (e *Engine) GraceWindow() time.Duration {
	return time.Duration(e.graceDays) * 24 * time.Hour
}

// EffectivePlan resolves which plan's limits apply: if a downgrade happened
// within the grace window, the previous (more generous) plan's limits still
// apply until the window elapses.
func (e *Engine) EffectivePlan(current models.Plan, previous *models.Plan, downgradedAt *time.Time, now time.Time) models.Plan {
	if previous == nil || downgradedAt == nil {
		return current
	}
	if now.Sub(*downgradedAt) <= e.GraceWindow() {
		return *previous
	}
	return current
}
