// Package shift implements the shift lifecycle from §4.6: starting an
// employee's shift, aggregating the readings they entered at end-of-shift
// into expected/collected cash, and seeding the handover chain.
package shift

import (
	"context"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/audit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/handover"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/money"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

// ReadingAggregate is one non-initial reading entered by the shift's
// employee at its station, within [start, end) — the set end_shift
// aggregates (§4.6).
type ReadingAggregate struct {
	CashAmount   money.Amount // the reading's transaction's cash-channel share
	TotalAmount  money.Amount
	LitresSold   volume.Litres
}

// ReadingAggregator resolves the readings a shift must fold into its
// totals. Kept narrow so the caller controls how "cash-channel of the
// aggregated readings' transactions" (§4.6) is actually computed.
type ReadingAggregator interface {
	AggregateForShift(ctx context.Context, stationID, employeeID idgen.ID, start, end time.Time) ([]ReadingAggregate, error)
}

// Repository persists Shift rows.
type Repository interface {
	Get(ctx context.Context, id idgen.ID) (*models.Shift, error)
	ActiveForEmployee(ctx context.Context, employeeID idgen.ID) (*models.Shift, error)
	Insert(ctx context.Context, tx dbx.Tx, s *models.Shift) error
	Update(ctx context.Context, tx dbx.Tx, s *models.Shift) error
}

// Service is the shift lifecycle engine.
type Service struct {
	uow       dbx.UnitOfWork
	repo      Repository
	readings  ReadingAggregator
	handovers *handover.Service
	audit     *audit.Logger
	clock     clock.Clock
}

func NewService(uow dbx.UnitOfWork, repo Repository, readings ReadingAggregator, handovers *handover.Service, auditLogger *audit.Logger, clk clock.Clock) *Service {
	return &Service{uow: uow, repo: repo, readings: readings, handovers: handovers, audit: auditLogger, clock: clk}
}

// StartInput is start_shift's input (§4.6).
type StartInput struct {
	EmployeeID idgen.ID
	StationID  idgen.ID
	Date       *time.Time
	StartTime  *time.Time
	ShiftType  string
	OpeningCash money.Amount
	Notes      *string
}

// Start creates an active shift, refusing a second concurrent one per
// employee (SHIFT_ACTIVE).
func (s *Service) Start(ctx context.Context, in StartInput) (*models.Shift, error) {
	existing, err := s.repo.ActiveForEmployee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.ErrShiftActive
	}

	now := s.now()
	date := now
	if in.Date != nil {
		date = *in.Date
	}
	start := now
	if in.StartTime != nil {
		start = *in.StartTime
	}
	shiftType := in.ShiftType
	if shiftType == "" {
		shiftType = "regular"
	}

	sh := &models.Shift{
		ID:          idgen.New(),
		StationID:   in.StationID,
		EmployeeID:  in.EmployeeID,
		Date:        date,
		StartTime:   start,
		ShiftType:   shiftType,
		OpeningCash: in.OpeningCash,
		Status:      models.ShiftActive,
		CreatedAt:   now,
	}

	err = s.uow.WithTransaction(ctx, func(tx dbx.Tx) error {
		if err := s.repo.Insert(ctx, tx, sh); err != nil {
			return err
		}
		if s.audit != nil {
			return s.audit.Record(ctx, audit.Entry{
				UserID:      &in.EmployeeID,
				StationID:   &in.StationID,
				Action:      "shift.start",
				EntityType:  "Shift",
				EntityID:    sh.ID,
				Description: "shift started",
				Category:    models.CategoryData,
				Severity:    models.SeverityInfo,
				Success:     true,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// EndInput is end_shift's input (§4.6).
type EndInput struct {
	CashCollected   *money.Amount
	OnlineCollected *money.Amount
	EndNotes        *string
	EndedBy         *idgen.ID
	EndTime         *time.Time
}

// End aggregates the employee's non-initial readings between shiftStart and
// the computed shiftEnd, derives expectedCash/cashDifference, and seeds the
// shift_collection CashHandover (§4.3).
func (s *Service) End(ctx context.Context, shiftID idgen.ID, in EndInput) (*models.Shift, error) {
	sh, err := s.repo.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if sh.Status != models.ShiftActive {
		return nil, apierr.Conflictf("CONFLICT", "shift %s is not active", shiftID)
	}

	end := s.now()
	if in.EndTime != nil {
		end = *in.EndTime
	}

	aggregates, err := s.readings.AggregateForShift(ctx, sh.StationID, sh.EmployeeID, sh.StartTime, end)
	if err != nil {
		return nil, err
	}

	expectedCash := money.New(0)
	totalSales := money.New(0)
	totalLitres := volume.Zero
	for _, a := range aggregates {
		expectedCash = expectedCash.Add(a.CashAmount)
		totalSales = totalSales.Add(a.TotalAmount)
		totalLitres = totalLitres.Add(a.LitresSold)
	}

	cashCollected := money.New(0)
	if in.CashCollected != nil {
		cashCollected = *in.CashCollected
	}
	onlineCollected := money.New(0)
	if in.OnlineCollected != nil {
		onlineCollected = *in.OnlineCollected
	}

	sh.EndTime = &end
	sh.CashCollected = cashCollected
	sh.OnlineCollected = onlineCollected
	sh.ExpectedCash = expectedCash
	sh.CashDifference = cashCollected.Sub(expectedCash)
	sh.ReadingsCount = len(aggregates)
	sh.TotalLitresSold = totalLitres
	sh.TotalSalesAmount = totalSales
	sh.Status = models.ShiftEnded
	sh.EndedBy = in.EndedBy
	sh.EndNotes = in.EndNotes

	err = s.uow.WithTransaction(ctx, func(tx dbx.Tx) error {
		if err := s.repo.Update(ctx, tx, sh); err != nil {
			return err
		}
		if _, err := s.handovers.CreateFromShift(ctx, tx, handover.CreateFromShiftInput{
			ShiftID:        sh.ID,
			StationID:      sh.StationID,
			FromUserID:     sh.EmployeeID,
			ExpectedAmount: expectedCashOrCollected(expectedCash, cashCollected),
			Date:           end,
		}); err != nil {
			return err
		}
		if s.audit != nil {
			return s.audit.Record(ctx, audit.Entry{
				UserID:      in.EndedBy,
				StationID:   &sh.StationID,
				Action:      "shift.end",
				EntityType:  "Shift",
				EntityID:    sh.ID,
				Description: "shift ended",
				Category:    models.CategoryData,
				Severity:    models.SeverityInfo,
				Success:     true,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// expectedCashOrCollected implements §4.3's "expectedAmount = shift.expectedCash
// or shift.cashCollected": prefer the derived expected figure, falling back
// to what was actually collected when nothing was aggregated.
func expectedCashOrCollected(expectedCash, cashCollected money.Amount) money.Amount {
	if expectedCash.IsZero() && !cashCollected.IsZero() {
		return cashCollected
	}
	return expectedCash
}

// Cancel marks the shift cancelled without recomputing aggregates (§4.6).
func (s *Service) Cancel(ctx context.Context, shiftID idgen.ID, cancelledBy idgen.ID) error {
	sh, err := s.repo.Get(ctx, shiftID)
	if err != nil {
		return err
	}
	if sh.Status != models.ShiftActive {
		return apierr.Conflictf("CONFLICT", "shift %s is not active", shiftID)
	}
	sh.Status = models.ShiftCancelled

	return s.uow.WithTransaction(ctx, func(tx dbx.Tx) error {
		if err := s.repo.Update(ctx, tx, sh); err != nil {
			return err
		}
		if s.audit != nil {
			return s.audit.Record(ctx, audit.Entry{
				UserID:      &cancelledBy,
				StationID:   &sh.StationID,
				Action:      "shift.cancel",
				EntityType:  "Shift",
				EntityID:    sh.ID,
				Description: "shift cancelled",
				Category:    models.CategoryData,
				Severity:    models.SeverityWarning,
				Success:     true,
			})
		}
		return nil
	})
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
