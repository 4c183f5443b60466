// Package reading implements the reading-to-sale derivation engine from
// §4.1: idempotent creation, meter-reset handling (I2), price lookup (I3),
// and the transactional all-or-nothing write across reading, nozzle cache,
// and tank level.
package reading

import (
	"context"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/audit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authz"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/locks"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

// NozzleRepo reads and updates the denormalized nozzle cache.
type NozzleRepo interface {
	Get(ctx context.Context, id idgen.ID) (*models.Nozzle, error)
	UpdateCache(ctx context.Context, tx dbx.Tx, nozzleID idgen.ID, lastReading volume.Litres, lastReadingDate time.Time) error
}

// PumpRepo resolves a nozzle's owning pump.
type PumpRepo interface {
	Get(ctx context.Context, id idgen.ID) (*models.Pump, error)
}

// StationRepo resolves a pump's owning station, for the authorization check
// and for plan lookup.
type StationRepo interface {
	Get(ctx context.Context, id idgen.ID) (*models.Station, error)
}

// FuelPriceRepo looks up the price effective on a date (§4.1 step 4).
type FuelPriceRepo interface {
	EffectivePrice(ctx context.Context, stationID idgen.ID, fuelType models.FuelType, onDate time.Time) (*models.FuelPrice, error)
}

// Repository persists NozzleReading rows.
type Repository interface {
	// FindPrevious returns the most recent reading for nozzleID whose
	// readingDate is <= asOf, ordered by (readingDate, createdAt) desc.
	FindPrevious(ctx context.Context, nozzleID idgen.ID, asOf time.Time) (*models.NozzleReading, error)
	// FindDuplicate returns an existing reading matching the idempotency key
	// (nozzle, date, value), or nil.
	FindDuplicate(ctx context.Context, nozzleID idgen.ID, readingDate time.Time, value volume.Litres) (*models.NozzleReading, error)
	Insert(ctx context.Context, tx dbx.Tx, r *models.NozzleReading) error
	UpdateFlowStatus(ctx context.Context, tx dbx.Tx, readingID idgen.ID, status models.FlowStatus) error
	Reject(ctx context.Context, tx dbx.Tx, readingID idgen.ID, reason string) error
	Get(ctx context.Context, id idgen.ID) (*models.NozzleReading, error)
}

// TankApplier is the subset of tank.Service the reading engine depends on.
type TankApplier interface {
	GetByStationFuel(ctx context.Context, stationID idgen.ID, fuelType models.FuelType) (*models.Tank, error)
	ApplySale(ctx context.Context, tx dbx.Tx, tankID idgen.ID, litres volume.Litres) error
	ReverseSale(ctx context.Context, tx dbx.Tx, tankID idgen.ID, litres volume.Litres) error
}

// PlanProvider resolves the effective plan governing a station's owner
// (§4.8's EffectivePlan, applied here for backdatedDays).
type PlanProvider interface {
	PlanForStation(ctx context.Context, stationID idgen.ID) (models.Plan, error)
}

// Service is the reading-to-sale derivation engine.
type Service struct {
	uow      dbx.UnitOfWork
	readings Repository
	nozzles  NozzleRepo
	pumps    PumpRepo
	stations StationRepo
	prices   FuelPriceRepo
	tanks    TankApplier
	plans    PlanProvider
	locks    *locks.Registry
	audit    *audit.Logger
	clock    clock.Clock
}

func NewService(
	uow dbx.UnitOfWork,
	readings Repository,
	nozzles NozzleRepo,
	pumps PumpRepo,
	stations StationRepo,
	prices FuelPriceRepo,
	tanks TankApplier,
	plans PlanProvider,
	lockRegistry *locks.Registry,
	auditLogger *audit.Logger,
	clk clock.Clock,
) *Service {
	return &Service{
		uow: uow, readings: readings, nozzles: nozzles, pumps: pumps,
		stations: stations, prices: prices, tanks: tanks, plans: plans,
		locks: lockRegistry, audit: auditLogger, clock: clk,
	}
}

// CreateInput is create_reading's input (§4.1).
type CreateInput struct {
	Caller           authz.Caller
	NozzleID         idgen.ID
	ReadingDate      time.Time
	ReadingValue     volume.Litres
	ShiftID          *idgen.ID
	Notes            *string
	IsSample         bool
	Source           models.ReadingSource
	IsInitialReading bool // attempted value from the caller; always forced false (I9)
}

// Create converts a meter reading into a persisted sale record, per §4.1's
// numbered algorithm. It is idempotent on (nozzle, readingDate, readingValue).
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.NozzleReading, error) {
	if in.ReadingValue.IsNegative() {
		return nil, apierr.Validationf("VALIDATION", "readingValue must be >= 0")
	}

	unlock, err := s.locks.Nozzle.Lock(ctx, in.NozzleID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	nozzle, err := s.nozzles.Get(ctx, in.NozzleID)
	if err != nil {
		return nil, apierr.ErrNozzleNotFound
	}
	pump, err := s.pumps.Get(ctx, nozzle.PumpID)
	if err != nil {
		return nil, err
	}
	station, err := s.stations.Get(ctx, pump.StationID)
	if err != nil {
		return nil, err
	}
	if err := authz.AssertStation(in.Caller, station.ID, station.OwnerID); err != nil {
		return nil, err
	}

	if dup, err := s.readings.FindDuplicate(ctx, in.NozzleID, in.ReadingDate, in.ReadingValue); err != nil {
		return nil, err
	} else if dup != nil {
		return dup, nil
	}

	today := s.today()
	if in.ReadingDate.After(today) {
		return nil, apierr.Validationf("VALIDATION", "readingDate cannot be in the future")
	}
	plan, err := s.plans.PlanForStation(ctx, station.ID)
	if err != nil {
		return nil, err
	}
	if plan.BackdatedDays >= 0 {
		earliest := today.AddDate(0, 0, -plan.BackdatedDays)
		if in.ReadingDate.Before(earliest) {
			return nil, apierr.ErrBackdatedExceeded
		}
	}

	price, err := s.prices.EffectivePrice(ctx, station.ID, nozzle.FuelType, in.ReadingDate)
	if err != nil {
		return nil, err
	}
	if price == nil {
		return nil, apierr.ErrNoPrice
	}

	prev, err := s.readings.FindPrevious(ctx, in.NozzleID, in.ReadingDate)
	if err != nil {
		return nil, err
	}
	var previousValue volume.Litres
	var previousID *idgen.ID
	switch {
	case prev != nil:
		previousValue = prev.ReadingValue
		previousID = &prev.ID
	case nozzle.InitialReading != nil:
		previousValue = *nozzle.InitialReading
	default:
		previousValue = volume.Zero
	}

	var warnings []models.ReadingWarning
	raw := in.ReadingValue.Sub(previousValue)
	litresSold := raw
	if raw.IsNegative() {
		litresSold = volume.Zero
		warnings = append(warnings, models.WarningMeterReset)
	}
	if in.IsSample {
		litresSold = volume.Zero
	}

	totalAmount := price.SellingPrice.Mul(litresSold.Decimal())

	if in.IsInitialReading && s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			UserID:      &in.Caller.UserID,
			StationID:   &station.ID,
			Action:      "reading.create.isInitialReading.rejected",
			EntityType:  "NozzleReading",
			Description: "isInitialReading forced to false on a sales reading",
			Category:    models.CategoryData,
			Severity:    models.SeverityWarning,
			Success:     true,
		})
	}

	r := &models.NozzleReading{
		ID:                   idgen.New(),
		NozzleID:             in.NozzleID,
		StationID:            station.ID,
		PumpID:               pump.ID,
		FuelType:             nozzle.FuelType,
		EnteredBy:            in.Caller.UserID,
		ReadingDate:          in.ReadingDate,
		ReadingValue:         in.ReadingValue,
		PreviousReading:      previousID,
		PreviousReadingValue: &previousValue,
		LitresSold:           litresSold,
		PricePerLitre:        price.SellingPrice,
		TotalAmount:          totalAmount,
		IsInitialReading:     false,
		IsSample:             in.IsSample,
		Source:               in.Source,
		ApprovalStatus:       models.ApprovalPending,
		Warnings:             warnings,
		ShiftID:              in.ShiftID,
		FlowStatus:           models.FlowUnsettled,
		Notes:                in.Notes,
		CreatedAt:            s.now(),
	}

	err = s.uow.WithTransaction(ctx, func(tx dbx.Tx) error {
		if err := s.readings.Insert(ctx, tx, r); err != nil {
			return err
		}
		if err := s.nozzles.UpdateCache(ctx, tx, in.NozzleID, in.ReadingValue, in.ReadingDate); err != nil {
			return err
		}
		if !in.IsSample && !litresSold.IsZero() {
			tankEntity, terr := s.tanks.GetByStationFuel(ctx, station.ID, nozzle.FuelType)
			if terr == nil && tankEntity != nil {
				if err := s.tanks.ApplySale(ctx, tx, tankEntity.ID, litresSold); err != nil {
					return err
				}
			}
		}
		if s.audit != nil {
			return s.audit.Record(ctx, audit.Entry{
				UserID:      &in.Caller.UserID,
				StationID:   &station.ID,
				Action:      "reading.create",
				EntityType:  "NozzleReading",
				EntityID:    r.ID,
				Description: "reading recorded",
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
	return r, nil
}

// Reject marks a pending reading as rejected and reverses any tank decrement
// already applied (§4.1 state machine: "any tank decrement from a
// subsequent reject is reversed").
func (s *Service) Reject(ctx context.Context, caller authz.Caller, readingID idgen.ID, reason string) error {
	r, err := s.readings.Get(ctx, readingID)
	if err != nil {
		return err
	}
	station, err := s.stations.Get(ctx, r.StationID)
	if err != nil {
		return err
	}
	if err := authz.AssertStation(caller, station.ID, station.OwnerID); err != nil {
		return err
	}
	if r.ApprovalStatus != models.ApprovalPending {
		return apierr.Conflictf("CONFLICT", "reading %s is not pending", readingID)
	}

	return s.uow.WithTransaction(ctx, func(tx dbx.Tx) error {
		if err := s.readings.Reject(ctx, tx, readingID, reason); err != nil {
			return err
		}
		if !r.IsSample && !r.LitresSold.IsZero() {
			if tankEntity, terr := s.tanks.GetByStationFuel(ctx, r.StationID, r.FuelType); terr == nil && tankEntity != nil {
				if err := s.tanks.ReverseSale(ctx, tx, tankEntity.ID, r.LitresSold); err != nil {
					return err
				}
			}
		}
		if s.audit != nil {
			return s.audit.Record(ctx, audit.Entry{
				UserID:      &caller.UserID,
				StationID:   &station.ID,
				Action:      "reading.reject",
				EntityType:  "NozzleReading",
				EntityID:    readingID,
				Description: reason,
				Category:    models.CategoryData,
				Severity:    models.SeverityWarning,
				Success:     true,
			})
		}
		return nil
	})
}

// GetPrevious implements get_previous_reading: a read-only lookup for the UI.
func (s *Service) GetPrevious(ctx context.Context, nozzleID idgen.ID, beforeDate time.Time) (*models.NozzleReading, error) {
	return s.readings.FindPrevious(ctx, nozzleID, beforeDate)
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
