// Package tank implements the inventory tracking from §4.5: level
// classification, dispense guards, refill/correction recording, and
// "since last refill" deltas.
package tank

import (
	"context"
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

// Repository persists Tank and TankRefill rows.
type Repository interface {
	Get(ctx context.Context, id idgen.ID) (*models.Tank, error)
	GetByStationFuel(ctx context.Context, stationID idgen.ID, fuelType models.FuelType) (*models.Tank, error)
	ListByStation(ctx context.Context, stationID idgen.ID) ([]models.Tank, error)
	UpdateLevel(ctx context.Context, tx dbx.Tx, tankID idgen.ID, newLevel volume.Litres) error
	SetRefillState(ctx context.Context, tx dbx.Tx, tankID idgen.ID, levelAfterRefill volume.Litres, refillDate time.Time, refillAmount volume.Litres) error
	SetDip(ctx context.Context, tx dbx.Tx, tankID idgen.ID, dip volume.Litres, dipDate time.Time) error

	InsertRefill(ctx context.Context, tx dbx.Tx, r *models.TankRefill) error
	GetRefill(ctx context.Context, id idgen.ID) (*models.TankRefill, error)
	DeleteRefill(ctx context.Context, tx dbx.Tx, id idgen.ID) error
}

// Service is the tank inventory engine.
type Service struct {
	repo  Repository
	locks *locks.Registry
	audit *audit.Logger
	clock clock.Clock
}

func NewService(repo Repository, lockRegistry *locks.Registry, auditLogger *audit.Logger, clk clock.Clock) *Service {
	return &Service{repo: repo, locks: lockRegistry, audit: auditLogger, clock: clk}
}

// GetByStationFuel finds the tank backing a given station's fuel type, used
// by the reading engine to locate which tank a sale decrements (§4.1 step 7).
func (s *Service) GetByStationFuel(ctx context.Context, stationID idgen.ID, fuelType models.FuelType) (*models.Tank, error) {
	return s.repo.GetByStationFuel(ctx, stationID, fuelType)
}

// Status classifies a tank's current level per §4.5.
func Status(t models.Tank) models.TankStatus {
	level := t.CurrentLevel
	switch {
	case level.IsNegative():
		return models.TankNegative
	case level.IsZero():
		return models.TankEmpty
	case level.Cmp(criticalThreshold(t)) <= 0:
		return models.TankCritical
	case level.Cmp(lowThreshold(t)) <= 0:
		return models.TankLow
	case level.Cmp(t.Capacity) > 0:
		return models.TankOverflow
	default:
		return models.TankNormal
	}
}

// lowThreshold implements low = lowLevelWarning ?? (capacity*percent/100) ?? (capacity*0.20).
func lowThreshold(t models.Tank) volume.Litres {
	if t.LowLevelWarning != nil {
		return *t.LowLevelWarning
	}
	pct := 0.20
	if t.LowLevelPercent != nil {
		pct = *t.LowLevelPercent / 100
	}
	return volume.New(t.Capacity.Float64() * pct)
}

func criticalThreshold(t models.Tank) volume.Litres {
	if t.CriticalLevelWarning != nil {
		return *t.CriticalLevelWarning
	}
	pct := 0.10
	if t.CriticalLevelPercent != nil {
		pct = *t.CriticalLevelPercent / 100
	}
	return volume.New(t.Capacity.Float64() * pct)
}

// SinceLastRefill returns max(0, levelAfterLastRefill - currentLevel) (§4.5).
func SinceLastRefill(t models.Tank) (volume.Litres, bool) {
	if t.LevelAfterLastRefill == nil {
		return volume.Zero, false
	}
	diff := t.LevelAfterLastRefill.Sub(t.CurrentLevel)
	return volume.MaxZero(diff), true
}

// CanDispense inspects trackingMode and reports whether litres may be sold,
// plus any warnings to surface (§4.5).
func CanDispense(t models.Tank, litres volume.Litres) (allowed bool, warnings []string) {
	resultLevel := t.CurrentLevel.Sub(litres)

	switch t.TrackingMode {
	case models.TrackingDisabled:
		return true, nil
	case models.TrackingWarning:
		if resultLevel.IsNegative() {
			warnings = append(warnings, "sale would take tank level negative")
		}
		if resultLevel.Cmp(criticalThreshold(t)) <= 0 {
			warnings = append(warnings, "tank level would be critical")
		} else if resultLevel.Cmp(lowThreshold(t)) <= 0 {
			warnings = append(warnings, "tank level would be low")
		}
		return true, warnings
	case models.TrackingStrict:
		if resultLevel.IsNegative() && !t.AllowNegative {
			return false, []string{"strict tracking refuses a negative tank level"}
		}
		return true, nil
	default:
		return true, nil
	}
}

// ApplySale decrements a tank's level for a non-sample reading's litresSold
// (§4.1 step 7, I7). Returns apierr.ErrTankInsufficient when strict tracking
// would go negative.
func (s *Service) ApplySale(ctx context.Context, tx dbx.Tx, tankID idgen.ID, litres volume.Litres) error {
	if s.repo == nil || tankID.IsNil() || litres.IsZero() {
		return nil
	}
	unlock, err := s.locks.Tank.Lock(ctx, tankID.String())
	if err != nil {
		return err
	}
	defer unlock()

	t, err := s.repo.Get(ctx, tankID)
	if err != nil {
		return err
	}
	allowed, _ := CanDispense(*t, litres)
	if !allowed {
		return apierr.ErrTankInsufficient
	}
	newLevel := t.CurrentLevel.Sub(litres)
	return s.repo.UpdateLevel(ctx, tx, tankID, newLevel)
}

// ReverseSale reverses a prior ApplySale, e.g. when a reading is rejected
// after having already decremented the tank (§4.1 state machine note).
func (s *Service) ReverseSale(ctx context.Context, tx dbx.Tx, tankID idgen.ID, litres volume.Litres) error {
	if s.repo == nil || tankID.IsNil() || litres.IsZero() {
		return nil
	}
	unlock, err := s.locks.Tank.Lock(ctx, tankID.String())
	if err != nil {
		return err
	}
	defer unlock()

	t, err := s.repo.Get(ctx, tankID)
	if err != nil {
		return err
	}
	newLevel := t.CurrentLevel.Add(litres)
	return s.repo.UpdateLevel(ctx, tx, tankID, newLevel)
}

// RefillInput is the caller-supplied data for RecordRefill.
type RefillInput struct {
	TankID       idgen.ID
	Litres       volume.Litres // non-zero; negative == correction
	RefillDate   time.Time
	RefillTime   *time.Time
	CostPerLitre *float64
	Supplier, Invoice, Vehicle, Driver string
	EntryType    models.TankRefillEntryType
	Backdated    bool
}

// RecordRefill is transactional: persist TankRefill, bump
// levelAfterLastRefill/lastRefillDate/lastRefillAmount, and increment
// currentLevel (§4.5).
func (s *Service) RecordRefill(ctx context.Context, tx dbx.Tx, stationID idgen.ID, in RefillInput) (*models.TankRefill, error) {
	if in.Litres.IsZero() {
		return nil, apierr.Validationf("VALIDATION", "refill litres must be non-zero")
	}
	unlock, err := s.locks.Tank.Lock(ctx, in.TankID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.repo.Get(ctx, in.TankID)
	if err != nil {
		return nil, err
	}

	entryType := in.EntryType
	if entryType == "" {
		if in.Litres.IsNegative() {
			entryType = models.CorrectionEntry
		} else {
			entryType = models.RefillEntry
		}
	}

	before := t.CurrentLevel
	after := before.Add(in.Litres)

	refill := &models.TankRefill{
		ID:              idgen.New(),
		TankID:          in.TankID,
		StationID:       stationID,
		Litres:          in.Litres,
		RefillDate:      in.RefillDate,
		RefillTime:      in.RefillTime,
		Supplier:        in.Supplier,
		Invoice:         in.Invoice,
		Vehicle:         in.Vehicle,
		Driver:          in.Driver,
		TankLevelBefore: before,
		TankLevelAfter:  after,
		EntryType:       entryType,
		Backdated:       in.Backdated,
		CreatedAt:       s.now(),
	}
	if in.CostPerLitre != nil {
		cost := money.New(*in.CostPerLitre)
		refill.CostPerLitre = &cost
		total := cost.Mul(in.Litres.Decimal())
		refill.TotalCost = &total
	}

	if err := s.repo.InsertRefill(ctx, tx, refill); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLevel(ctx, tx, in.TankID, after); err != nil {
		return nil, err
	}
	if entryType == models.RefillEntry || entryType == models.InitialEntry {
		if err := s.repo.SetRefillState(ctx, tx, in.TankID, after, in.RefillDate, in.Litres); err != nil {
			return nil, err
		}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			StationID:   &stationID,
			Action:      "tank.refill.create",
			EntityType:  "TankRefill",
			EntityID:    refill.ID,
			Description: "tank refill recorded",
			Category:    models.CategoryData,
			Severity:    models.SeverityInfo,
			Success:     true,
		})
	}

	return refill, nil
}

// DeleteRefill reverses a refill's effect on currentLevel (§4.5).
func (s *Service) DeleteRefill(ctx context.Context, tx dbx.Tx, refillID idgen.ID) error {
	r, err := s.repo.GetRefill(ctx, refillID)
	if err != nil {
		return err
	}
	unlock, err := s.locks.Tank.Lock(ctx, r.TankID.String())
	if err != nil {
		return err
	}
	defer unlock()

	t, err := s.repo.Get(ctx, r.TankID)
	if err != nil {
		return err
	}
	reverted := t.CurrentLevel.Sub(r.Litres)
	if err := s.repo.UpdateLevel(ctx, tx, r.TankID, reverted); err != nil {
		return err
	}
	return s.repo.DeleteRefill(ctx, tx, refillID)
}

// Calibrate records a dip reading and resets currentLevel to the dipped
// value, logging the adjustment as a correction refill of (dip −
// currentLevel) litres so the inventory history stays auditable; a dip
// equal to currentLevel writes no refill row (SPEC_FULL.md §D.3).
func (s *Service) Calibrate(ctx context.Context, tx dbx.Tx, stationID, tankID idgen.ID, dip volume.Litres, dipDate time.Time) (*models.TankRefill, error) {
	unlock, err := s.locks.Tank.Lock(ctx, tankID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.repo.Get(ctx, tankID)
	if err != nil {
		return nil, err
	}
	delta := dip.Sub(t.CurrentLevel)

	refill := &models.TankRefill{
		ID:              idgen.New(),
		TankID:          tankID,
		StationID:       stationID,
		Litres:          delta,
		RefillDate:      dipDate,
		TankLevelBefore: t.CurrentLevel,
		TankLevelAfter:  dip,
		EntryType:       models.CorrectionEntry,
		CreatedAt:       s.now(),
	}
	if !delta.IsZero() {
		if err := s.repo.InsertRefill(ctx, tx, refill); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateLevel(ctx, tx, tankID, dip); err != nil {
		return nil, err
	}
	if err := s.repo.SetDip(ctx, tx, tankID, dip, dipDate); err != nil {
		return nil, err
	}
	return refill, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
