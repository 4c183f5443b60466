// Package handover implements the cash-handover state machine from §4.3:
// the four-hop chain from shift collection to bank deposit, sequence
// validation, variance-triggered disputes, and dispute resolution.
package handover

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
)

// varianceAbsoluteThreshold and variancePctThreshold implement the
// "stricter" reading of §4.3/§9: a handover is only disputed when its
// difference exceeds BOTH the flat rupee threshold and the percentage
// threshold (SPEC_FULL.md §E).
const (
	varianceAbsoluteThreshold = 100.0
	variancePctThreshold      = 2.0
)

// predecessorOf maps a handover type to the type and same-station (and, for
// employee_to_manager, same-from-user) predecessor it requires (§4.3 table).
var predecessorOf = map[models.HandoverType]models.HandoverType{
	models.HandoverEmployeeToManager: models.HandoverShiftCollection,
	models.HandoverManagerToOwner:    models.HandoverEmployeeToManager,
	models.HandoverDepositToBank:     models.HandoverManagerToOwner,
}

// Repository persists CashHandover rows.
type Repository interface {
	Get(ctx context.Context, id idgen.ID) (*models.CashHandover, error)
	Insert(ctx context.Context, tx dbx.Tx, h *models.CashHandover) error
	Update(ctx context.Context, tx dbx.Tx, h *models.CashHandover) error
	// LatestConfirmedOfType finds the most recent confirmed (or resolved)
	// handover of the given type for the station, optionally scoped to a
	// from-user (employee_to_manager's same-from-user requirement).
	LatestConfirmedOfType(ctx context.Context, stationID idgen.ID, t models.HandoverType, fromUser *idgen.ID) (*models.CashHandover, error)
	PendingForUser(ctx context.Context, userID idgen.ID) ([]models.CashHandover, error)
	ListByStationDateRange(ctx context.Context, stationID idgen.ID, from, to time.Time) ([]models.CashHandover, error)
}

// ShiftRepo resolves the station manager a shift_collection handover is
// routed to.
type ShiftRepo interface {
	StationManager(ctx context.Context, stationID idgen.ID) (*idgen.ID, error)
}

// Service is the cash-handover engine.
type Service struct {
	repo   Repository
	shifts ShiftRepo
	locks  *locks.Registry
	audit  *audit.Logger
	clock  clock.Clock
}

func NewService(repo Repository, shifts ShiftRepo, lockRegistry *locks.Registry, auditLogger *audit.Logger, clk clock.Clock) *Service {
	return &Service{repo: repo, shifts: shifts, locks: lockRegistry, audit: auditLogger, clock: clk}
}

// CreateFromShiftInput is create_from_shift's input (§4.3): seeded
// automatically when a shift ends.
type CreateFromShiftInput struct {
	ShiftID        idgen.ID
	StationID      idgen.ID
	FromUserID     idgen.ID
	ExpectedAmount money.Amount
	Date           time.Time
}

// CreateFromShift seeds the shift_collection handover that begins every
// chain; it requires no predecessor (§4.3 table: "—").
func (s *Service) CreateFromShift(ctx context.Context, tx dbx.Tx, in CreateFromShiftInput) (*models.CashHandover, error) {
	toUser, err := s.shifts.StationManager(ctx, in.StationID)
	if err != nil {
		return nil, err
	}
	h := &models.CashHandover{
		ID:             idgen.New(),
		StationID:      in.StationID,
		Type:           models.HandoverShiftCollection,
		Date:           in.Date,
		FromUserID:     &in.FromUserID,
		ToUserID:       toUser,
		ExpectedAmount: in.ExpectedAmount,
		Status:         models.HandoverPending,
		ShiftID:        &in.ShiftID,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Insert(ctx, tx, h); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			StationID:   &in.StationID,
			Action:      "handover.create",
			EntityType:  "CashHandover",
			EntityID:    h.ID,
			Description: "shift_collection handover seeded at shift end",
			Category:    models.CategoryFinance,
			Severity:    models.SeverityInfo,
			Success:     true,
		})
	}
	return h, nil
}

// CreateInput is create_handover's input (§4.3).
type CreateInput struct {
	StationID          idgen.ID
	Type               models.HandoverType
	Date               time.Time
	FromUserID         *idgen.ID
	ToUserID           *idgen.ID
	ExpectedAmount     money.Amount
	PreviousHandoverID *idgen.ID
	Notes              *string
}

// Create validates the required predecessor (validate_sequence) then
// inserts a new pending handover.
func (s *Service) Create(ctx context.Context, tx dbx.Tx, in CreateInput) (*models.CashHandover, error) {
	unlock, err := s.locks.Station.Lock(ctx, in.StationID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	prevID, err := s.validateSequence(ctx, in.StationID, in.Type, in.FromUserID)
	if err != nil {
		return nil, err
	}
	if in.PreviousHandoverID == nil {
		in.PreviousHandoverID = prevID
	}

	h := &models.CashHandover{
		ID:                 idgen.New(),
		StationID:          in.StationID,
		Type:               in.Type,
		Date:               in.Date,
		FromUserID:         in.FromUserID,
		ToUserID:           in.ToUserID,
		ExpectedAmount:     in.ExpectedAmount,
		PreviousHandoverID: in.PreviousHandoverID,
		Status:             models.HandoverPending,
		Notes:              in.Notes,
		CreatedAt:          s.now(),
	}
	if err := s.repo.Insert(ctx, tx, h); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			StationID:   &in.StationID,
			Action:      "handover.create",
			EntityType:  "CashHandover",
			EntityID:    h.ID,
			Description: "handover created",
			Category:    models.CategoryFinance,
			Severity:    models.SeverityInfo,
			Success:     true,
		})
	}
	return h, nil
}

// validateSequence implements §4.3's validate_sequence: the predecessor
// type must have a confirmed (or resolved) record for the station (and, for
// employee_to_manager, the same from-user).
func (s *Service) validateSequence(ctx context.Context, stationID idgen.ID, t models.HandoverType, fromUser *idgen.ID) (*idgen.ID, error) {
	predType, needsPredecessor := predecessorOf[t]
	if !needsPredecessor {
		return nil, nil
	}
	var scopedFromUser *idgen.ID
	if t == models.HandoverEmployeeToManager {
		scopedFromUser = fromUser
	}
	pred, err := s.repo.LatestConfirmedOfType(ctx, stationID, predType, scopedFromUser)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return nil, apierr.ErrSequenceViolation
	}
	return &pred.ID, nil
}

// ConfirmInput is confirm's input (§4.3).
type ConfirmInput struct {
	ActualAmount     money.Amount
	ConfirmedBy      idgen.ID
	Notes            *string
	BankName         *string
	DepositReference *string
	ReceiptURL       *string
}

// Confirm computes the variance and transitions pending -> confirmed or
// pending -> disputed per the stricter rule (SPEC_FULL.md §E).
func (s *Service) Confirm(ctx context.Context, tx dbx.Tx, handoverID idgen.ID, in ConfirmInput) (*models.CashHandover, error) {
	h, err := s.repo.Get(ctx, handoverID)
	if err != nil {
		return nil, err
	}
	if h.Status != models.HandoverPending {
		return nil, apierr.Conflictf("CONFLICT", "handover %s is not pending", handoverID)
	}
	if h.Type == models.HandoverDepositToBank {
		if in.BankName == nil || in.DepositReference == nil {
			return nil, apierr.Validationf("VALIDATION", "deposit_to_bank requires bankName and depositReference before it can leave pending")
		}
		h.BankName = in.BankName
		h.DepositReference = in.DepositReference
		h.ReceiptURL = in.ReceiptURL
	}

	difference := in.ActualAmount.Sub(h.ExpectedAmount)
	var variancePct float64
	if !h.ExpectedAmount.IsZero() {
		variancePct = money.AbsDiff(in.ActualAmount, h.ExpectedAmount).Float64() / h.ExpectedAmount.Float64() * 100
	}
	absDiff := difference.Float64()
	if absDiff < 0 {
		absDiff = -absDiff
	}

	h.ActualAmount = &in.ActualAmount
	h.Difference = &difference
	h.VariancePct = &variancePct
	h.ConfirmedBy = &in.ConfirmedBy
	now := s.now()
	h.ConfirmedAt = &now
	h.Notes = in.Notes

	if absDiff > varianceAbsoluteThreshold && variancePct > variancePctThreshold {
		h.Status = models.HandoverDisputed
		note := "variance exceeds tolerance"
		h.DisputeNote = &note
	} else {
		h.Status = models.HandoverConfirmed
	}

	if err := s.repo.Update(ctx, tx, h); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			UserID:      &in.ConfirmedBy,
			StationID:   &h.StationID,
			Action:      "handover.confirm",
			EntityType:  "CashHandover",
			EntityID:    h.ID,
			Description: string(h.Status),
			Category:    models.CategoryFinance,
			Severity:    models.SeverityInfo,
			Success:     true,
		})
	}
	return h, nil
}

// ResolveDisputeInput is resolve_dispute's input (§4.3).
type ResolveDisputeInput struct {
	ResolutionNotes string
	ResolvedBy      idgen.ID
}

// ResolveDispute transitions disputed -> resolved; valid from no other state.
func (s *Service) ResolveDispute(ctx context.Context, tx dbx.Tx, handoverID idgen.ID, in ResolveDisputeInput) (*models.CashHandover, error) {
	h, err := s.repo.Get(ctx, handoverID)
	if err != nil {
		return nil, err
	}
	if h.Status != models.HandoverDisputed {
		return nil, apierr.Conflictf("CONFLICT", "handover %s is not disputed", handoverID)
	}
	h.Status = models.HandoverResolved
	h.ResolutionNotes = &in.ResolutionNotes
	h.ResolvedBy = &in.ResolvedBy
	now := s.now()
	h.ResolvedAt = &now

	if err := s.repo.Update(ctx, tx, h); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			UserID:      &in.ResolvedBy,
			StationID:   &h.StationID,
			Action:      "handover.resolve_dispute",
			EntityType:  "CashHandover",
			EntityID:    h.ID,
			Description: in.ResolutionNotes,
			Category:    models.CategoryFinance,
			Severity:    models.SeverityInfo,
			Success:     true,
		})
	}
	return h, nil
}

// PendingForUser lists handovers awaiting a given user's action.
func (s *Service) PendingForUser(ctx context.Context, userID idgen.ID) ([]models.CashHandover, error) {
	return s.repo.PendingForUser(ctx, userID)
}

// CashFlowSummary sums handovers by type and counts pending/disputed rows
// within a station's date range.
type CashFlowSummary struct {
	TotalsByType  map[models.HandoverType]money.Amount
	PendingCount  int
	DisputedCount int
}

func (s *Service) CashFlowSummary(ctx context.Context, stationID idgen.ID, from, to time.Time) (*CashFlowSummary, error) {
	rows, err := s.repo.ListByStationDateRange(ctx, stationID, from, to)
	if err != nil {
		return nil, err
	}
	summary := &CashFlowSummary{TotalsByType: map[models.HandoverType]money.Amount{}}
	for _, h := range rows {
		amt := h.ExpectedAmount
		if h.ActualAmount != nil {
			amt = *h.ActualAmount
		}
		summary.TotalsByType[h.Type] = summary.TotalsByType[h.Type].Add(amt)
		switch h.Status {
		case models.HandoverPending:
			summary.PendingCount++
		case models.HandoverDisputed:
			summary.DisputedCount++
		}
	}
	return summary, nil
}

// BankDeposits returns the deposit_to_bank rows in a station's date range.
func (s *Service) BankDeposits(ctx context.Context, stationID idgen.ID, from, to time.Time) ([]models.CashHandover, error) {
	rows, err := s.repo.ListByStationDateRange(ctx, stationID, from, to)
	if err != nil {
		return nil, err
	}
	var deposits []models.CashHandover
	for _, h := range rows {
		if h.Type == models.HandoverDepositToBank {
			deposits = append(deposits, h)
		}
	}
	return deposits, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
