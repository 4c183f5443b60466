package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authn"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/credit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dashboard"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/expense"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/handover"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/money"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/observability"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/plan"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/reading"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/repository/postgres"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/shift"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/tank"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/transaction"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
	"golang.org/x/crypto/bcrypt"
)

// Handlers wires every domain service into one collection of HTTP
// endpoints. It holds no business logic of its own beyond request
// decoding, tenant-scope checks, and response encoding.
type Handlers struct {
	UOW         dbx.UnitOfWork
	Issuer      *authn.Issuer
	Users       *postgres.Users
	Stations    *postgres.Stations
	PlanLookup  reading.PlanProvider
	Readings    *reading.Service
	Transactions *transaction.Service
	Handovers   *handover.Service
	Shifts      *shift.Service
	Tanks       *tank.Service
	Credits     *credit.Service
	Expenses    *expense.Service
	Dashboard   *dashboard.Service
	Plans       *plan.Engine
	Metrics     *observability.Metrics
	Clock       clock.Clock
}

func (h *Handlers) now() time.Time {
	if h.Clock == nil {
		return time.Now().UTC()
	}
	return h.Clock.Now()
}

// checkManualEntryQuota enforces the plan's monthly manual-entry ceiling
// (§4.8) before a reading is created. plan.Engine's own doc comment calls
// for incrementing inside the write's transaction; reading.Service manages
// its own transaction internally and takes no external tx, so this runs the
// check-and-increment first instead. A reading that is later refused for an
// unrelated reason (no price, future date) still consumes one count — the
// same kind of boundary compromise as postgres.AuditSink's (see DESIGN.md).
func (h *Handlers) checkManualEntryQuota(ctx context.Context, stationID idgen.ID, readingDate time.Time) error {
	station, err := h.Stations.Get(ctx, stationID)
	if err != nil {
		return err
	}
	p, err := h.PlanLookup.PlanForStation(ctx, stationID)
	if err != nil {
		return err
	}
	err = h.Plans.CheckAndIncrementMonthlyCounter(ctx, station.OwnerID, p, plan.CounterManualEntry, plan.MonthKey(readingDate))
	if err != nil && h.Metrics != nil {
		h.Metrics.TrackQuotaRefusal(station.OwnerID.String(), string(plan.CounterManualEntry))
	}
	return err
}

// --- auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

type userSummary struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	Role        string  `json:"role"`
	StationID   *string `json:"stationId,omitempty"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.CredentialHash), []byte(req.Password)) != nil {
		writeError(w, apierr.New(apierr.Unauthenticated, "BAD_CREDENTIALS", "email or password is incorrect"))
		return
	}
	token, err := h.Issuer.Issue(user.ID, user.Role, user.StationID)
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, loginResponse{Token: token, User: toUserSummary(user)})
}

func toUserSummary(u *models.User) userSummary {
	s := userSummary{ID: u.ID.String(), Email: u.Email, DisplayName: u.DisplayName, Role: string(u.Role)}
	if u.StationID != nil {
		sid := u.StationID.String()
		s.StationID = &sid
	}
	return s
}

// --- readings ---

type createReadingRequest struct {
	NozzleID     string  `json:"nozzleId"`
	ReadingDate  string  `json:"readingDate"`
	ReadingValue float64 `json:"readingValue"`
	ShiftID      *string `json:"shiftId,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	IsSample     bool    `json:"isSample,omitempty"`
	Source       string  `json:"source,omitempty"`
}

func (h *Handlers) CreateReading(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createReadingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	nozzleID, err := idgen.Parse(req.NozzleID)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_ID", "nozzleId is not valid"))
		return
	}
	readingDate, err := time.Parse("2006-01-02", req.ReadingDate)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_DATE", "readingDate must be YYYY-MM-DD"))
		return
	}
	var shiftID *idgen.ID
	if req.ShiftID != nil {
		id, err := idgen.Parse(*req.ShiftID)
		if err != nil {
			writeError(w, apierr.Validationf("INVALID_ID", "shiftId is not valid"))
			return
		}
		shiftID = &id
	}
	source := models.ReadingSource(req.Source)
	if source == "" {
		source = models.SourceManual
	}

	if source == models.SourceManual && h.Plans != nil && h.Stations != nil && h.PlanLookup != nil && caller.StationID != nil {
		if err := h.checkManualEntryQuota(r.Context(), *caller.StationID, readingDate); err != nil {
			writeError(w, err)
			return
		}
	}

	result, err := h.Readings.Create(r.Context(), reading.CreateInput{
		Caller:       caller,
		NozzleID:     nozzleID,
		ReadingDate:  readingDate,
		ReadingValue: volume.New(req.ReadingValue),
		ShiftID:      shiftID,
		Notes:        req.Notes,
		IsSample:     req.IsSample,
		Source:       source,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.TrackReadingCreated(result.StationID.String(), string(result.FuelType), result.LitresSold.Float64())
	}
	created(w, result)
}

func (h *Handlers) RejectReading(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	readingID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Readings.Reject(r.Context(), caller, readingID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	ok(w, map[string]bool{"rejected": true})
}

// --- transactions ---

type creditAllocationRequest struct {
	CreditorID string  `json:"creditorId"`
	Amount     float64 `json:"amount"`
}

type createTransactionRequest struct {
	StationID         string                    `json:"stationId"`
	Date              string                    `json:"date"`
	ReadingIDs        []string                  `json:"readingIds"`
	Cash              float64                   `json:"cash"`
	Online            float64                   `json:"online"`
	Credit            float64                   `json:"credit"`
	CreditAllocations []creditAllocationRequest  `json:"creditAllocations,omitempty"`
	Notes             *string                   `json:"notes,omitempty"`
}

func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stationID, err := idgen.Parse(req.StationID)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_ID", "stationId is not valid"))
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_DATE", "date must be YYYY-MM-DD"))
		return
	}
	readingIDs := make([]idgen.ID, 0, len(req.ReadingIDs))
	for _, raw := range req.ReadingIDs {
		id, err := idgen.Parse(raw)
		if err != nil {
			writeError(w, apierr.Validationf("INVALID_ID", "readingIds contains an invalid id"))
			return
		}
		readingIDs = append(readingIDs, id)
	}
	allocations := make([]transaction.CreditAllocationInput, 0, len(req.CreditAllocations))
	for _, a := range req.CreditAllocations {
		creditorID, err := idgen.Parse(a.CreditorID)
		if err != nil {
			writeError(w, apierr.Validationf("INVALID_ID", "creditAllocations contains an invalid creditorId"))
			return
		}
		allocations = append(allocations, transaction.CreditAllocationInput{CreditorID: creditorID, Amount: money.New(a.Amount)})
	}

	result, err := h.Transactions.Create(r.Context(), transaction.CreateInput{
		StationID:  stationID,
		Date:       date,
		ReadingIDs: readingIDs,
		PaymentBreakdown: models.PaymentBreakdown{
			Cash:   money.New(req.Cash),
			Online: money.New(req.Online),
			Credit: money.New(req.Credit),
		},
		CreditAllocations: allocations,
		Notes:             req.Notes,
		CreatedBy:         caller.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, result)
}

func (h *Handlers) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	txnID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Transactions.Cancel(r.Context(), txnID, caller.UserID); err != nil {
		writeError(w, err)
		return
	}
	ok(w, map[string]bool{"cancelled": true})
}

// --- handovers ---

type createHandoverRequest struct {
	StationID      string  `json:"stationId"`
	Type           string  `json:"type"`
	Date           string  `json:"date"`
	FromUserID     *string `json:"fromUserId,omitempty"`
	ToUserID       *string `json:"toUserId,omitempty"`
	ExpectedAmount float64 `json:"expectedAmount"`
	Notes          *string `json:"notes,omitempty"`
}

func (h *Handlers) CreateHandover(w http.ResponseWriter, r *http.Request) {
	var req createHandoverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stationID, err := idgen.Parse(req.StationID)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_ID", "stationId is not valid"))
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_DATE", "date must be YYYY-MM-DD"))
		return
	}
	fromUser, err := optionalID(req.FromUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	toUser, err := optionalID(req.ToUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	var result *models.CashHandover
	err = h.UOW.WithTransaction(r.Context(), func(tx dbx.Tx) error {
		var txErr error
		result, txErr = h.Handovers.Create(r.Context(), tx, handover.CreateInput{
			StationID:      stationID,
			Type:           models.HandoverType(req.Type),
			Date:           date,
			FromUserID:     fromUser,
			ToUserID:       toUser,
			ExpectedAmount: money.New(req.ExpectedAmount),
			Notes:          req.Notes,
		})
		return txErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.TrackHandoverOutcome(string(result.Type), string(result.Status))
	}
	created(w, result)
}

type confirmHandoverRequest struct {
	ActualAmount     float64 `json:"actualAmount"`
	Notes            *string `json:"notes,omitempty"`
	BankName         *string `json:"bankName,omitempty"`
	DepositReference *string `json:"depositReference,omitempty"`
	ReceiptURL       *string `json:"receiptUrl,omitempty"`
}

func (h *Handlers) ConfirmHandover(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	handoverID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req confirmHandoverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var result *models.CashHandover
	err = h.UOW.WithTransaction(r.Context(), func(tx dbx.Tx) error {
		var txErr error
		result, txErr = h.Handovers.Confirm(r.Context(), tx, handoverID, handover.ConfirmInput{
			ActualAmount:     money.New(req.ActualAmount),
			ConfirmedBy:      caller.UserID,
			Notes:            req.Notes,
			BankName:         req.BankName,
			DepositReference: req.DepositReference,
			ReceiptURL:       req.ReceiptURL,
		})
		return txErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.TrackHandoverOutcome(string(result.Type), string(result.Status))
	}
	ok(w, result)
}

func (h *Handlers) ResolveHandoverDispute(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	handoverID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		ResolutionNotes string `json:"resolutionNotes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var result *models.CashHandover
	err = h.UOW.WithTransaction(r.Context(), func(tx dbx.Tx) error {
		var txErr error
		result, txErr = h.Handovers.ResolveDispute(r.Context(), tx, handoverID, handover.ResolveDisputeInput{
			ResolutionNotes: req.ResolutionNotes,
			ResolvedBy:      caller.UserID,
		})
		return txErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, result)
}

func (h *Handlers) PendingHandovers(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.Handovers.PendingForUser(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, rows)
}

// --- shifts ---

type startShiftRequest struct {
	StationID   string  `json:"stationId"`
	ShiftType   string  `json:"shiftType,omitempty"`
	OpeningCash float64 `json:"openingCash"`
	Notes       *string `json:"notes,omitempty"`
}

func (h *Handlers) StartShift(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req startShiftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stationID, err := idgen.Parse(req.StationID)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_ID", "stationId is not valid"))
		return
	}
	result, err := h.Shifts.Start(r.Context(), shift.StartInput{
		EmployeeID:  caller.UserID,
		StationID:   stationID,
		ShiftType:   req.ShiftType,
		OpeningCash: money.New(req.OpeningCash),
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, result)
}

type endShiftRequest struct {
	CashCollected   *float64 `json:"cashCollected,omitempty"`
	OnlineCollected *float64 `json:"onlineCollected,omitempty"`
	EndNotes        *string  `json:"endNotes,omitempty"`
}

func (h *Handlers) EndShift(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	shiftID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req endShiftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in := shift.EndInput{EndNotes: req.EndNotes, EndedBy: &caller.UserID}
	if req.CashCollected != nil {
		v := money.New(*req.CashCollected)
		in.CashCollected = &v
	}
	if req.OnlineCollected != nil {
		v := money.New(*req.OnlineCollected)
		in.OnlineCollected = &v
	}
	result, err := h.Shifts.End(r.Context(), shiftID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, result)
}

func (h *Handlers) CancelShift(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	shiftID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Shifts.Cancel(r.Context(), shiftID, caller.UserID); err != nil {
		writeError(w, err)
		return
	}
	ok(w, map[string]bool{"cancelled": true})
}

// --- tanks ---

func (h *Handlers) GetTank(w http.ResponseWriter, r *http.Request) {
	stationID, err := idParam(r, "stationId")
	if err != nil {
		writeError(w, err)
		return
	}
	fuelType := models.FuelType(chiParam(r, "fuelType"))
	t, err := h.Tanks.GetByStationFuel(r.Context(), stationID, fuelType)
	if err != nil {
		writeError(w, err)
		return
	}
	status := tank.Status(*t)
	if h.Metrics != nil {
		h.Metrics.TrackTankLevel(t.ID.String(), string(status), t.CurrentLevel.Float64())
	}
	ok(w, map[string]interface{}{"tank": t, "status": status})
}

type recordRefillRequest struct {
	TankID       string   `json:"tankId"`
	Litres       float64  `json:"litres"`
	RefillDate   string   `json:"refillDate"`
	CostPerLitre *float64 `json:"costPerLitre,omitempty"`
	Supplier     string   `json:"supplier,omitempty"`
	Invoice      string   `json:"invoice,omitempty"`
	Vehicle      string   `json:"vehicle,omitempty"`
	Driver       string   `json:"driver,omitempty"`
}

func (h *Handlers) RecordRefill(w http.ResponseWriter, r *http.Request) {
	stationID, err := idParam(r, "stationId")
	if err != nil {
		writeError(w, err)
		return
	}
	var req recordRefillRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tankID, err := idgen.Parse(req.TankID)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_ID", "tankId is not valid"))
		return
	}
	refillDate, err := time.Parse("2006-01-02", req.RefillDate)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_DATE", "refillDate must be YYYY-MM-DD"))
		return
	}

	var result *models.TankRefill
	err = h.UOW.WithTransaction(r.Context(), func(tx dbx.Tx) error {
		var txErr error
		result, txErr = h.Tanks.RecordRefill(r.Context(), tx, stationID, tank.RefillInput{
			TankID:       tankID,
			Litres:       volume.New(req.Litres),
			RefillDate:   refillDate,
			CostPerLitre: req.CostPerLitre,
			Supplier:     req.Supplier,
			Invoice:      req.Invoice,
			Vehicle:      req.Vehicle,
			Driver:       req.Driver,
		})
		return txErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, result)
}

func (h *Handlers) DeleteRefill(w http.ResponseWriter, r *http.Request) {
	refillID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	err = h.UOW.WithTransaction(r.Context(), func(tx dbx.Tx) error {
		return h.Tanks.DeleteRefill(r.Context(), tx, refillID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, map[string]bool{"deleted": true})
}

// --- creditors ---

type recordCreditRequest struct {
	StationID       string   `json:"stationId"`
	Amount          float64  `json:"amount"`
	FuelType        string   `json:"fuelType,omitempty"`
	Litres          *float64 `json:"litres,omitempty"`
	PricePerLitre   *float64 `json:"pricePerLitre,omitempty"`
	InvoiceNumber   string   `json:"invoiceNumber,omitempty"`
	VehicleNumber   string   `json:"vehicleNumber,omitempty"`
	TransactionDate string   `json:"transactionDate"`
}

func (h *Handlers) RecordCredit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	creditorID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req recordCreditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stationID, err := idgen.Parse(req.StationID)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_ID", "stationId is not valid"))
		return
	}
	transactionDate, err := time.Parse("2006-01-02", req.TransactionDate)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_DATE", "transactionDate must be YYYY-MM-DD"))
		return
	}
	in := credit.CreditInput{
		StationID:       stationID,
		Amount:          money.New(req.Amount),
		InvoiceNumber:   req.InvoiceNumber,
		VehicleNumber:   req.VehicleNumber,
		TransactionDate: transactionDate,
		EnteredBy:       caller.UserID,
	}
	if req.FuelType != "" {
		ft := models.FuelType(req.FuelType)
		in.FuelType = &ft
	}
	if req.Litres != nil {
		v := volume.New(*req.Litres)
		in.Litres = &v
	}
	if req.PricePerLitre != nil {
		v := money.New(*req.PricePerLitre)
		in.PricePerLitre = &v
	}

	var result *models.CreditTransaction
	err = h.UOW.WithTransaction(r.Context(), func(tx dbx.Tx) error {
		var txErr error
		result, txErr = h.Credits.RecordCredit(r.Context(), tx, creditorID, in)
		if txErr != nil && h.Metrics != nil {
			h.Metrics.TrackCreditRefusal(txErr.Error())
		}
		return txErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, result)
}

type recordSettlementRequest struct {
	StationID       string  `json:"stationId"`
	Amount          float64 `json:"amount"`
	TransactionDate string  `json:"transactionDate"`
	InvoiceNumber   string  `json:"invoiceNumber,omitempty"`
}

func (h *Handlers) RecordSettlement(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	creditorID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req recordSettlementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stationID, err := idgen.Parse(req.StationID)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_ID", "stationId is not valid"))
		return
	}
	transactionDate, err := time.Parse("2006-01-02", req.TransactionDate)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_DATE", "transactionDate must be YYYY-MM-DD"))
		return
	}

	var result *models.CreditTransaction
	err = h.UOW.WithTransaction(r.Context(), func(tx dbx.Tx) error {
		var txErr error
		result, txErr = h.Credits.RecordSettlement(r.Context(), tx, creditorID, credit.SettlementInput{
			StationID:       stationID,
			Amount:          money.New(req.Amount),
			TransactionDate: transactionDate,
			EnteredBy:       caller.UserID,
			InvoiceNumber:   req.InvoiceNumber,
		})
		return txErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, result)
}

// --- expenses ---

type recordExpenseRequest struct {
	StationID     string  `json:"stationId"`
	Category      string  `json:"category"`
	Description   string  `json:"description,omitempty"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	ReceiptNumber string  `json:"receiptNumber,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
}

func (h *Handlers) RecordExpense(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req recordExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stationID, err := idgen.Parse(req.StationID)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_ID", "stationId is not valid"))
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, apierr.Validationf("INVALID_DATE", "date must be YYYY-MM-DD"))
		return
	}

	var result *models.Expense
	err = h.UOW.WithTransaction(r.Context(), func(tx dbx.Tx) error {
		var txErr error
		result, txErr = h.Expenses.Record(r.Context(), tx, expense.RecordInput{
			StationID:     stationID,
			Category:      req.Category,
			Description:   req.Description,
			Amount:        money.New(req.Amount),
			Date:          date,
			ReceiptNumber: req.ReceiptNumber,
			PaymentMethod: req.PaymentMethod,
			EnteredBy:     caller.UserID,
		})
		return txErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, result)
}

func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	stationID, err := idParam(r, "stationId")
	if err != nil {
		writeError(w, err)
		return
	}
	month := r.URL.Query().Get("month")
	rows, err := h.Expenses.List(r.Context(), stationID, month)
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, rows)
}

// --- dashboard ---

func (h *Handlers) StationSummary(w http.ResponseWriter, r *http.Request) {
	stationID, err := idParam(r, "stationId")
	if err != nil {
		writeError(w, err)
		return
	}
	from, to, err := fromToParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.Dashboard.Summarize(r.Context(), stationID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, summary)
}

func (h *Handlers) MissedReadings(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.Dashboard.MissedReadings(r.Context(), caller.UserID, h.now())
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, rows)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]string{"status": "ok"})
}

func optionalID(raw *string) (*idgen.ID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := idgen.Parse(*raw)
	if err != nil {
		return nil, apierr.Validationf("INVALID_ID", "invalid id %q", *raw)
	}
	return &id, nil
}

func fromToParams(r *http.Request) (time.Time, time.Time, error) {
	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	from, err := time.Parse("2006-01-02", fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apierr.Validationf("INVALID_DATE", "from must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apierr.Validationf("INVALID_DATE", "to must be YYYY-MM-DD")
	}
	return from, to, nil
}
