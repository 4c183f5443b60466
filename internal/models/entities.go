package models

import (
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/money"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

// Plan encodes resource ceilings, monthly quotas, retention windows, and
// feature flags for an owner's subscription (§3, §4.8).
type Plan struct {
	ID   idgen.ID
	Name string

	MaxStations  int
	MaxPumpsPerStation   int
	MaxNozzlesPerPump    int
	MaxEmployees int
	MaxCreditors int

	BackdatedDays int // §4.1: oldest readingDate a caller may submit, today-inclusive

	MonthlyExportQuota int
	MonthlyReportQuota int
	MonthlyManualEntryQuota int

	RetentionSalesDays     int // -1 == unlimited (super_admin)
	RetentionProfitDays    int
	RetentionAnalyticsDays int
	RetentionAuditDays     int
	RetentionTransactionsDays int

	CanExport          bool
	CanTrackExpenses   bool
	CanTrackCredits    bool
	CanViewProfitLoss  bool

	CreatedAt time.Time
}

// User is an authenticated principal scoped by Role (§3, §4.7).
type User struct {
	ID          idgen.ID
	Email       string
	CredentialHash string
	DisplayName string
	Role        Role
	StationID   *idgen.ID // managers/employees
	PlanID      *idgen.ID // owners
	CreatedBy   *idgen.ID
	Active      bool
	CreatedAt   time.Time
}

// Station is the multi-tenant unit (§3, §4.7).
type Station struct {
	ID      idgen.ID
	Name    string
	Code    string
	Contact string
	OwnerID idgen.ID
	Brand   string

	ShiftRequiredForReading bool
	AlertOnMissedReadingDays int

	CreatedAt time.Time
}

type Pump struct {
	ID          idgen.ID
	StationID   idgen.ID
	DisplayName string
	PumpNumber  int
	Status      PumpStatus
	CreatedAt   time.Time
}

type Nozzle struct {
	ID               idgen.ID
	PumpID           idgen.ID
	NozzleNumber     int
	FuelType         FuelType
	Status           NozzleStatus
	InitialReading   *volume.Litres
	LastReading      *volume.Litres
	LastReadingDate  *time.Time
	CreatedAt        time.Time
}

// FuelPrice is effective-dated per (station, fuelType) (§3).
type FuelPrice struct {
	ID            idgen.ID
	StationID     idgen.ID
	FuelType      FuelType
	SellingPrice  money.Amount
	CostPrice     *money.Amount
	EffectiveFrom time.Time
	CreatedAt     time.Time
}

// NozzleReading is the cumulative-volume meter snapshot (§3, §4.1).
type NozzleReading struct {
	ID         idgen.ID
	NozzleID   idgen.ID
	StationID  idgen.ID // denormalized
	PumpID     idgen.ID // denormalized
	FuelType   FuelType // denormalized

	EnteredBy  idgen.ID
	ReadingDate time.Time
	ReadingValue volume.Litres
	PreviousReading *idgen.ID
	PreviousReadingValue *volume.Litres

	LitresSold   volume.Litres
	PricePerLitre money.Amount
	TotalAmount  money.Amount

	IsInitialReading bool // forced false on every write path — I9
	IsSample         bool
	Source           ReadingSource

	ApprovalStatus ApprovalStatus
	ApprovedBy     *idgen.ID
	ApprovedAt     *time.Time
	RejectionReason *string

	Warnings []ReadingWarning

	ShiftID       *idgen.ID
	SettlementID  *idgen.ID
	TransactionID *idgen.ID
	FlowStatus    FlowStatus

	Notes *string

	CreatedAt time.Time
}

// PaymentBreakdown is the cash/online/credit split of a day's sales (§3, I4).
type PaymentBreakdown struct {
	Cash   money.Amount
	Online money.Amount
	Credit money.Amount
}

func (p PaymentBreakdown) Total() money.Amount {
	return money.Sum(p.Cash, p.Online, p.Credit)
}

// CreditAllocation is one line of a DailyTransaction's credit split (§3).
type CreditAllocation struct {
	CreditorID idgen.ID
	Amount     money.Amount
}

// DailyTransaction groups a station-day's readings with a payment
// declaration (§3, §4.2).
type DailyTransaction struct {
	ID        idgen.ID
	StationID idgen.ID
	Date      time.Time

	TotalLitres    volume.Litres
	TotalSaleValue money.Amount

	PaymentBreakdown  PaymentBreakdown
	CreditAllocations []CreditAllocation
	ReadingIDs        []idgen.ID

	Status       TransactionStatus
	SettlementID *idgen.ID

	Notes *string

	CreatedBy idgen.ID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmployeeShortfall records a per-employee variance within a Settlement (§3).
type EmployeeShortfall struct {
	UserID    idgen.ID
	Name      string
	Shortfall money.Amount
	Count     int
}

// Settlement is the owner-side end-of-day reconciliation (§3, glossary).
type Settlement struct {
	ID        idgen.ID
	StationID idgen.ID
	Date      time.Time

	ExpectedCash money.Amount
	ActualCash   money.Amount
	Variance     money.Amount

	EmployeeReportedCash   money.Amount
	EmployeeReportedOnline money.Amount
	EmployeeReportedCredit money.Amount

	OwnerConfirmedOnline money.Amount
	OwnerConfirmedCredit money.Amount

	VarianceCash   money.Amount
	VarianceOnline money.Amount
	VarianceCredit money.Amount

	Status         SettlementStatus
	FinalizedAt    *time.Time
	ReadingIDs     []idgen.ID
	EmployeeShortfalls map[idgen.ID]EmployeeShortfall

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Creditor is a deferred-payment customer (§3, §4.4).
type Creditor struct {
	ID           idgen.ID
	StationID    idgen.ID
	DisplayName  string
	BusinessName string
	Contact      string

	CreditLimit  money.Amount // 0 == unlimited
	CreditPeriodDays int

	CurrentBalance money.Amount

	Aging0To30  money.Amount
	Aging31To60 money.Amount
	Aging61To90 money.Amount
	AgingOver90 money.Amount

	LastTransactionDate *time.Time
	LastPaymentDate     *time.Time

	Flagged       bool
	FlagReason    *string
	Active        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreditTransaction is one credit extension or settlement against a
// creditor (§3, §4.4).
type CreditTransaction struct {
	ID         idgen.ID
	StationID  idgen.ID
	CreditorID idgen.ID
	Type       CreditTransactionType
	Amount     money.Amount

	FuelType       *FuelType
	Litres         *volume.Litres
	PricePerLitre  *money.Amount
	LinkedReadingID *idgen.ID

	InvoiceNumber string
	VehicleNumber string
	TransactionDate time.Time

	EnteredBy idgen.ID
	CreatedAt time.Time
}

// CreditSettlementLink maps a settlement credit transaction to the original
// credit invoice(s) it pays down (§3, §4.4).
type CreditSettlementLink struct {
	ID                    idgen.ID
	SettlementTransactionID idgen.ID
	OriginalCreditTransactionID idgen.ID
	AllocatedAmount       money.Amount
	CreatedAt             time.Time
}

// Shift is an employee work interval (§3, §4.6).
type Shift struct {
	ID        idgen.ID
	StationID idgen.ID
	EmployeeID idgen.ID
	Date      time.Time
	StartTime time.Time
	EndTime   *time.Time
	ShiftType string

	OpeningCash    money.Amount
	CashCollected  money.Amount
	OnlineCollected money.Amount
	ExpectedCash   money.Amount
	CashDifference money.Amount

	ReadingsCount    int
	TotalLitresSold  volume.Litres
	TotalSalesAmount money.Amount

	Status   ShiftStatus
	EndedBy  *idgen.ID
	EndNotes *string

	CreatedAt time.Time
}

// CashHandover is one hop in the cash-movement chain (§3, §4.3).
type CashHandover struct {
	ID        idgen.ID
	StationID idgen.ID
	Type      HandoverType
	Date      time.Time

	FromUserID *idgen.ID
	ToUserID   *idgen.ID

	ExpectedAmount money.Amount
	ActualAmount   *money.Amount
	Difference     *money.Amount
	VariancePct    *float64

	PreviousHandoverID *idgen.ID
	Status             HandoverStatus

	ShiftID *idgen.ID

	BankName         *string
	DepositReference *string
	ReceiptURL       *string

	DisputeNote      *string
	ResolutionNotes  *string
	ResolvedBy       *idgen.ID
	ResolvedAt       *time.Time

	ConfirmedBy *idgen.ID
	ConfirmedAt *time.Time
	Notes       *string

	CreatedAt time.Time
}

// Tank is on-site fuel storage (§3, §4.5).
type Tank struct {
	ID        idgen.ID
	StationID idgen.ID
	FuelType  FuelType

	DisplayName    *string
	FriendlyName   *string

	Capacity    volume.Litres
	CurrentLevel volume.Litres

	LowLevelWarning  *volume.Litres
	LowLevelPercent  *float64
	CriticalLevelWarning *volume.Litres
	CriticalLevelPercent *float64

	LevelAfterLastRefill *volume.Litres
	LastRefillDate       *time.Time
	LastRefillAmount     *volume.Litres

	LastDipReading *volume.Litres
	LastDipDate    *time.Time

	TrackingMode  TankTrackingMode
	AllowNegative bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TankRefill is one delivery, adjustment, or correction to a Tank (§3, §4.5).
type TankRefill struct {
	ID        idgen.ID
	TankID    idgen.ID
	StationID idgen.ID // denormalized

	Litres volume.Litres // non-zero; negative = correction

	RefillDate time.Time
	RefillTime *time.Time

	CostPerLitre *money.Amount
	TotalCost    *money.Amount

	Supplier string
	Invoice  string
	Vehicle  string
	Driver   string

	TankLevelBefore volume.Litres
	TankLevelAfter  volume.Litres

	EntryType  TankRefillEntryType
	Backdated  bool

	Verified   bool
	VerifiedBy *idgen.ID
	VerifiedAt *time.Time

	CreatedAt time.Time
}

// Expense is a station operating cost (§3; supplemented operations in
// SPEC_FULL.md §D.1).
type Expense struct {
	ID          idgen.ID
	StationID   idgen.ID
	Category    string
	Description string
	Amount      money.Amount
	Date        time.Time
	ExpenseMonth string // derived YYYY-MM

	ReceiptNumber string
	PaymentMethod string

	EnteredBy idgen.ID
	CreatedAt time.Time
}

// AuditLog is an append-only record of a write (§3, §4.9).
type AuditLog struct {
	ID idgen.ID

	UserID       *idgen.ID
	CachedEmail  string
	CachedRole   Role

	StationID *idgen.ID
	Action    string
	EntityType string
	EntityID  idgen.ID

	OldValues map[string]interface{}
	NewValues map[string]interface{}

	Description string

	IP        string
	UserAgent string

	Severity AuditSeverity
	Category AuditCategory

	Success      bool
	ErrorMessage string

	CreatedAt time.Time
}
