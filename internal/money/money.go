// Package money implements the two-fractional-digit fixed-point currency
// values used across the domain layer (§3: all monetary values are
// fixed-point decimal with two fractional digits).
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a currency value rounded to two decimal places on every
// operation that produces a new value, so accumulated rounding error never
// creeps past a single cent (I3, I4).
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// New builds an Amount from a float, rounding half-up to 2 places.
func New(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f).Round(2)}
}

// FromString parses a decimal string such as "5050.00".
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return Amount{d: d.Round(2)}, nil
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d).Round(2)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d).Round(2)} }
func (a Amount) Neg() Amount         { return Amount{d: a.d.Neg()} }

// Mul multiplies by a plain decimal multiplier (e.g. litres sold) and rounds
// half-up to 2 places, matching I3: totalAmount = round2(litresSold × price).
func (a Amount) Mul(multiplier decimal.Decimal) Amount {
	return Amount{d: a.d.Mul(multiplier).Round(2)}
}

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) IsZero() bool              { return a.d.IsZero() }
func (a Amount) IsNegative() bool          { return a.d.IsNegative() }
func (a Amount) IsPositive() bool          { return a.d.IsPositive() }

// AbsDiff returns |a-b|, used by the handover variance check (§4.3).
func AbsDiff(a, b Amount) Amount {
	return Amount{d: a.d.Sub(b.d).Abs()}
}

// Float64 exposes the value for JSON marshaling and external reporting; all
// internal arithmetic and invariant checks use the decimal representation.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

func (a Amount) String() string { return a.d.StringFixed(2) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.StringFixed(2)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	a.d = d.Round(2)
	return nil
}

func (a Amount) Value() (driver.Value, error) {
	return a.d.StringFixed(2), nil
}

func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		a.d = decimal.Zero
		return nil
	case float64:
		a.d = decimal.NewFromFloat(v).Round(2)
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		a.d = d.Round(2)
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		a.d = d.Round(2)
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T into Amount", src)
	}
}

// Sum adds up a slice of Amounts, rounding once at the end.
func Sum(amounts ...Amount) Amount {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.d)
	}
	return Amount{d: total.Round(2)}
}

// WithinTolerance reports whether |a-b| <= tolerance, used for I4's
// ±0.01 balance check.
func WithinTolerance(a, b, tolerance Amount) bool {
	return AbsDiff(a, b).d.LessThanOrEqual(tolerance.d)
}
