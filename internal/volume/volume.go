// Package volume implements the three-fractional-digit fixed-point litre
// values required by §3 ("All volume values are fixed-point decimal with
// three fractional digits").
package volume

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Litres is a volume value rounded to three decimal places.
type Litres struct {
	d decimal.Decimal
}

var Zero = Litres{d: decimal.Zero}

func New(f float64) Litres {
	return Litres{d: decimal.NewFromFloat(f).Round(3)}
}

func FromString(s string) (Litres, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("volume: invalid value %q: %w", s, err)
	}
	return Litres{d: d.Round(3)}, nil
}

func (l Litres) Add(o Litres) Litres { return Litres{d: l.d.Add(o.d).Round(3)} }
func (l Litres) Sub(o Litres) Litres { return Litres{d: l.d.Sub(o.d).Round(3)} }
func (l Litres) Cmp(o Litres) int    { return l.d.Cmp(o.d) }
func (l Litres) IsZero() bool        { return l.d.IsZero() }
func (l Litres) IsNegative() bool    { return l.d.IsNegative() }

// Decimal exposes the underlying decimal for money.Amount.Mul.
func (l Litres) Decimal() decimal.Decimal { return l.d }

func (l Litres) Float64() float64 {
	f, _ := l.d.Float64()
	return f
}

func (l Litres) String() string { return l.d.StringFixed(3) }

// MaxZero returns max(0, raw) — the meter-reset clamp required by I2.
func MaxZero(raw Litres) Litres {
	if raw.d.IsNegative() {
		return Zero
	}
	return raw
}

func (l Litres) MarshalJSON() ([]byte, error) {
	return []byte(l.d.StringFixed(3)), nil
}

func (l *Litres) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	l.d = d.Round(3)
	return nil
}

func (l Litres) Value() (driver.Value, error) {
	return l.d.StringFixed(3), nil
}

func (l *Litres) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		l.d = decimal.Zero
		return nil
	case float64:
		l.d = decimal.NewFromFloat(v).Round(3)
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		l.d = d.Round(3)
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		l.d = d.Round(3)
		return nil
	default:
		return fmt.Errorf("volume: cannot scan %T into Litres", src)
	}
}
