package tank_test

import (
	"testing"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/tank"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

func baseTank() models.Tank {
	return models.Tank{
		Capacity:     volume.New(10000),
		CurrentLevel: volume.New(5000),
		TrackingMode: models.TrackingWarning,
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		name  string
		level float64
		want  models.TankStatus
	}{
		{"normal", 5000, models.TankNormal},
		{"low at default 20pct", 2000, models.TankLow},
		{"critical at default 10pct", 900, models.TankCritical},
		{"empty", 0, models.TankEmpty},
		{"overflow", 10500, models.TankOverflow},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tk := baseTank()
			tk.CurrentLevel = volume.New(c.level)
			if got := tank.Status(tk); got != c.want {
				t.Fatalf("Status(%v) = %v, want %v", c.level, got, c.want)
			}
		})
	}
}

func TestCanDispenseStrictRefusesNegative(t *testing.T) {
	tk := baseTank()
	tk.TrackingMode = models.TrackingStrict
	tk.CurrentLevel = volume.New(100)

	allowed, _ := tank.CanDispense(tk, volume.New(200))
	if allowed {
		t.Fatalf("expected strict tracking to refuse a sale that would go negative")
	}
}

func TestCanDispenseStrictAllowsWhenAllowNegative(t *testing.T) {
	tk := baseTank()
	tk.TrackingMode = models.TrackingStrict
	tk.AllowNegative = true
	tk.CurrentLevel = volume.New(100)

	allowed, _ := tank.CanDispense(tk, volume.New(200))
	if !allowed {
		t.Fatalf("expected allowNegative to permit a negative result")
	}
}

func TestCanDispenseWarningModeAlwaysAllowsButWarns(t *testing.T) {
	tk := baseTank()
	tk.CurrentLevel = volume.New(100)

	allowed, warnings := tank.CanDispense(tk, volume.New(500))
	if !allowed {
		t.Fatalf("warning mode must never refuse a sale")
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a warning for a sale that drives the tank negative")
	}
}

func TestCanDispenseDisabledIgnoresLevel(t *testing.T) {
	tk := baseTank()
	tk.TrackingMode = models.TrackingDisabled
	tk.CurrentLevel = volume.New(0)

	allowed, warnings := tank.CanDispense(tk, volume.New(99999))
	if !allowed || len(warnings) != 0 {
		t.Fatalf("disabled tracking must allow unconditionally with no warnings")
	}
}

func TestSinceLastRefill(t *testing.T) {
	tk := baseTank()
	after := volume.New(8000)
	tk.LevelAfterLastRefill = &after
	tk.CurrentLevel = volume.New(3000)

	delta, ok := tank.SinceLastRefill(tk)
	if !ok {
		t.Fatalf("expected a refill delta to be known")
	}
	if delta.Float64() != 5000 {
		t.Fatalf("expected delta 5000, got %v", delta.Float64())
	}
}

func TestSinceLastRefillUnknownWithoutHistory(t *testing.T) {
	tk := baseTank()
	_, ok := tank.SinceLastRefill(tk)
	if ok {
		t.Fatalf("expected unknown delta when no refill has ever been recorded")
	}
}
