package core

import (
	"errors"
	"testing"
)

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if d.String() != "2024-03-15" {
		t.Fatalf("expected 2024-03-15, got %s", d.String())
	}
	if _, err := ParseDate("15.03.2024"); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestInvoiceTotalAndValidate(t *testing.T) {
	inv := Invoice{
		ElecAmount:     Money{Cents: 4530},
		GasAmount:      Money{Cents: 3010},
		ServicesAmount: Money{Cents: 500},
		TaxesAmount:    Money{Cents: 360},
	}
	if got := inv.Total().Cents; got != 8400 {
		t.Fatalf("total = %d, want 8400", got)
	}
	if err := inv.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	empty := Invoice{}
	if err := empty.Validate(); !errors.Is(err, ErrNoAmounts) {
		t.Fatalf("expected ErrNoAmounts, got %v", err)
	}
}

func TestServicePackValidate(t *testing.T) {
	cases := []struct {
		name string
		pack ServicePack
		want error
	}{
		{"valid", ServicePack{ServiceName: "Gym", TotalSessions: 10}, nil},
		{"empty name", ServicePack{ServiceName: "  ", TotalSessions: 10}, ErrEmptyServiceName},
		{"zero sessions", ServicePack{ServiceName: "Gym", TotalSessions: 0}, ErrInvalidSessionCount},
		{"negative amount", ServicePack{ServiceName: "Gym", TotalSessions: 5, AmountPaid: Money{Cents: -1}}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.pack.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestServicePackDerivedState(t *testing.T) {
	p := ServicePack{ServiceName: "Gym", TotalSessions: 10, UsedSessions: 3}
	if p.Exhausted() {
		t.Fatal("pack should not be exhausted at 3/10")
	}
	if p.Remaining() != 7 {
		t.Fatalf("remaining = %d, want 7", p.Remaining())
	}
	if p.ProgressPercent() != 30 {
		t.Fatalf("progress = %v, want 30", p.ProgressPercent())
	}

	p.UsedSessions = 10
	if !p.Exhausted() || p.Remaining() != 0 {
		t.Fatalf("pack at 10/10 should be exhausted with 0 remaining, got remaining=%d", p.Remaining())
	}

	// Overdraw is representable: exhaustion is derived, not a ceiling.
	p.UsedSessions = 12
	if !p.Exhausted() || p.Remaining() != -2 {
		t.Fatalf("overdrawn pack: exhausted=%v remaining=%d", p.Exhausted(), p.Remaining())
	}
}

func TestPlannedMealValidate(t *testing.T) {
	m := PlannedMeal{Date: NewDate(2024, 5, 1), MealType: MealLunch, RecipeID: 1}
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.MealType = "brunch"
	if err := m.Validate(); !errors.Is(err, ErrInvalidMealType) {
		t.Fatalf("expected ErrInvalidMealType, got %v", err)
	}
}
