package core

import (
	"errors"
	"strings"
	"time"
)

const (
	MealLunch  MealType = "lunch"
	MealDinner MealType = "dinner"
)

// kWh figures extracted from a bill carry a source tag so downstream
// consumers can flag low-confidence extractions.
const (
	KwhLabeled    KwhSource = "labeled"
	KwhPositional KwhSource = "positional"
	KwhMissing    KwhSource = ""
)

type (
	MealType  string
	KwhSource string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Invoice is one parsed utility bill. Created once per successfully
	// ingested document, never updated afterwards.
	Invoice struct {
		ID             int64
		InvoiceNumber  string
		IssueDate      Date
		ElecAmount     Money
		GasAmount      Money
		ServicesAmount Money
		TaxesAmount    Money
		TotalAmount    Money
		ElecKwh        float64
		GasKwh         float64
		ElecKwhSource  KwhSource
		GasKwhSource   KwhSource
		CreatedAt      time.Time
	}

	// ServicePack is a pre-paid bundle of consumable sessions (a "bono").
	// UsedSessions and SessionDates move together: one date is appended per
	// consumed session, and both reset on renewal.
	ServicePack struct {
		ID              int64
		ServiceName     string
		TotalSessions   int
		UsedSessions    int
		AmountPaid      Money
		LastPaymentDate Date
		SessionDates    []Date
		CreatedAt       time.Time
	}

	RecipeIngredient struct {
		Name   string
		Amount string
		Store  string
	}

	Recipe struct {
		ID          int64
		Name        string
		Steps       []string
		Ingredients []RecipeIngredient
	}

	PlannedMeal struct {
		Date     Date
		MealType MealType
		RecipeID int64
	}

	ShoppingItem struct {
		ID       int64
		Name     string
		IsManual bool
		Checked  bool
	}

	User struct {
		ID       int64
		Username string
		Role     string
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyServiceName    = errors.New("empty service name")
	ErrInvalidSessionCount = errors.New("total sessions must be at least 1")
	ErrNoAmounts           = errors.New("no monetary amounts detected")
	ErrEmptyRecipeName     = errors.New("recipe name too short")
	ErrNoSteps             = errors.New("recipe needs at least one step")
	ErrNoIngredients       = errors.New("recipe needs at least one ingredient")
	ErrInvalidMealType     = errors.New("invalid meal type")
	ErrEmptyItemName       = errors.New("empty item name")
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrNotFound            = errors.New("not found")
)

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Today returns the current date, truncated to midnight UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Total returns the sum of the four monetary components of the bill.
func (i Invoice) Total() Money {
	return Money{Cents: i.ElecAmount.Cents + i.GasAmount.Cents + i.ServicesAmount.Cents + i.TaxesAmount.Cents}
}

// Validate rejects invoices whose monetary total is zero: a bill where none
// of the amount patterns matched is an extraction failure, not a record.
func (i Invoice) Validate() error {
	if i.Total().Cents == 0 {
		return ErrNoAmounts
	}
	return nil
}

// Validate checks the fields fixed at pack creation time.
func (p ServicePack) Validate() error {
	if strings.TrimSpace(p.ServiceName) == "" {
		return ErrEmptyServiceName
	}
	if p.TotalSessions < 1 {
		return ErrInvalidSessionCount
	}
	if p.AmountPaid.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Remaining returns the sessions left before the pack is exhausted.
// Can be negative when a pack has been consumed past its nominal capacity.
func (p ServicePack) Remaining() int {
	return p.TotalSessions - p.UsedSessions
}

// Exhausted reports whether all purchased sessions have been consumed.
func (p ServicePack) Exhausted() bool {
	return p.UsedSessions >= p.TotalSessions
}

// ProgressPercent returns consumption as a 0-100 percentage for display.
func (p ServicePack) ProgressPercent() float64 {
	if p.TotalSessions == 0 {
		return 0
	}
	return 100 * float64(p.UsedSessions) / float64(p.TotalSessions)
}

func (r Recipe) Validate() error {
	if len(strings.TrimSpace(r.Name)) < 3 {
		return ErrEmptyRecipeName
	}
	if len(r.Steps) == 0 {
		return ErrNoSteps
	}
	if len(r.Ingredients) == 0 {
		return ErrNoIngredients
	}
	for _, ing := range r.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return ErrEmptyItemName
		}
	}
	return nil
}

func (m PlannedMeal) Validate() error {
	if m.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	switch m.MealType {
	case MealLunch, MealDinner:
	default:
		return ErrInvalidMealType
	}
	if m.RecipeID <= 0 {
		return errors.New("invalid recipe id")
	}
	return nil
}
