package forms

import (
	"context"
	"math"
	"strings"

	"github.com/prudhvinik1/storeledger/internal/models"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Lower bounds (inclusive) of each tier, in currency units.
const (
	criticalThreshold = 100.0
	highThreshold     = 50.0
	mediumThreshold   = 20.0
)

type CashInput struct {
	Register       string  `json:"register"`
	ShiftDate      string  `json:"shift_date"`
	ExpectedAmount float64 `json:"expected_amount"`
	ActualAmount   float64 `json:"actual_amount"`
	Notes          string  `json:"notes"`
}

// Variance is actual minus expected, rounded to cents.
func Variance(expected, actual float64) float64 {
	return math.Round((actual-expected)*100) / 100
}

// CashSeverity classifies a variance by its magnitude: >=100 critical,
// >=50 high, >=20 medium, otherwise low.
func CashSeverity(variance float64) Severity {
	v := math.Abs(variance)
	switch {
	case v >= criticalThreshold:
		return SeverityCritical
	case v >= highThreshold:
		return SeverityHigh
	case v >= mediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func (in CashInput) Validate() error {
	if strings.TrimSpace(in.Register) == "" {
		return invalid("register", "is required")
	}
	if in.ExpectedAmount < 0 {
		return invalid("expected_amount", "must not be negative")
	}
	if in.ActualAmount < 0 {
		return invalid("actual_amount", "must not be negative")
	}
	if math.IsNaN(in.ExpectedAmount) || math.IsInf(in.ExpectedAmount, 0) {
		return invalid("expected_amount", "must be a number")
	}
	if math.IsNaN(in.ActualAmount) || math.IsInf(in.ActualAmount, 0) {
		return invalid("actual_amount", "must be a number")
	}
	return nil
}

func (f *Forms) SubmitCash(ctx context.Context, who models.Submitter, in CashInput) (*models.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	variance := Variance(in.ExpectedAmount, in.ActualAmount)
	severity := CashSeverity(variance)

	return f.finish(ctx, who, submission{
		kind:       "cash_reconciliation",
		collection: CollectionCash,
		record: map[string]any{
			"register":        in.Register,
			"shift_date":      in.ShiftDate,
			"expected_amount": in.ExpectedAmount,
			"actual_amount":   in.ActualAmount,
			"notes":           in.Notes,
		},
		derived: map[string]any{
			"variance": variance,
			"severity": string(severity),
		},
		severity: string(severity),
		notify: map[string]any{
			"register": in.Register,
			"expected": in.ExpectedAmount,
			"actual":   in.ActualAmount,
			"variance": variance,
		},
	})
}
