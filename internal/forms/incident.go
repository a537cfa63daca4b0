package forms

import (
	"context"
	"strings"
	"time"

	"github.com/prudhvinik1/storeledger/internal/models"
)

var incidentCategories = []string{"safety", "security", "customer", "property", "other"}

type IncidentInput struct {
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	Severity       Severity  `json:"severity"`
	OccurredAt     time.Time `json:"occurred_at"`
	InjuryInvolved bool      `json:"injury_involved"`
	PoliceReport   string    `json:"police_report_number"`
}

func (in IncidentInput) Validate(now time.Time) error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "is required")
	}
	if !oneOf(in.Category, incidentCategories...) {
		return invalid("category", "must be one of "+strings.Join(incidentCategories, ", "))
	}
	if strings.TrimSpace(in.Description) == "" {
		return invalid("description", "is required")
	}
	if !oneOf(string(in.Severity), string(SeverityLow), string(SeverityMedium), string(SeverityHigh), string(SeverityCritical)) {
		return invalid("severity", "must be low, medium, high or critical")
	}
	if in.OccurredAt.IsZero() {
		return invalid("occurred_at", "is required")
	}
	if in.OccurredAt.After(now.Add(5 * time.Minute)) {
		return invalid("occurred_at", "must not be in the future")
	}
	return nil
}

// effectiveSeverity raises any injury to at least high.
func (in IncidentInput) effectiveSeverity() Severity {
	if in.InjuryInvolved && (in.Severity == SeverityLow || in.Severity == SeverityMedium) {
		return SeverityHigh
	}
	return in.Severity
}

func (f *Forms) SubmitIncident(ctx context.Context, who models.Submitter, in IncidentInput) (*models.Receipt, error) {
	if err := in.Validate(f.now()); err != nil {
		return nil, err
	}
	severity := in.effectiveSeverity()

	return f.finish(ctx, who, submission{
		kind:       "incident",
		collection: CollectionIncident,
		record: map[string]any{
			"title":                in.Title,
			"category":             in.Category,
			"description":          in.Description,
			"occurred_at":          in.OccurredAt.UTC().Format(time.RFC3339),
			"injury_involved":      in.InjuryInvolved,
			"police_report_number": in.PoliceReport,
		},
		derived:  map[string]any{"severity": string(severity)},
		severity: string(severity),
		notify: map[string]any{
			"title":           in.Title,
			"category":        in.Category,
			"injury_involved": in.InjuryInvolved,
		},
	})
}
