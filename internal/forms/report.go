package forms

import (
	"context"
	"strings"

	"github.com/prudhvinik1/storeledger/internal/models"
)

type ReportType string

const (
	ReportDisciplinary ReportType = "disciplinary"
	ReportRecognition  ReportType = "recognition"
)

var disciplinaryActions = []string{"verbal_warning", "written_warning", "final_warning", "suspension"}

type ReportInput struct {
	Type         ReportType `json:"type"`
	EmployeeID   string     `json:"employee_id"`
	EmployeeName string     `json:"employee_name"`
	Description  string     `json:"description"`
	ActionTaken  string     `json:"action_taken"`
	FollowUpDate string     `json:"follow_up_date"`
}

func (in ReportInput) Validate() error {
	if in.Type != ReportDisciplinary && in.Type != ReportRecognition {
		return invalid("type", "must be disciplinary or recognition")
	}
	if strings.TrimSpace(in.EmployeeName) == "" {
		return invalid("employee_name", "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return invalid("description", "is required")
	}
	if in.Type == ReportDisciplinary && !oneOf(in.ActionTaken, disciplinaryActions...) {
		return invalid("action_taken", "must be one of "+strings.Join(disciplinaryActions, ", "))
	}
	return nil
}

func (f *Forms) SubmitReport(ctx context.Context, who models.Submitter, in ReportInput) (*models.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	record := map[string]any{
		"type":          string(in.Type),
		"employee_id":   in.EmployeeID,
		"employee_name": in.EmployeeName,
		"description":   in.Description,
	}
	if in.Type == ReportDisciplinary {
		record["action_taken"] = in.ActionTaken
		record["follow_up_date"] = in.FollowUpDate
	}

	return f.finish(ctx, who, submission{
		kind:       string(in.Type) + "_report",
		collection: CollectionReport,
		record:     record,
		notify: map[string]any{
			"employee_name": in.EmployeeName,
			"action_taken":  in.ActionTaken,
		},
	})
}
