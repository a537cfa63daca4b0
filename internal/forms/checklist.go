package forms

import (
	"context"
	"fmt"
	"strings"

	"github.com/prudhvinik1/storeledger/internal/models"
)

type ChecklistKind string

const (
	ChecklistOpening     ChecklistKind = "opening"
	ChecklistClosing     ChecklistKind = "closing"
	ChecklistMaintenance ChecklistKind = "maintenance"
)

type ChecklistItem struct {
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

type ChecklistInput struct {
	Kind        ChecklistKind   `json:"kind"`
	Items       []ChecklistItem `json:"items"`
	Description string          `json:"description"`
	Urgency     string          `json:"urgency"`
	Notes       string          `json:"notes"`
}

// Gated reports whether the kind may only be finalized once every item is done.
func (k ChecklistKind) Gated() bool {
	return k == ChecklistOpening || k == ChecklistClosing
}

// Incomplete returns the labels of items not yet completed.
func (in ChecklistInput) Incomplete() []string {
	var out []string
	for _, item := range in.Items {
		if !item.Completed {
			out = append(out, item.Label)
		}
	}
	return out
}

func (in ChecklistInput) Validate() error {
	switch in.Kind {
	case ChecklistOpening, ChecklistClosing:
		if len(in.Items) == 0 {
			return invalid("items", "must not be empty")
		}
		for i, item := range in.Items {
			if strings.TrimSpace(item.Label) == "" {
				return invalid(fmt.Sprintf("items[%d].label", i), "is required")
			}
		}
		if missing := in.Incomplete(); len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrChecklistIncomplete, strings.Join(missing, ", "))
		}
	case ChecklistMaintenance:
		if strings.TrimSpace(in.Description) == "" {
			return invalid("description", "is required")
		}
		if in.Urgency != "" && !oneOf(in.Urgency, "low", "normal", "urgent") {
			return invalid("urgency", "must be low, normal or urgent")
		}
	default:
		return invalid("kind", "must be opening, closing or maintenance")
	}
	return nil
}

func (f *Forms) SubmitChecklist(ctx context.Context, who models.Submitter, in ChecklistInput) (*models.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	items := make([]map[string]any, len(in.Items))
	for i, item := range in.Items {
		items[i] = map[string]any{"label": item.Label, "completed": item.Completed}
	}

	record := map[string]any{
		"kind":  string(in.Kind),
		"items": items,
		"notes": in.Notes,
	}
	if in.Kind == ChecklistMaintenance {
		record["description"] = in.Description
		record["urgency"] = in.Urgency
	}

	return f.finish(ctx, who, submission{
		kind:       string(in.Kind) + "_checklist",
		collection: CollectionChecklist,
		record:     record,
		derived: map[string]any{
			"completed_items": len(in.Items) - len(in.Incomplete()),
			"total_items":     len(in.Items),
		},
		severity: in.Urgency,
		notify: map[string]any{
			"kind":        string(in.Kind),
			"description": in.Description,
		},
	})
}
