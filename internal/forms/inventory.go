package forms

import (
	"context"
	"math"
	"strings"

	"github.com/prudhvinik1/storeledger/internal/models"
)

var inventoryIssueTypes = []string{"damaged", "missing", "expired", "count_discrepancy", "recall"}

type InventoryInput struct {
	SKU         string  `json:"sku"`
	ProductName string  `json:"product_name"`
	IssueType   string  `json:"issue_type"`
	Quantity    int     `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
	Location    string  `json:"location"`
	Notes       string  `json:"notes"`
}

func (in InventoryInput) Validate() error {
	if strings.TrimSpace(in.SKU) == "" {
		return invalid("sku", "is required")
	}
	if strings.TrimSpace(in.ProductName) == "" {
		return invalid("product_name", "is required")
	}
	if !oneOf(in.IssueType, inventoryIssueTypes...) {
		return invalid("issue_type", "must be one of "+strings.Join(inventoryIssueTypes, ", "))
	}
	if in.Quantity <= 0 {
		return invalid("quantity", "must be at least 1")
	}
	if in.Quantity > 100000 {
		return invalid("quantity", "must be at most 100000")
	}
	if in.UnitCost < 0 || math.IsNaN(in.UnitCost) || math.IsInf(in.UnitCost, 0) {
		return invalid("unit_cost", "must be a non-negative number")
	}
	return nil
}

// EstimatedLoss is quantity times unit cost, rounded to cents.
func (in InventoryInput) EstimatedLoss() float64 {
	return math.Round(float64(in.Quantity)*in.UnitCost*100) / 100
}

func (f *Forms) SubmitInventory(ctx context.Context, who models.Submitter, in InventoryInput) (*models.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	loss := in.EstimatedLoss()

	return f.finish(ctx, who, submission{
		kind:       "inventory_issue",
		collection: CollectionInventory,
		record: map[string]any{
			"sku":          in.SKU,
			"product_name": in.ProductName,
			"issue_type":   in.IssueType,
			"quantity":     in.Quantity,
			"unit_cost":    in.UnitCost,
			"location":     in.Location,
			"notes":        in.Notes,
		},
		derived: map[string]any{"estimated_loss": loss},
		notify: map[string]any{
			"sku":            in.SKU,
			"product_name":   in.ProductName,
			"issue_type":     in.IssueType,
			"quantity":       in.Quantity,
			"estimated_loss": loss,
		},
	})
}
