package entity

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/shipdocs/constants"
)

// ItemCheck is the reconciliation outcome of one order line.
type ItemCheck struct {
	Line             int                       `json:"line"`
	ItemCode         *string                   `json:"item_code,omitempty"`
	Description      string                    `json:"description"`
	Status           constants.ItemMatchStatus `json:"status"`
	OrderQuantity    decimal.NullDecimal       `json:"order_quantity"`
	DeclaredQuantity decimal.NullDecimal       `json:"declared_quantity"`
	DeclaredUnit     *string                   `json:"declared_unit,omitempty"`
	MatchedWith      *string                   `json:"matched_with,omitempty"`
	BatchNumber      *string                   `json:"batch_number,omitempty"`
}

// OrderValidation is the verdict for one order number.
type OrderValidation struct {
	OrderNumber       string                     `json:"order_number"`
	Status            constants.ValidationStatus `json:"status"`
	Items             []ItemCheck                `json:"items"`
	MatchedItems      int                        `json:"matched_items"`
	TotalProductItems int                        `json:"total_product_items"`
	UnclaimedDeclared []string                   `json:"unclaimed_declared,omitempty"`
	Notes             []string                   `json:"notes,omitempty"`
}

// ValidationResult aggregates per-order verdicts. It is derived, never authoritative.
type ValidationResult struct {
	OverallStatus constants.ValidationStatus `json:"overall_status"`
	Passed        bool                       `json:"passed"`
	Orders        []OrderValidation          `json:"orders"`
}

// Blocked reports whether downstream generation must be gated.
func (r *ValidationResult) Blocked() bool {
	return r.OverallStatus == constants.ValidationFailed
}
