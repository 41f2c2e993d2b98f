package entity

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/shipdocs/constants"
)

// Weight is a declared mass with its unit as written (kg, lb).
type Weight struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// DeclaredItem is one product line from a shipment notification.
type DeclaredItem struct {
	Quantity    decimal.NullDecimal `json:"quantity"`
	Unit        *string             `json:"unit,omitempty"`
	Description string              `json:"description"`
	BatchNumber *string             `json:"batch_number,omitempty"`
}

// OrderShipment carries the per-order block details that are not items.
type OrderShipment struct {
	GrossWeight      *Weight `json:"gross_weight,omitempty"`
	NetWeight        *Weight `json:"net_weight,omitempty"`
	PalletCount      *int    `json:"pallet_count,omitempty"`
	PalletDimensions *string `json:"pallet_dimensions,omitempty"`
}

// ShipmentInstruction is the record parsed from a notification email. Immutable once returned.
type ShipmentInstruction struct {
	OrderNumbers        []string                  `json:"order_numbers"`
	PONumbers           []string                  `json:"po_numbers"`
	CompanyName         *string                   `json:"company_name,omitempty"`
	ItemsByOrder        map[string][]DeclaredItem `json:"items_by_order"`
	OrderDetails        map[string]OrderShipment  `json:"order_details,omitempty"`
	Items               []DeclaredItem            `json:"items"`
	TotalWeight         *Weight                   `json:"total_weight,omitempty"`
	PalletCount         *int                      `json:"pallet_count,omitempty"`
	PalletDimensions    *string                   `json:"pallet_dimensions,omitempty"`
	SpecialInstructions *string                   `json:"special_instructions,omitempty"`
	Source              constants.Source          `json:"source,omitempty"`
}

// DeclaredFor returns the items declared for orderNumber. When the email did not attribute
// items to orders, every declared item is returned.
func (s *ShipmentInstruction) DeclaredFor(orderNumber string) []DeclaredItem {
	if items, ok := s.ItemsByOrder[orderNumber]; ok {
		return items
	}
	if len(s.ItemsByOrder) == 0 {
		return s.Items
	}
	return nil
}
