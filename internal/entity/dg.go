package entity

import "github.com/shopspring/decimal"

// DangerousGoodsGroup is a regulated product family with its combined quantity.
type DangerousGoodsGroup struct {
	ProductName       string          `json:"product_name"`
	TemplateReference string          `json:"template_reference"`
	CombinedQuantity  decimal.Decimal `json:"combined_quantity"`
	Members           []LineItem      `json:"members"`
}
