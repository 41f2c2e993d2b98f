package entity

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/shipdocs/constants"
)

// AddressBlock is a structured postal address. Nil fields are unknown.
type AddressBlock struct {
	Company    *string  `json:"company,omitempty"`
	Attention  *string  `json:"attention,omitempty"`
	Street     []string `json:"street,omitempty"`
	City       *string  `json:"city,omitempty"`
	Province   *string  `json:"province,omitempty"`
	PostalCode *string  `json:"postal_code,omitempty"`
	Country    *string  `json:"country,omitempty"`
}

// IsEmpty reports whether no field of the block is known.
func (a AddressBlock) IsEmpty() bool {
	return a.Company == nil && a.Attention == nil && len(a.Street) == 0 &&
		a.City == nil && a.Province == nil && a.PostalCode == nil && a.Country == nil
}

// Format renders the block as newline-separated lines, skipping unknown fields.
func (a AddressBlock) Format() string {
	var lines []string
	if a.Company != nil {
		lines = append(lines, *a.Company)
	}
	if a.Attention != nil {
		lines = append(lines, "Attn: "+*a.Attention)
	}
	lines = append(lines, a.Street...)
	var cityLine []string
	if a.City != nil {
		cityLine = append(cityLine, *a.City+",")
	}
	if a.Province != nil {
		cityLine = append(cityLine, *a.Province)
	}
	if a.PostalCode != nil {
		cityLine = append(cityLine, *a.PostalCode)
	}
	if len(cityLine) > 0 {
		lines = append(lines, strings.TrimSuffix(strings.Join(cityLine, " "), ","))
	}
	if a.Country != nil {
		lines = append(lines, *a.Country)
	}
	return strings.Join(lines, "\n")
}

// LineItem is one order line.
type LineItem struct {
	ItemCode      *string             `json:"item_code,omitempty"`
	Description   string              `json:"description"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	Unit          *string             `json:"unit,omitempty"`
	UnitPrice     decimal.NullDecimal `json:"unit_price"`
	TotalPrice    decimal.NullDecimal `json:"total_price"`
	BatchNumber   *string             `json:"batch_number,omitempty"`
	SourceOrderID *string             `json:"source_order_id,omitempty"`
}

// OrderRecord is the canonical sales order. Only Items[i].BatchNumber is written after creation.
type OrderRecord struct {
	OrderNumber     *string               `json:"order_number,omitempty"`
	CustomerName    *string               `json:"customer_name,omitempty"`
	BillingAddress  AddressBlock          `json:"billing_address"`
	ShippingAddress AddressBlock          `json:"shipping_address"`
	OrderDate       *string               `json:"order_date,omitempty"`
	ShipDate        *string               `json:"ship_date,omitempty"`
	PONumber        *string               `json:"po_number,omitempty"`
	Terms           *string               `json:"terms,omitempty"`
	Items           []LineItem            `json:"items"`
	Subtotal        decimal.NullDecimal   `json:"subtotal"`
	Tax             decimal.NullDecimal   `json:"tax"`
	Total           decimal.NullDecimal   `json:"total"`
	Status          constants.OrderStatus `json:"status"`
	Source          constants.Source      `json:"source,omitempty"`
	Filename        string                `json:"filename,omitempty"`
}

// Number returns the order number or "" when unknown.
func (o *OrderRecord) Number() string {
	return StrValue(o.OrderNumber)
}

// Clone returns a deep copy so callers can reconcile without sharing item slices.
func (o *OrderRecord) Clone() *OrderRecord {
	if o == nil {
		return nil
	}
	c := *o
	c.BillingAddress = o.BillingAddress.clone()
	c.ShippingAddress = o.ShippingAddress.clone()
	if o.Items != nil {
		c.Items = make([]LineItem, len(o.Items))
		copy(c.Items, o.Items)
		for i := range c.Items {
			c.Items[i].BatchNumber = cloneStr(o.Items[i].BatchNumber)
		}
	}
	return &c
}

func (a AddressBlock) clone() AddressBlock {
	c := a
	if a.Street != nil {
		c.Street = append([]string(nil), a.Street...)
	}
	return c
}

// Str returns a pointer to a trimmed copy of s, or nil when s is blank.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// StrValue dereferences p, returning "" for unknown.
func StrValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
