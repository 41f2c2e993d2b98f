package llm

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/shipdocs/internal/entity"
)

const (
	maxTextChars  = 12000
	maxTableChars = 6000
)

// OrderPromptInput carries what the structurer knows about one order document.
type OrderPromptInput struct {
	Filename     string
	RawText      string
	Tables       []entity.RawTable
	BillingHint  string
	ShippingHint string
	BatchHint    string
}

// BuildOrderSystemPrompt fixes the extraction rules for sales orders.
func BuildOrderSystemPrompt() string {
	parts := []string{
		"You extract sales orders for a shipping department. Return ONLY one JSON object matching the provided JSON Schema.",
		"order_number is the 3 to 5 digit sales order number; use null if it is not visible.",
		"Use null for any value that is not present. Never invent addresses, quantities or prices.",
		"billing_address is the Sold To / Bill To party, shipping_address is the Ship To party.",
		"Split each address into company, attention, street lines, city, province or state, postal_code and country.",
		"items lists every order line in document order, including freight, pallet and other charge lines.",
		"quantity, unit_price and total_price are plain numbers without currency symbols or thousands separators.",
		"Only set batch_number on an item when the document prints a batch or lot number for that line.",
		"Dates stay as printed.",
	}
	return strings.Join(parts, " ")
}

// BuildOrderUserPrompt packages raw text, raw tables and pre-extracted hints.
func BuildOrderUserPrompt(in OrderPromptInput) string {
	var b strings.Builder
	if fn := strings.TrimSpace(in.Filename); fn != "" {
		b.WriteString("Filename: ")
		b.WriteString(fn)
		b.WriteString("\n")
	}
	if in.BillingHint != "" || in.ShippingHint != "" {
		b.WriteString("\nAddress hints recovered from the page layout. They are very likely correct; prefer them over re-reading interleaved columns, but correct obvious noise:\n")
		if in.BillingHint != "" {
			b.WriteString("Billing (Sold To):\n")
			b.WriteString(in.BillingHint)
			b.WriteString("\n")
		}
		if in.ShippingHint != "" {
			b.WriteString("Shipping (Ship To):\n")
			b.WriteString(in.ShippingHint)
			b.WriteString("\n")
		}
	}
	if in.BatchHint != "" {
		b.WriteString("Batch/lot number printed on the document: ")
		b.WriteString(in.BatchHint)
		b.WriteString("\n")
	}
	if len(in.Tables) > 0 {
		if tb, err := json.Marshal(in.Tables); err == nil {
			b.WriteString("\nRaw tables (JSON, cells untrimmed):\n")
			b.WriteString(truncate(string(tb), maxTableChars))
			b.WriteString("\n")
		}
	}
	b.WriteString("\nDocument text (layout preserved):\n")
	b.WriteString(truncate(in.RawText, maxTextChars))
	return b.String()
}

// BuildEmailSystemPrompt fixes the extraction rules for shipment notification emails.
func BuildEmailSystemPrompt() string {
	parts := []string{
		"You read shipment notification emails. Return ONLY one JSON object matching the provided JSON Schema.",
		"order_numbers lists every referenced sales order number (3 to 5 digits) in the order first mentioned, without duplicates.",
		"When the email has one section per sales order, put each section's items under items_by_order keyed by that order number.",
		"When items cannot be attributed to a single order, leave items_by_order empty and list them in items.",
		"Each item has quantity, unit as written, description and batch_number when a batch or lot is given for it.",
		"Weights go in total_weight or order_details as {value, unit}. Use null for anything not stated.",
	}
	return strings.Join(parts, " ")
}

// BuildEmailUserPrompt wraps the email body.
func BuildEmailUserPrompt(body string) string {
	return "Email body:\n" + truncate(strings.TrimSpace(body), maxTextChars)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n…(truncated)"
}
