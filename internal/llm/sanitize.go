package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// synonyms maps keys models commonly emit to the schema's names. Applied at every object level.
var synonyms = map[string]string{
	"order_no":        "order_number",
	"so_number":       "order_number",
	"sales_order":     "order_number",
	"po":              "po_number",
	"purchase_order":  "po_number",
	"customer":        "customer_name",
	"bill_to":         "billing_address",
	"sold_to":         "billing_address",
	"ship_to":         "shipping_address",
	"line_items":      "items",
	"qty":             "quantity",
	"uom":             "unit",
	"sku":             "item_code",
	"code":            "item_code",
	"batch":           "batch_number",
	"lot":             "batch_number",
	"lot_number":      "batch_number",
	"price":           "unit_price",
	"amount":          "total_price",
	"orders":          "order_numbers",
	"po_number_list":  "po_numbers",
	"company":         "company_name",
	"instructions":    "special_instructions",
	"postal":          "postal_code",
	"zip":             "postal_code",
	"state":           "province",
	"attn":            "attention",
	"address_lines":   "street",
	"due_date":        "ship_date",
	"sub_total":       "subtotal",
	"total_amount":    "total",
	"grand_total":     "total",
	"tax_amount":      "tax",
	"weight":          "total_weight",
	"pallets":         "pallet_count",
	"dimensions":      "pallet_dimensions",
	"pallet_dims":     "pallet_dimensions",
	"items_per_order": "items_by_order",
}

// numericKeys hold money or quantity values; strings there lose currency symbols and
// thousands separators.
var numericKeys = map[string]struct{}{
	"subtotal": {}, "tax": {}, "total": {}, "unit_price": {}, "total_price": {}, "quantity": {}, "value": {},
}

// NormalizeAndSanitizeJSON turns a model reply into a JSON object shaped for schema:
//   - strips markdown fences and prose around the object
//   - renames known synonyms
//   - drops keys the schema does not allow and blank strings
//   - strips "$" and "," from numeric strings
func NormalizeAndSanitizeJSON(raw []byte, schema map[string]any, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	body, err := extractObject(raw)
	if err != nil {
		return nil, nil, err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, nil, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, nil, fmt.Errorf("%w: top level is %T", ErrMalformed, v)
	}

	var changes []string
	out := prune(v, schema, "", &changes)
	b, err := json.Marshal(out)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changes) > 0 {
		logger.Debug("llm.extract.normalize_sanitize", "changes", changes)
	}
	return b, changes, nil
}

func extractObject(raw []byte) ([]byte, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, ErrEmpty
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformed)
	}
	return []byte(s[start : end+1]), nil
}

func prune(v any, schema map[string]any, path string, changes *[]string) any {
	switch t := v.(type) {
	case map[string]any:
		props, _ := schema["properties"].(map[string]any)
		addl := schema["additionalProperties"]
		for from, to := range synonyms {
			val, ok := t[from]
			if !ok || props == nil {
				continue
			}
			if _, allowed := props[to]; !allowed {
				continue
			}
			if _, exists := t[to]; !exists {
				t[to] = val
				*changes = append(*changes, path+from+"->"+to)
			}
			delete(t, from)
		}
		for k, val := range t {
			var sub map[string]any
			switch {
			case props != nil && props[k] != nil:
				sub, _ = props[k].(map[string]any)
			case isSchema(addl):
				sub = addl.(map[string]any)
			case addl == false:
				delete(t, k)
				*changes = append(*changes, path+k+"(unknown)")
				continue
			}
			if s, ok := val.(string); ok {
				s = strings.TrimSpace(s)
				if s == "" {
					t[k] = nil
					*changes = append(*changes, path+k+"(blank)")
					continue
				}
				if _, num := numericKeys[k]; num {
					s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
				}
				t[k] = s
				continue
			}
			t[k] = prune(val, sub, path+k+".", changes)
		}
		return t
	case []any:
		var items map[string]any
		if schema != nil {
			items, _ = schema["items"].(map[string]any)
		}
		for i := range t {
			t[i] = prune(t[i], items, path, changes)
		}
		return t
	default:
		return v
	}
}

func isSchema(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
