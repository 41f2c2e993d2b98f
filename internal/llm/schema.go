package llm

// Schema names sent with completion requests.
const (
	OrderSchemaName       = "order_record"
	InstructionSchemaName = "shipment_instruction"
)

// OrderRecordSchema returns the JSON Schema of an order record. Optional values may be null.
func OrderRecordSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"order_number":     nullableString(),
			"customer_name":    nullableString(),
			"billing_address":  addressSchema(),
			"shipping_address": addressSchema(),
			"order_date":       nullableString(),
			"ship_date":        nullableString(),
			"po_number":        nullableString(),
			"terms":            nullableString(),
			"items": map[string]any{
				"type":  "array",
				"items": lineItemSchema(),
			},
			"subtotal": moneyProp(),
			"tax":      moneyProp(),
			"total":    moneyProp(),
		},
		"required": []any{"order_number", "billing_address", "shipping_address", "items"},
	}
}

// ShipmentInstructionSchema returns the JSON Schema of a shipment instruction.
func ShipmentInstructionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"order_numbers": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"po_numbers": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "minLength": 1},
			},
			"company_name": nullableString(),
			"items_by_order": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "array", "items": declaredItemSchema()},
			},
			"order_details": map[string]any{
				"type":                 "object",
				"additionalProperties": orderShipmentSchema(),
			},
			"items":                map[string]any{"type": "array", "items": declaredItemSchema()},
			"total_weight":         weightSchema(),
			"pallet_count":         map[string]any{"type": []any{"integer", "null"}, "minimum": 0},
			"pallet_dimensions":    nullableString(),
			"special_instructions": nullableString(),
		},
		"required": []any{"order_numbers", "items_by_order"},
	}
}

func addressSchema() map[string]any {
	return map[string]any{
		"type":                 []any{"object", "null"},
		"additionalProperties": false,
		"properties": map[string]any{
			"company":     nullableString(),
			"attention":   nullableString(),
			"street":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"city":        nullableString(),
			"province":    nullableString(),
			"postal_code": nullableString(),
			"country":     nullableString(),
		},
	}
}

func lineItemSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"item_code":    nullableString(),
			"description":  map[string]any{"type": "string", "minLength": 1},
			"quantity":     quantityProp(),
			"unit":         nullableString(),
			"unit_price":   moneyProp(),
			"total_price":  moneyProp(),
			"batch_number": nullableString(),
		},
		"required": []any{"description"},
	}
}

func declaredItemSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"quantity":     quantityProp(),
			"unit":         nullableString(),
			"description":  map[string]any{"type": "string", "minLength": 1},
			"batch_number": nullableString(),
		},
		"required": []any{"description"},
	}
}

func orderShipmentSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"gross_weight":      weightSchema(),
			"net_weight":        weightSchema(),
			"pallet_count":      map[string]any{"type": []any{"integer", "null"}, "minimum": 0},
			"pallet_dimensions": nullableString(),
		},
	}
}

func weightSchema() map[string]any {
	return map[string]any{
		"type":                 []any{"object", "null"},
		"additionalProperties": false,
		"properties": map[string]any{
			"value": quantityProp(),
			"unit":  map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"value", "unit"},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

func moneyProp() map[string]any {
	return map[string]any{
		"type":    []any{"string", "number", "null"},
		"pattern": `^-?\d+(\.\d+)?$`,
	}
}

func quantityProp() map[string]any {
	return map[string]any{
		"type":    []any{"string", "number", "null"},
		"pattern": `^\d+(\.\d+)?$`,
		"minimum": 0,
	}
}
