package constants

// OrderStatus is the outcome of structuring one order document.
type OrderStatus string

// Stable values (stored verbatim in run audits and reports).
const (
	OrderStatusFound    OrderStatus = "found"     // order number resolved
	OrderStatusNotFound OrderStatus = "not_found" // partial record, order number unknown
	OrderStatusError    OrderStatus = "error"     // document could not be parsed
)

// ValidationStatus is the per-order and overall reconciliation verdict.
type ValidationStatus string

const (
	ValidationPassed  ValidationStatus = "passed"
	ValidationWarning ValidationStatus = "warning" // nothing comparable
	ValidationFailed  ValidationStatus = "failed"  // gate: block or flag generation
)

// ItemMatchStatus is the reconciliation outcome for a single order line.
type ItemMatchStatus string

const (
	ItemMatched          ItemMatchStatus = "matched"
	ItemUnmatched        ItemMatchStatus = "unmatched"
	ItemQuantityMismatch ItemMatchStatus = "quantity_mismatch"
	ItemExcluded         ItemMatchStatus = "excluded" // non-product line, never matched
)

// Source records which path produced a record.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Severity orders validation statuses so per-order verdicts can be aggregated.
func (s ValidationStatus) Severity() int {
	switch s {
	case ValidationFailed:
		return 2
	case ValidationWarning:
		return 1
	default:
		return 0
	}
}
