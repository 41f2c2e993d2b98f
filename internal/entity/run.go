package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/shipdocs/constants"
)

// Run is an audit row for one processed order/email pair.
type Run struct {
	ID            uuid.UUID                  `json:"id"`
	OrderNumbers  []string                   `json:"order_numbers"`
	OverallStatus constants.ValidationStatus `json:"overall_status"`
	Passed        bool                       `json:"passed"`
	Orders        json.RawMessage            `json:"orders,omitempty"`
	Instruction   json.RawMessage            `json:"instruction,omitempty"`
	Validation    json.RawMessage            `json:"validation,omitempty"`
	ErrorMessage  *string                    `json:"error_message,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
}
